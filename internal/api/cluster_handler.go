package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/inbound"
)

// UnreachablePeersHeader перечисляет peers, не ответившие на запрос.
const UnreachablePeersHeader = "X-Unreachable-Peers"

// ClusterInstances объединяет executables всех экземпляров кластера.
// GET /cluster/inbound-instances
//
// Недоступные peers пропускаются и перечисляются в X-Unreachable-Peers.
func (h *Handler) ClusterInstances(w http.ResponseWriter, r *http.Request) {
	// Слот 0 - локальный отчёт, слот i+1 - отчёт peers[i]: порядок свёртки
	// не зависит от того, какой peer ответил первым
	reports := make([][]domain.ConnectorInstances, len(h.peers)+1)
	reports[0] = h.inbound.Instances()
	failed := make([]bool, len(h.peers))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(8)
	for i, peer := range h.peers {
		g.Go(func() error {
			report, err := h.fetchInstances(ctx, peer)
			if err != nil {
				h.logger.Warn("peer unreachable", "peer", peer, "error", err)
				failed[i] = true
				return nil
			}
			reports[i+1] = report
			return nil
		})
	}
	_ = g.Wait()

	var unreachable []string
	for i, peer := range h.peers {
		if failed[i] {
			unreachable = append(unreachable, peer)
		}
	}

	merged := inbound.ReduceAll(reports...)
	if merged == nil {
		merged = []domain.ConnectorInstances{}
	}
	if len(unreachable) > 0 {
		w.Header().Set(UnreachablePeersHeader, strings.Join(unreachable, ","))
	}
	Success(w, merged)
}

func (h *Handler) fetchInstances(ctx context.Context, peer string) ([]domain.ConnectorInstances, error) {
	url := strings.TrimRight(peer, "/") + "/inbound-instances"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: status %d", url, resp.StatusCode)
	}

	var report []domain.ConnectorInstances
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return report, nil
}
