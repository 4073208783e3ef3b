package outbound

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/engine"
)

// fakeActivator отдаёт заранее подготовленные задания по типу.
type fakeActivator struct {
	mu       sync.Mutex
	pending  map[string][]domain.Job
	commands []engine.ActivateJobsCommand
}

func (a *fakeActivator) ActivateJobs(_ context.Context, cmd engine.ActivateJobsCommand) ([]domain.Job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, cmd)

	jobs := a.pending[cmd.Type]
	n := min(cmd.MaxJobs, len(jobs))
	a.pending[cmd.Type] = jobs[n:]
	return jobs[:n], nil
}

func (a *fakeActivator) maxRequested() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := 0
	for _, c := range a.commands {
		out = max(out, c.MaxJobs)
	}
	return out
}

func jobsOfType(jobType string, n int) []domain.Job {
	out := make([]domain.Job, n)
	for i := range out {
		out[i] = domain.Job{Key: fmt.Sprintf("%s-%d", jobType, i), Type: jobType, Retries: 3}
	}
	return out
}

func TestWorker_CompletesJobsPerType(t *testing.T) {
	registry := connector.NewRegistry()
	registry.RegisterOutbound(connector.OutboundDefinition{Type: "a", InputVariables: []string{"x"}}, returning("ok", nil))
	registry.RegisterOutbound(connector.OutboundDefinition{Type: "b", Timeout: time.Minute}, returning("ok", nil))

	activator := &fakeActivator{pending: map[string][]domain.Job{
		"a": jobsOfType("a", 3),
		"b": jobsOfType("b", 2),
	}}
	client := newFakeClient()

	w := NewWorker(WorkerConfig{
		Activator:    activator,
		Registry:     registry,
		Handler:      newTestHandler(client),
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, w.Start(context.Background()))

	assert.Eventually(t, func() bool { return client.completedCount() == 5 }, 2*time.Second, 10*time.Millisecond)
	w.Stop()
	assert.True(t, w.IsStopped())

	activator.mu.Lock()
	defer activator.mu.Unlock()
	for _, cmd := range activator.commands {
		assert.Equal(t, defaultWorkerName, cmd.Worker)
		switch cmd.Type {
		case "a":
			assert.Equal(t, []string{"x"}, cmd.FetchVariables)
			assert.Equal(t, defaultJobTimeout, cmd.Timeout)
		case "b":
			assert.Equal(t, time.Minute, cmd.Timeout)
		}
	}
}

func TestWorker_BoundsConcurrency(t *testing.T) {
	const limit = 2

	var running, peak atomic.Int32
	release := make(chan struct{})
	fn := connector.OutboundFunc(func(context.Context, connector.OutboundContext) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil, nil
	})

	registry := connector.NewRegistry()
	registry.RegisterOutbound(connector.OutboundDefinition{Type: "slow"}, fn)

	activator := &fakeActivator{pending: map[string][]domain.Job{"slow": jobsOfType("slow", 6)}}
	client := newFakeClient()

	w := NewWorker(WorkerConfig{
		Activator:     activator,
		Registry:      registry,
		Handler:       newTestHandler(client),
		PollInterval:  5 * time.Millisecond,
		MaxJobsActive: limit,
	})
	require.NoError(t, w.Start(context.Background()))

	assert.Eventually(t, func() bool { return running.Load() == limit }, 2*time.Second, 5*time.Millisecond)
	close(release)
	assert.Eventually(t, func() bool { return client.completedCount() == 6 }, 2*time.Second, 10*time.Millisecond)
	w.Stop()

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.LessOrEqual(t, activator.maxRequested(), limit)
}

func TestWorker_StartAfterStop(t *testing.T) {
	w := NewWorker(WorkerConfig{Registry: connector.NewRegistry(), Handler: newTestHandler(newFakeClient())})
	require.NoError(t, w.Start(context.Background()))
	w.Stop()

	assert.ErrorIs(t, w.Start(context.Background()), ErrWorkerStopped)
}
