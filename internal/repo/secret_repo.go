package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/secrets"
)

// SecretRepo: секреты в таблице secrets. Реализует secrets.Provider.
//
// Секрет тенанта имеет приоритет над секретом тенанта по умолчанию.
type SecretRepo struct {
	pool *pgxpool.Pool
}

var _ secrets.Provider = (*SecretRepo)(nil)

// NewSecretRepo создаёт новый SecretRepo.
func NewSecretRepo(pool *pgxpool.Pool) *SecretRepo {
	return &SecretRepo{pool: pool}
}

// GetSecret возвращает значение секрета.
func (r *SecretRepo) GetSecret(ctx context.Context, name, tenantID string) (string, error) {
	if tenantID == "" {
		tenantID = domain.DefaultTenantID
	}
	query := `
		SELECT value
		FROM secrets
		WHERE name = $1 AND tenant_id IN ($2, $3)
		ORDER BY (tenant_id = $2) DESC
		LIMIT 1
	`
	var value string
	err := r.pool.QueryRow(ctx, query, name, tenantID, domain.DefaultTenantID).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", secrets.ErrSecretNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("get secret: %w", err)
	}
	return value, nil
}

// Put создаёт или обновляет секрет.
func (r *SecretRepo) Put(ctx context.Context, name, tenantID, value string) error {
	if tenantID == "" {
		tenantID = domain.DefaultTenantID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO secrets (tenant_id, name, value) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, name) DO UPDATE SET value = EXCLUDED.value
	`, tenantID, name, value)
	if err != nil {
		return fmt.Errorf("put secret: %w", err)
	}
	return nil
}
