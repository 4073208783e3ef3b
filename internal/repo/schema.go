package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema: таблицы runtime. Идемпотентна.
const schema = `
CREATE TABLE IF NOT EXISTS process_definitions (
	key             TEXT PRIMARY KEY,
	bpmn_process_id TEXT NOT NULL,
	version         INT  NOT NULL,
	tenant_id       TEXT NOT NULL DEFAULT '<default>',
	active          BOOLEAN NOT NULL DEFAULT TRUE,
	deployed_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS inbound_elements (
	process_definition_key TEXT NOT NULL REFERENCES process_definitions(key) ON DELETE CASCADE,
	element_id             TEXT NOT NULL,
	correlation_kind       TEXT NOT NULL,
	message_name           TEXT NOT NULL DEFAULT '',
	properties             JSONB NOT NULL DEFAULT '{}',
	PRIMARY KEY (process_definition_key, element_id)
);

CREATE TABLE IF NOT EXISTS secrets (
	tenant_id TEXT NOT NULL DEFAULT '<default>',
	name      TEXT NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (tenant_id, name)
);
`

// Migrate создаёт таблицы, если их нет.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
