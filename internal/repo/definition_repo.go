package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Connectors/internal/domain"
)

// DefinitionRepo: репозиторий process_definitions и inbound_elements.
// Реализует inbound.DefinitionSource.
type DefinitionRepo struct {
	pool *pgxpool.Pool
}

// NewDefinitionRepo создаёт новый DefinitionRepo.
func NewDefinitionRepo(pool *pgxpool.Pool) *DefinitionRepo {
	return &DefinitionRepo{pool: pool}
}

// definitionRow: строка выборки (определение + один элемент).
type definitionRow struct {
	key             string
	bpmnProcessID   string
	version         int
	tenantID        string
	elementID       string
	correlationKind string
	messageName     string
	properties      []byte
}

// Definitions возвращает активные определения с их inbound элементами.
func (r *DefinitionRepo) Definitions(ctx context.Context) ([]domain.ProcessDefinition, error) {
	query := `
		SELECT d.key, d.bpmn_process_id, d.version, d.tenant_id,
		       e.element_id, e.correlation_kind, e.message_name, e.properties
		FROM process_definitions d
		JOIN inbound_elements e ON e.process_definition_key = d.key
		WHERE d.active
		ORDER BY d.tenant_id, d.bpmn_process_id, d.version, e.element_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	var batch []definitionRow
	for rows.Next() {
		var row definitionRow
		if err := rows.Scan(
			&row.key,
			&row.bpmnProcessID,
			&row.version,
			&row.tenantID,
			&row.elementID,
			&row.correlationKind,
			&row.messageName,
			&row.properties,
		); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	return groupDefinitions(batch)
}

// Save сохраняет определение вместе с элементами (заменяя существующие).
func (r *DefinitionRepo) Save(ctx context.Context, def domain.ProcessDefinition) error {
	def.Normalize()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO process_definitions (key, bpmn_process_id, version, tenant_id, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (key) DO UPDATE
		SET bpmn_process_id = EXCLUDED.bpmn_process_id,
		    version = EXCLUDED.version,
		    tenant_id = EXCLUDED.tenant_id,
		    active = TRUE
	`, def.Key, def.BpmnProcessID, def.Version, def.TenantID)
	if err != nil {
		return fmt.Errorf("upsert definition: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM inbound_elements WHERE process_definition_key = $1`, def.Key); err != nil {
		return fmt.Errorf("delete elements: %w", err)
	}

	for _, el := range def.Elements {
		props, err := json.Marshal(el.Properties)
		if err != nil {
			return fmt.Errorf("marshal properties: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO inbound_elements (process_definition_key, element_id, correlation_kind, message_name, properties)
			VALUES ($1, $2, $3, $4, $5)
		`, def.Key, el.ElementID, string(el.CorrelationPoint.Kind), el.CorrelationPoint.MessageName, props)
		if err != nil {
			return fmt.Errorf("insert element %s: %w", el.ElementID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Deactivate помечает определение неактивным.
// Возвращает ErrNotFound, если определения нет.
func (r *DefinitionRepo) Deactivate(ctx context.Context, key string) error {
	result, err := r.pool.Exec(ctx, `UPDATE process_definitions SET active = FALSE WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("deactivate definition: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// groupDefinitions собирает строки выборки в определения.
// Строки одного определения идут подряд.
func groupDefinitions(rows []definitionRow) ([]domain.ProcessDefinition, error) {
	var defs []domain.ProcessDefinition
	for _, row := range rows {
		if len(defs) == 0 || defs[len(defs)-1].Key != row.key {
			defs = append(defs, domain.ProcessDefinition{
				Key:           row.key,
				BpmnProcessID: row.bpmnProcessID,
				Version:       row.version,
				TenantID:      row.tenantID,
			})
		}

		props := map[string]string{}
		if len(row.properties) > 0 {
			if err := json.Unmarshal(row.properties, &props); err != nil {
				return nil, fmt.Errorf("decode properties of %s/%s: %w", row.key, row.elementID, err)
			}
		}

		def := &defs[len(defs)-1]
		def.Elements = append(def.Elements, domain.InboundElement{
			ProcessElement: domain.ProcessElement{ElementID: row.elementID},
			CorrelationPoint: domain.CorrelationPoint{
				Kind:        domain.CorrelationPointKind(row.correlationKind),
				MessageName: row.messageName,
			},
			Properties: props,
		})
	}

	for i := range defs {
		defs[i].Normalize()
	}
	return defs, nil
}
