package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/telemetry"
)

// Type: тип outbound задания.
const Type = "io.camunda:connector-jdbc:1"

// DefaultDriver: драйвер database/sql по умолчанию.
const DefaultDriver = "postgres"

// Response: результат коннектора.
// Заполнено ровно одно поле в зависимости от data.returnResults.
type Response struct {
	ModifiedRows *int64           `json:"modifiedRows"`
	ResultSet    []map[string]any `json:"resultSet"`
}

// Function: outbound SQL коннектор.
type Function struct {
	driver string
	logger *slog.Logger
}

var _ connector.OutboundFunction = (*Function)(nil)

// NewFunction создаёт Function. Пустой driver означает DefaultDriver.
func NewFunction(driver string, logger *slog.Logger) *Function {
	if driver == "" {
		driver = DefaultDriver
	}
	return &Function{driver: driver, logger: telemetry.OrDefault(logger)}
}

// Definition возвращает описание коннектора.
func Definition() connector.OutboundDefinition {
	return connector.OutboundDefinition{
		Name:           "SQL Database",
		Type:           Type,
		InputVariables: []string{"database", "connection", "data"},
		Timeout:        5 * time.Minute,
	}
}

// Execute открывает соединение, выполняет запрос и закрывает соединение.
func (f *Function) Execute(ctx context.Context, oc connector.OutboundContext) (any, error) {
	var req Request
	if err := oc.BindVariables(&req); err != nil {
		return nil, err
	}

	db, err := sql.Open(f.driver, req.Connection.dsn())
	if err != nil {
		return nil, connector.WrapError("SQL_CONNECTION_FAILED", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if req.Data.ReturnResults {
		rows, err := query(ctx, db, req.Data)
		if err != nil {
			return nil, err
		}
		f.logger.Debug("sql query executed", "rows", len(rows))
		return &Response{ResultSet: rows}, nil
	}

	n, err := exec(ctx, db, req.Data)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("sql statement executed", "modified_rows", n)
	return &Response{ModifiedRows: &n}, nil
}

func exec(ctx context.Context, db *sql.DB, data Data) (int64, error) {
	res, err := db.ExecContext(ctx, data.Query, data.Variables...)
	if err != nil {
		return 0, connector.WrapError("SQL_EXECUTION_FAILED", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, connector.WrapError("SQL_EXECUTION_FAILED", err)
	}
	return n, nil
}

func query(ctx context.Context, db *sql.DB, data Data) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, data.Query, data.Variables...)
	if err != nil {
		return nil, connector.WrapError("SQL_EXECUTION_FAILED", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, connector.WrapError("SQL_EXECUTION_FAILED", err)
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, connector.WrapError("SQL_EXECUTION_FAILED", fmt.Errorf("scan row: %w", err))
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = columnValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, connector.WrapError("SQL_EXECUTION_FAILED", err)
	}
	return out, nil
}

// columnValue приводит значение драйвера к JSON-совместимому виду.
func columnValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return x
	}
}
