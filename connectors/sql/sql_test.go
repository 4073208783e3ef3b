package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Connectors/internal/connector"
)

// recordingDriver: драйвер database/sql, который запоминает запросы
// и отвечает фиксированными данными.
type recordingDriver struct {
	mu       sync.Mutex
	dsn      string
	queries  []string
	args     [][]driver.NamedValue
	affected int64
	columns  []string
	rows     [][]driver.Value
	err      error
}

var testDriver = &recordingDriver{}

func init() {
	sql.Register("sqltest", testDriver)
}

func (d *recordingDriver) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dsn, d.queries, d.args = "", nil, nil
	d.affected, d.columns, d.rows, d.err = 0, nil, nil, nil
}

func (d *recordingDriver) Open(dsn string) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dsn = dsn
	return &recordingConn{d: d}, nil
}

func (d *recordingDriver) record(query string, args []driver.NamedValue) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, query)
	d.args = append(d.args, args)
	return d.err
}

type recordingConn struct{ d *recordingDriver }

func (c *recordingConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *recordingConn) Close() error                        { return nil }
func (c *recordingConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func (c *recordingConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := c.d.record(query, args); err != nil {
		return nil, err
	}
	return driver.RowsAffected(c.d.affected), nil
}

func (c *recordingConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := c.d.record(query, args); err != nil {
		return nil, err
	}
	return &fixedRows{columns: c.d.columns, rows: c.d.rows}, nil
}

type fixedRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *fixedRows) Columns() []string { return r.columns }
func (r *fixedRows) Close() error      { return nil }

func (r *fixedRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

func run(t *testing.T, vars map[string]any) (any, error) {
	t.Helper()
	fn := NewFunction("sqltest", nil)
	return fn.Execute(context.Background(), &connector.SimpleOutboundContext{Vars: vars})
}

func TestFunction_Update(t *testing.T) {
	testDriver.reset()
	testDriver.affected = 3

	result, err := run(t, map[string]any{
		"database":   "POSTGRESQL",
		"connection": map[string]any{"host": "db", "username": "app", "password": "p@ss", "databaseName": "orders"},
		"data": map[string]any{
			"query":     "UPDATE orders SET status = $1 WHERE customer = $2",
			"variables": []any{"shipped", float64(7)},
		},
	})
	require.NoError(t, err)

	resp := result.(*Response)
	require.NotNil(t, resp.ModifiedRows)
	assert.Equal(t, int64(3), *resp.ModifiedRows)
	assert.Nil(t, resp.ResultSet)

	assert.Equal(t, "postgres://app:p%40ss@db:5432/orders", testDriver.dsn)
	require.Len(t, testDriver.args, 1)
	assert.Equal(t, "shipped", testDriver.args[0][0].Value)
	assert.Equal(t, float64(7), testDriver.args[0][1].Value)
}

func TestFunction_Query(t *testing.T) {
	testDriver.reset()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	testDriver.columns = []string{"id", "name", "created_at", "note"}
	testDriver.rows = [][]driver.Value{
		{int64(1), []byte("Alice"), created, nil},
		{int64(2), "Bob", created, "vip"},
	}

	result, err := run(t, map[string]any{
		"connection": map[string]any{"uri": "postgres://localhost/test"},
		"data":       map[string]any{"query": "SELECT * FROM employees", "returnResults": true},
	})
	require.NoError(t, err)

	resp := result.(*Response)
	assert.Nil(t, resp.ModifiedRows)
	assert.Equal(t, []map[string]any{
		{"id": int64(1), "name": "Alice", "created_at": "2024-05-01T12:00:00Z", "note": nil},
		{"id": int64(2), "name": "Bob", "created_at": "2024-05-01T12:00:00Z", "note": "vip"},
	}, resp.ResultSet)
	assert.Equal(t, "postgres://localhost/test", testDriver.dsn)
}

func TestFunction_EmptyResultSet(t *testing.T) {
	testDriver.reset()
	testDriver.columns = []string{"id"}

	result, err := run(t, map[string]any{
		"connection": map[string]any{"uri": "postgres://localhost/test"},
		"data":       map[string]any{"query": "SELECT id FROM employees WHERE false", "returnResults": true},
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{}, result.(*Response).ResultSet)
}

func TestFunction_ExecutionError(t *testing.T) {
	testDriver.reset()
	testDriver.err = errors.New(`relation "missing" does not exist`)

	_, err := run(t, map[string]any{
		"connection": map[string]any{"uri": "postgres://localhost/test"},
		"data":       map[string]any{"query": "DELETE FROM missing"},
	})
	var cerr *connector.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "SQL_EXECUTION_FAILED", cerr.Code)
}

func TestFunction_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]any
	}{
		{"missing query", map[string]any{"connection": map[string]any{"uri": "postgres://x"}}},
		{"missing connection", map[string]any{"data": map[string]any{"query": "SELECT 1"}}},
		{"unsupported database", map[string]any{
			"database":   "ORACLE",
			"connection": map[string]any{"uri": "postgres://x"},
			"data":       map[string]any{"query": "SELECT 1"},
		}},
		{"bad port", map[string]any{
			"connection": map[string]any{"host": "db", "port": "abc"},
			"data":       map[string]any{"query": "SELECT 1"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.vars)
			require.Error(t, err)
			assert.True(t, connector.IsInputError(err))
		})
	}
}

func TestConnection_DSN(t *testing.T) {
	c := Connection{Host: "db", Port: "6543", DatabaseName: "app", SSLMode: "disable"}
	assert.Equal(t, "postgres://db:6543/app?sslmode=disable", c.dsn())
}
