package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultListLimit caps list queries that do not ask for a limit.
const defaultListLimit = 100

// DBTX is the subset of the pgx pool used by the repositories.
// *pgxpool.Pool and pgxmock pools both satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InitDB initializes the database connection pool
func InitDB(ctx context.Context, dsn string, maxConns, minConns int, maxLifetime time.Duration) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = int32(maxConns)
	config.MinConns = int32(minConns)
	config.MaxConnLifetime = maxLifetime
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	clauses []string
	args    []any
}

// add appends a condition. clause must contain exactly one %d for the
// placeholder number of arg.
func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

// scope applies the business and time range restrictions of f. prefix
// qualifies column names when the query joins tables.
func (w *where) scope(f repository.ListFilter, prefix, timeColumn string) {
	if len(f.BusinessIDs) > 0 {
		w.add(prefix+"business_id = ANY($%d)", f.BusinessIDs)
	}
	if f.From != nil {
		w.add(prefix+timeColumn+" >= $%d", *f.From)
	}
	if f.To != nil {
		w.add(prefix+timeColumn+" <= $%d", *f.To)
	}
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// limit appends the LIMIT argument and returns the clause.
func (w *where) limit(n int) string {
	if n <= 0 {
		n = defaultListLimit
	}
	w.args = append(w.args, n)
	return fmt.Sprintf(" LIMIT $%d", len(w.args))
}
