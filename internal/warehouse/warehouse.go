// Package warehouse runs aggregate queries against the external population
// warehouse. Statements are built from typed predicates and executed on a
// single borrowed connection per unit of work.
package warehouse

import (
	"context"
	"fmt"

	"github.com/paramean/targeting/internal/shared/config"
)

// Scanner reads the current row. Both pgx.Rows and *sql.Rows satisfy it.
type Scanner interface {
	Scan(dest ...any) error
}

// Session is one borrowed warehouse connection. Statements on a session run
// strictly in sequence, so connection-bound state stays consistent across a
// multi-statement computation.
type Session interface {
	Dialect() Dialect
	// Query runs stmt and calls fn once per result row.
	Query(ctx context.Context, stmt Statement, fn func(Scanner) error) error
	Release()
}

// Warehouse hands out sessions.
type Warehouse interface {
	Acquire(ctx context.Context) (Session, error)
	Health(ctx context.Context) error
	Close()
}

// Open connects to the warehouse named by cfg.Driver.
func Open(ctx context.Context, cfg config.WarehouseConfig) (Warehouse, error) {
	switch cfg.Driver {
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN())
	case "sqlserver":
		return OpenSQLServer(ctx, cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}
}

// QueryInt runs a single-value statement such as COUNT(*) and returns 0 when
// no row comes back.
func QueryInt(ctx context.Context, s Session, stmt Statement) (int64, error) {
	var n int64
	err := s.Query(ctx, stmt, func(sc Scanner) error {
		return sc.Scan(&n)
	})
	return n, err
}
