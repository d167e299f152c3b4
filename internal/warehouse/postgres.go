package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paramean/targeting/internal/shared/metrics"
)

// PostgresWarehouse serves sessions from a pgx pool.
type PostgresWarehouse struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates the pool and verifies connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresWarehouse, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse warehouse config: %w", err)
	}
	poolConfig.MaxConns = 8
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}
	return &PostgresWarehouse{pool: pool}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresWarehouse {
	return &PostgresWarehouse{pool: pool}
}

func (w *PostgresWarehouse) Acquire(ctx context.Context) (Session, error) {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire warehouse connection: %w", err)
	}
	return &pgSession{conn: conn}, nil
}

func (w *PostgresWarehouse) Health(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

func (w *PostgresWarehouse) Close() {
	w.pool.Close()
}

type pgSession struct {
	conn *pgxpool.Conn
}

func (s *pgSession) Dialect() Dialect { return Postgres }

func (s *pgSession) Query(ctx context.Context, stmt Statement, fn func(Scanner) error) (err error) {
	start := time.Now()
	defer func() { metrics.RecordWarehouseQuery(stmt.Name, Postgres.Name(), time.Since(start), err) }()

	rows, err := s.conn.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return fmt.Errorf("warehouse query %s: %w", stmt.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return fmt.Errorf("warehouse scan %s: %w", stmt.Name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("warehouse rows %s: %w", stmt.Name, err)
	}
	return nil
}

func (s *pgSession) Release() {
	s.conn.Release()
}
