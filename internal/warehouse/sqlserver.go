package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/paramean/targeting/internal/shared/metrics"
)

// SQLServerWarehouse serves sessions from a database/sql pool backed by the
// SQL Server driver.
type SQLServerWarehouse struct {
	db *sql.DB
}

// OpenSQLServer opens the pool and verifies connectivity.
func OpenSQLServer(ctx context.Context, dsn string) (*SQLServerWarehouse, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}
	return &SQLServerWarehouse{db: db}, nil
}

func (w *SQLServerWarehouse) Acquire(ctx context.Context) (Session, error) {
	conn, err := w.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire warehouse connection: %w", err)
	}
	return &sqlSession{conn: conn}, nil
}

func (w *SQLServerWarehouse) Health(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

func (w *SQLServerWarehouse) Close() {
	w.db.Close()
}

type sqlSession struct {
	conn *sql.Conn
}

func (s *sqlSession) Dialect() Dialect { return SQLServer }

func (s *sqlSession) Query(ctx context.Context, stmt Statement, fn func(Scanner) error) (err error) {
	start := time.Now()
	defer func() { metrics.RecordWarehouseQuery(stmt.Name, SQLServer.Name(), time.Since(start), err) }()

	rows, err := s.conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
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

func (s *sqlSession) Release() {
	s.conn.Close()
}
