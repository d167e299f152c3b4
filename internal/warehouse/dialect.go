package warehouse

import "fmt"

// Dialect renders the engine-specific parts of a statement.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	// Paginate renders the row-window clause that follows ORDER BY.
	Paginate(limit, offset string) string
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) Paginate(limit, offset string) string {
	return fmt.Sprintf("LIMIT %s OFFSET %s", limit, offset)
}

type sqlServerDialect struct{}

func (sqlServerDialect) Name() string { return "sqlserver" }

func (sqlServerDialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (sqlServerDialect) Paginate(limit, offset string) string {
	return fmt.Sprintf("OFFSET %s ROWS FETCH NEXT %s ROWS ONLY", offset, limit)
}

var (
	// Postgres uses $n markers and LIMIT/OFFSET.
	Postgres Dialect = postgresDialect{}
	// SQLServer uses @pN markers and OFFSET/FETCH.
	SQLServer Dialect = sqlServerDialect{}
)
