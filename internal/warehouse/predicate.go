package warehouse

import (
	"strings"
)

// Predicate is a typed boolean filter over population columns. Predicates
// carry their values separately from the SQL text; values are only ever
// rendered as bind markers.
type Predicate interface {
	render(b *Builder)
}

type comparison struct {
	col   Column
	op    string
	value any
}

func (c comparison) render(b *Builder) {
	b.sb.WriteString(string(c.col))
	b.sb.WriteString(" ")
	b.sb.WriteString(c.op)
	b.sb.WriteString(" ")
	b.sb.WriteString(b.Bind(c.value))
}

// Eq matches rows where col equals value.
func Eq(col Column, value any) Predicate { return comparison{col, "=", value} }

// Gt matches rows where col is strictly greater than value.
func Gt(col Column, value any) Predicate { return comparison{col, ">", value} }

// Gte matches rows where col is greater than or equal to value.
func Gte(col Column, value any) Predicate { return comparison{col, ">=", value} }

// Lte matches rows where col is less than or equal to value.
func Lte(col Column, value any) Predicate { return comparison{col, "<=", value} }

type junction struct {
	op    string
	parts []Predicate
}

func (j junction) render(b *Builder) {
	b.sb.WriteString("(")
	for i, p := range j.parts {
		if i > 0 {
			b.sb.WriteString(" ")
			b.sb.WriteString(j.op)
			b.sb.WriteString(" ")
		}
		p.render(b)
	}
	b.sb.WriteString(")")
}

// And combines predicates with AND. Nil parts are dropped; a single part is
// returned unchanged and no parts yields nil (match everything).
func And(parts ...Predicate) Predicate {
	return join("AND", parts)
}

// Or combines predicates with OR, with the same nil handling as And.
func Or(parts ...Predicate) Predicate {
	return join("OR", parts)
}

func join(op string, parts []Predicate) Predicate {
	var kept []Predicate
	for _, p := range parts {
		if p == nil {
			continue
		}
		// Flatten nested junctions of the same operator so cumulative
		// predicates stay one level deep.
		if j, ok := p.(junction); ok && j.op == op {
			kept = append(kept, j.parts...)
			continue
		}
		kept = append(kept, p)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return junction{op: op, parts: kept}
}

type negation struct {
	inner Predicate
}

func (n negation) render(b *Builder) {
	b.sb.WriteString("NOT (")
	n.inner.render(b)
	b.sb.WriteString(")")
}

// Not negates p. Rows where p evaluates to NULL are excluded, matching SQL
// three-valued logic.
func Not(p Predicate) Predicate { return negation{inner: p} }

type inSelect struct {
	col   Column
	table Table
	where Predicate
}

func (s inSelect) render(b *Builder) {
	b.sb.WriteString(string(s.col))
	b.sb.WriteString(" IN (SELECT DISTINCT ")
	b.sb.WriteString(string(s.col))
	b.sb.WriteString(" FROM ")
	b.sb.WriteString(string(s.table))
	if s.where != nil {
		b.sb.WriteString(" WHERE ")
		s.where.render(b)
	}
	b.sb.WriteString(")")
}

// InSelect matches rows whose col value appears in col of the rows of table
// matching where.
func InSelect(col Column, table Table, where Predicate) Predicate {
	return inSelect{col: col, table: table, where: where}
}

// Statement is rendered SQL with its positional arguments.
type Statement struct {
	// Name labels the statement in metrics and logs.
	Name string
	SQL  string
	Args []any
}

// Builder accumulates SQL text and bind arguments for one statement.
type Builder struct {
	dialect Dialect
	sb      strings.Builder
	args    []any
}

// NewBuilder starts a statement for d.
func NewBuilder(d Dialect) *Builder {
	return &Builder{dialect: d}
}

// Write appends raw SQL. Callers must only pass constant text or validated
// identifiers.
func (b *Builder) Write(parts ...string) *Builder {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
	return b
}

// Bind records value as the next argument and returns its marker.
func (b *Builder) Bind(value any) string {
	b.args = append(b.args, value)
	return b.dialect.Placeholder(len(b.args))
}

// Predicate renders p in place. A nil predicate renders as an always-true
// condition.
func (b *Builder) Predicate(p Predicate) *Builder {
	if p == nil {
		b.sb.WriteString("1 = 1")
		return b
	}
	p.render(b)
	return b
}

// Where appends " WHERE p" when p is non-nil.
func (b *Builder) Where(p Predicate) *Builder {
	if p == nil {
		return b
	}
	b.sb.WriteString(" WHERE ")
	p.render(b)
	return b
}

// Paginate appends the dialect's row window with bound limit and offset.
func (b *Builder) Paginate(limit, offset int) *Builder {
	l := b.Bind(limit)
	o := b.Bind(offset)
	b.sb.WriteString(" ")
	b.sb.WriteString(b.dialect.Paginate(l, o))
	return b
}

// Build finishes the statement.
func (b *Builder) Build(name string) Statement {
	return Statement{Name: name, SQL: b.sb.String(), Args: b.args}
}
