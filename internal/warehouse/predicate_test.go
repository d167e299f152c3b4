package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparisonBindsValues(t *testing.T) {
	stmt := NewBuilder(Postgres).
		Write("SELECT COUNT(*) FROM T").
		Where(And(Eq(ColPCPVisit, 1), Eq(ColExclusion, 0))).
		Build("count")

	assert.Equal(t, "SELECT COUNT(*) FROM T WHERE (PCPV = $1 AND EXCL = $2)", stmt.SQL)
	assert.Equal(t, []any{1, 0}, stmt.Args)
	assert.Equal(t, "count", stmt.Name)
}

func TestAndFlattensCumulativePredicates(t *testing.T) {
	var cumulative Predicate
	for _, p := range []Predicate{Eq(ColPCPVisit, 1), Eq(ColInpatient, 0), Eq(ColED, 0)} {
		cumulative = And(cumulative, p)
	}

	stmt := NewBuilder(Postgres).Predicate(cumulative).Build("p")
	assert.Equal(t, "(PCPV = $1 AND IPT = $2 AND ED = $3)", stmt.SQL)
}

func TestJunctionNilHandling(t *testing.T) {
	assert.Nil(t, And())
	assert.Nil(t, And(nil, nil))

	single := Eq(ColED, 0)
	assert.Equal(t, single, And(nil, single))

	stmt := NewBuilder(Postgres).Write("SELECT 1 FROM T").Where(nil).Build("x")
	assert.Equal(t, "SELECT 1 FROM T", stmt.SQL)
	assert.Empty(t, stmt.Args)

	stmt = NewBuilder(Postgres).Predicate(nil).Build("x")
	assert.Equal(t, "1 = 1", stmt.SQL)
}

func TestOrOfAndsKeepsGrouping(t *testing.T) {
	p := Or(
		And(Eq(ColAdultChild, Adult), Gte(ColPMPM, 100.0), Lte(ColPMPM, 5000.0)),
		And(Eq(ColAdultChild, Child), Gte(ColPMPM, 50.0), Lte(ColPMPM, 900.0)),
	)

	stmt := NewBuilder(SQLServer).Predicate(p).Build("band")
	assert.Equal(t,
		"((ADULT_CHILD = @p1 AND PMPM >= @p2 AND PMPM <= @p3) OR (ADULT_CHILD = @p4 AND PMPM >= @p5 AND PMPM <= @p6))",
		stmt.SQL)
	assert.Equal(t, []any{"Adult", 100.0, 5000.0, "Child", 50.0, 900.0}, stmt.Args)
}

func TestPredicateReusedAcrossSubquery(t *testing.T) {
	table, err := ParseTable("POP")
	require.NoError(t, err)
	anchor := And(Eq(ColPCPVisit, 1), Gt(ColHouseholdSize, 1))

	stmt := NewBuilder(Postgres).
		Write("SELECT COUNT(*) FROM POP").
		Where(And(
			Eq(ColAdultChild, Child),
			Not(anchor),
			InSelect(ColHeadOfHouse, table, anchor),
		)).
		Build("nonAnchors")

	assert.Equal(t,
		"SELECT COUNT(*) FROM POP WHERE (ADULT_CHILD = $1 AND NOT ((PCPV = $2 AND HSHLD > $3)) AND "+
			"MEMBER_HEADOFHOUSE IN (SELECT DISTINCT MEMBER_HEADOFHOUSE FROM POP WHERE (PCPV = $4 AND HSHLD > $5)))",
		stmt.SQL)
	assert.Equal(t, []any{"Child", 1, 1, 1, 1}, stmt.Args)
}

func TestPaginatePerDialect(t *testing.T) {
	pg := NewBuilder(Postgres).Write("SELECT * FROM T ORDER BY PMPM DESC").Paginate(50, 100).Build("page")
	assert.Equal(t, "SELECT * FROM T ORDER BY PMPM DESC LIMIT $1 OFFSET $2", pg.SQL)
	assert.Equal(t, []any{50, 100}, pg.Args)

	ms := NewBuilder(SQLServer).Write("SELECT * FROM T ORDER BY PMPM DESC").Paginate(50, 100).Build("page")
	assert.Equal(t, "SELECT * FROM T ORDER BY PMPM DESC OFFSET @p2 ROWS FETCH NEXT @p1 ROWS ONLY", ms.SQL)
}

func TestParseTable(t *testing.T) {
	for _, ok := range []string{"FINAL_OUTPUT_TEST_20250511", "PUBLIC.POP", "_t1"} {
		_, err := ParseTable(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "1abc", "POP; DROP TABLE members", "a.b.c", "POP--"} {
		_, err := ParseTable(bad)
		assert.Error(t, err, bad)
	}
}
