package targeting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramean/targeting/internal/warehouse"
	"github.com/paramean/targeting/internal/warehouse/warehousetest"
)

func TestComputeAnchorRollup(t *testing.T) {
	sess := warehousetest.NewSession().
		On(qNonAnchors, []any{int64(2)}).
		On(qAdultAnchorHRP, []any{int64(1)}).
		On(qChildAnchor, []any{int64(1)}).
		On(qOtherAdultGt2, []any{int64(1)}).
		On(qAdultSingleExcl, []any{int64(2)}).
		On(qAfterNonAnchors, []any{int64(1)})

	final := warehouse.Eq(warehouse.ColPCPVisit, 1)
	last := FunnelStep{Name: StepPMPM, Adults: 3, Children: 1, Total: 4}

	out, err := ComputeAnchorRollup(context.Background(), sess, table, final, last)
	require.NoError(t, err)

	assert.Equal(t, []string{
		qNonAnchors, qAdultAnchorHRP, qChildAnchor, qOtherAdultGt2, qAdultSingleExcl, qAfterNonAnchors,
	}, sess.Names())

	assert.Equal(t, Nest{
		TotalAnchorsAdults:      3,
		TotalAnchorsChildren:    1,
		TotalNonAnchorsChildren: 2,
		TotalNestAdults:         3,
		TotalNestChildren:       3,
	}, out.BeforeFamilyDef)

	assert.Equal(t, FamilyDefinition{
		AdultAnchorHRP:    1,
		ChildAnchor:       1,
		OtherAdultGt2:     1,
		AdultSingleExcl:   2,
		AnchorsLostAdults: 2,
		AnchorsLostPct:    2.0 / 3.0,
		RemainingAdults:   1,
		RemainingChildren: 1,
	}, out.FamilyDefinition)

	assert.Equal(t, Nest{
		TotalAnchorsAdults:      1,
		TotalAnchorsChildren:    1,
		TotalNonAnchorsChildren: 1,
		TotalNestAdults:         1,
		TotalNestChildren:       2,
	}, out.AfterFamilyDef)
}

func TestRollupStatements(t *testing.T) {
	sess := warehousetest.NewSession()
	final := warehouse.Eq(warehouse.ColPCPVisit, 1)

	_, err := ComputeAnchorRollup(context.Background(), sess, table, final, FunnelStep{})
	require.NoError(t, err)

	nonAnchors, _ := sess.Statement(qNonAnchors)
	assert.Equal(t,
		"SELECT COUNT(*) FROM FINAL_OUTPUT_TEST_20250511 WHERE (ADULT_CHILD = $1 AND NOT (PCPV = $2) AND "+
			"MEMBER_HEADOFHOUSE IN (SELECT DISTINCT MEMBER_HEADOFHOUSE FROM FINAL_OUTPUT_TEST_20250511 WHERE PCPV = $3))",
		nonAnchors.SQL)
	assert.Equal(t, []any{"Child", 1, 1}, nonAnchors.Args)

	after, _ := sess.Statement(qAfterNonAnchors)
	assert.Contains(t, after.SQL, "WHERE (PCPV = $3 AND HSHLD > $4))")

	single, _ := sess.Statement(qAdultSingleExcl)
	assert.Equal(t, "SELECT COUNT(*) FROM FINAL_OUTPUT_TEST_20250511 WHERE (ADULT_CHILD = $1 AND HSHLD = $2 AND PCPV = $3)", single.SQL)
}

func TestRollupNoAdultsHasZeroLostPct(t *testing.T) {
	out := buildOutputTable(FunnelStep{Children: 5, Total: 5}, map[string]int64{})
	assert.Zero(t, out.FamilyDefinition.AnchorsLostPct)
	assert.Equal(t, int64(5), out.AfterFamilyDef.TotalNestChildren)
}

func TestRollupError(t *testing.T) {
	sess := warehousetest.NewSession().Fail(qChildAnchor, assert.AnError)
	_, err := ComputeAnchorRollup(context.Background(), sess, table, warehouse.Eq(warehouse.ColED, 0), FunnelStep{})
	require.ErrorIs(t, err, assert.AnError)
	assert.Len(t, sess.Names(), 3)
}
