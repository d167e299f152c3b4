package targeting

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramean/targeting/internal/warehouse"
	"github.com/paramean/targeting/internal/warehouse/warehousetest"
)

const table = warehouse.Table("FINAL_OUTPUT_TEST_20250511")

func band() Criteria {
	return Criteria{PMPMMinAdult: 250, PMPMMaxAdult: 5000, PMPMMinChild: 100, PMPMMaxChild: 3000}
}

func allToggles() Criteria {
	c := band()
	c.ExcludeNoPCP = true
	c.ExcludeExclusions = true
	c.ExcludeIPT = true
	c.ExcludeED = true
	c.ExcludeLowMM = true
	c.MinMMAdult = 10
	c.MinMMChild = 6
	return c
}

func stepNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

func TestStepsOrder(t *testing.T) {
	assert.Equal(t, []string{StepPMPM}, stepNames(Steps(band())))

	assert.Equal(t, []string{
		StepNoPCP, StepExclusions, StepInpatient, StepED, StepMinMM, StepPMPM,
	}, stepNames(Steps(allToggles())))

	c := band()
	c.ExcludeED = true
	c.ExcludeNoPCP = true
	assert.Equal(t, []string{StepNoPCP, StepED, StepPMPM}, stepNames(Steps(c)))
}

func TestMinMMIgnoredWhenToggleOff(t *testing.T) {
	c := band()
	c.MinMMAdult = 99
	steps := Steps(c)
	require.Len(t, steps, 1)

	stmt := warehouse.NewBuilder(warehouse.Postgres).Predicate(steps[0].Predicate).Build("p")
	assert.NotContains(t, stmt.SQL, "MM >=")
}

func TestFractionalMinMM(t *testing.T) {
	var c Criteria
	require.NoError(t, json.Unmarshal([]byte(`{"excludeLowMm":true,"minMmAdult":2.5,"minMmChild":0.5}`), &c))
	assert.Equal(t, 2.5, c.MinMMAdult)
	assert.Equal(t, 0.5, c.MinMMChild)

	steps := Steps(c)
	require.Len(t, steps, 2)
	stmt := warehouse.NewBuilder(warehouse.Postgres).Predicate(steps[0].Predicate).Build("p")
	assert.Contains(t, stmt.SQL, "CAST(MM AS DOUBLE PRECISION) >= $2")
	assert.Equal(t, []any{"Adult", 2.5, "Child", 0.5}, stmt.Args)
}

func TestRunFunnelKeepsFractionalMemberMonths(t *testing.T) {
	sess := warehousetest.NewSession().
		On("step_0", []any{"Adult", int64(2), 13.5, 1350.0, 100.0}, []any{"Child", int64(1), 0.25, 25.0, 100.0})

	funnel, _, err := RunFunnel(context.Background(), sess, table, band())
	require.NoError(t, err)
	assert.Equal(t, 13.5, funnel[0].AdultMM)
	assert.Equal(t, 0.25, funnel[0].ChildMM)

	s0, _ := sess.Statement("step_0")
	assert.Contains(t, s0.SQL, "SUM(CAST(MM AS DOUBLE PRECISION))")
}

func TestRunFunnelNoToggles(t *testing.T) {
	sess := warehousetest.NewSession().
		On("step_0", []any{"Adult", int64(10), int64(120), 12000.0, 100.0}, []any{"Child", int64(10), int64(120), 6000.0, 50.0}).
		On("step_1", []any{"Adult", int64(10), int64(120), 12000.0, 100.0}, []any{"Child", int64(10), int64(120), 6000.0, 50.0})

	funnel, final, err := RunFunnel(context.Background(), sess, table, band())
	require.NoError(t, err)
	require.Len(t, funnel, 2)
	require.NotNil(t, final)

	assert.Equal(t, StepStart, funnel[0].Name)
	assert.Equal(t, StepPMPM, funnel[1].Name)
	assert.Equal(t, int64(20), funnel[1].Total)
	assert.Equal(t, int64(0), funnel[1].Excluded)
	assert.Equal(t, []string{"step_0", "step_1"}, sess.Names())

	s0, _ := sess.Statement("step_0")
	assert.NotContains(t, s0.SQL, "WHERE")
	assert.Empty(t, s0.Args)

	s1, _ := sess.Statement("step_1")
	assert.Contains(t, s1.SQL,
		"WHERE ((ADULT_CHILD = $1 AND PMPM >= $2 AND PMPM <= $3) OR (ADULT_CHILD = $4 AND PMPM >= $5 AND PMPM <= $6)) GROUP BY ADULT_CHILD")
	assert.Equal(t, []any{"Adult", 250.0, 5000.0, "Child", 100.0, 3000.0}, s1.Args)
}

func TestRunFunnelDerivedValues(t *testing.T) {
	c := band()
	c.ExcludeNoPCP = true
	sess := warehousetest.NewSession().
		On("step_0", []any{"Adult", int64(100), int64(1200), 600000.0, 500.0}, []any{"Child", int64(50), int64(600), 60000.0, 100.0}).
		On("step_1", []any{"Adult", int64(80), int64(960), 480000.0, 500.0}, []any{"Child", int64(40), int64(480), 48000.0, 100.0}).
		On("step_2", []any{"Adult", int64(60), int64(720), 400000.0, 555.5}, []any{"Child", int64(30), int64(360), 40000.0, 111.1})

	funnel, _, err := RunFunnel(context.Background(), sess, table, c)
	require.NoError(t, err)
	require.Len(t, funnel, 3)

	assert.Equal(t, FunnelStep{
		Name: StepStart, Adults: 100, Children: 50, Total: 150,
		AdultMM: 1200, ChildMM: 600, AdultPaid: 600000, ChildPaid: 60000, AdultPMPM: 500, ChildPMPM: 100,
	}, funnel[0])

	assert.Equal(t, StepNoPCP, funnel[1].Name)
	assert.Equal(t, int64(30), funnel[1].Excluded)
	assert.InDelta(t, 0.2, funnel[1].ExcludedPct, 1e-9)
	assert.InDelta(t, 0.2, funnel[1].CumulExclPct, 1e-9)

	assert.Equal(t, int64(30), funnel[2].Excluded)
	assert.InDelta(t, 0.4, funnel[2].CumulExclPct, 1e-9)
	assert.Equal(t, 555.5, funnel[2].AdultPMPM)

	assertFunnelProperties(t, funnel)
}

func TestRunFunnelZeroPopulation(t *testing.T) {
	sess := warehousetest.NewSession()

	funnel, _, err := RunFunnel(context.Background(), sess, table, allToggles())
	require.NoError(t, err)
	require.Len(t, funnel, 7)

	for _, step := range funnel {
		assert.Zero(t, step.Total, step.Name)
		assert.Zero(t, step.ExcludedPct, step.Name)
		assert.Zero(t, step.CumulExclPct, step.Name)
	}
}

func TestRunFunnelMissingGroupIsZero(t *testing.T) {
	sess := warehousetest.NewSession().
		On("step_0", []any{"Adult", int64(4), int64(48), 4000.0, 83.3}).
		On("step_1", []any{"Adult", int64(3), int64(36), 3000.0, 83.3}, []any{"", int64(9), int64(0), 0.0, 0.0})

	funnel, _, err := RunFunnel(context.Background(), sess, table, band())
	require.NoError(t, err)

	assert.Equal(t, int64(0), funnel[0].Children)
	assert.Equal(t, float64(0), funnel[0].ChildMM)
	assert.Equal(t, int64(4), funnel[0].Total)
	assert.Equal(t, int64(3), funnel[1].Total, "rows with an unknown class are ignored")
	assert.Equal(t, int64(1), funnel[1].Excluded)
}

func TestRunFunnelPredicatesAccumulate(t *testing.T) {
	sess := warehousetest.NewSession()
	_, final, err := RunFunnel(context.Background(), sess, table, allToggles())
	require.NoError(t, err)

	assert.Equal(t, []string{"step_0", "step_1", "step_2", "step_3", "step_4", "step_5", "step_6"}, sess.Names())

	s3, _ := sess.Statement("step_3")
	assert.Contains(t, s3.SQL, "WHERE (PCPV = $1 AND EXCL = $2 AND IPT = $3) GROUP BY")
	assert.Equal(t, []any{1, 0, 0}, s3.Args)

	s6, _ := sess.Statement("step_6")
	finalStmt := warehouse.NewBuilder(warehouse.Postgres).Write("SELECT").Where(final).Build("x")
	assert.Contains(t, s6.SQL, finalStmt.SQL[len("SELECT"):])
	assert.Len(t, s6.Args, 4+4+6)
	assert.Equal(t, []any{1, 0, 0, 0, "Adult", 10.0, "Child", 6.0}, s6.Args[:8])
}

func TestRunFunnelStopsOnError(t *testing.T) {
	sess := warehousetest.NewSession().Fail("step_1", assert.AnError)

	_, _, err := RunFunnel(context.Background(), sess, table, allToggles())
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"step_0", "step_1"}, sess.Names())
}

// assertFunnelProperties checks the invariants every funnel must satisfy.
func assertFunnelProperties(t *testing.T, funnel []FunnelStep) {
	t.Helper()
	var sumPct float64
	for i := 1; i < len(funnel); i++ {
		assert.LessOrEqual(t, funnel[i].Total, funnel[i-1].Total, funnel[i].Name)
		assert.GreaterOrEqual(t, funnel[i].Excluded, int64(0), funnel[i].Name)
		assert.Equal(t, funnel[i-1].Total-funnel[i].Total, funnel[i].Excluded, funnel[i].Name)
		sumPct += funnel[i].ExcludedPct
	}
	assert.InDelta(t, funnel[len(funnel)-1].CumulExclPct, sumPct, 1e-9)
}
