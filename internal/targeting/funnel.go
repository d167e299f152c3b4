// Package targeting computes the cumulative exclusion funnel over the
// population table and the household anchor rollup of its final cohort.
package targeting

import (
	"context"
	"fmt"

	"github.com/paramean/targeting/internal/warehouse"
)

// Steps translates criteria into the ordered step list. Enabled toggles come
// first in fixed order; the PMPM band is always last.
func Steps(c Criteria) []Step {
	var steps []Step
	if c.ExcludeNoPCP {
		steps = append(steps, Step{StepNoPCP, warehouse.Eq(warehouse.ColPCPVisit, 1)})
	}
	if c.ExcludeExclusions {
		steps = append(steps, Step{StepExclusions, warehouse.Eq(warehouse.ColExclusion, 0)})
	}
	if c.ExcludeIPT {
		steps = append(steps, Step{StepInpatient, warehouse.Eq(warehouse.ColInpatient, 0)})
	}
	if c.ExcludeED {
		steps = append(steps, Step{StepED, warehouse.Eq(warehouse.ColED, 0)})
	}
	if c.ExcludeLowMM {
		steps = append(steps, Step{StepMinMM, warehouse.Or(
			warehouse.And(isAdult, warehouse.Gte(warehouse.MemberMonthsValue, c.MinMMAdult)),
			warehouse.And(isChild, warehouse.Gte(warehouse.MemberMonthsValue, c.MinMMChild)),
		)})
	}
	steps = append(steps, Step{StepPMPM, warehouse.Or(
		warehouse.And(isAdult,
			warehouse.Gte(warehouse.ColPMPM, c.PMPMMinAdult),
			warehouse.Lte(warehouse.ColPMPM, c.PMPMMaxAdult)),
		warehouse.And(isChild,
			warehouse.Gte(warehouse.ColPMPM, c.PMPMMinChild),
			warehouse.Lte(warehouse.ColPMPM, c.PMPMMaxChild)),
	)})
	return steps
}

var (
	isAdult = warehouse.Eq(warehouse.ColAdultChild, warehouse.Adult)
	isChild = warehouse.Eq(warehouse.ColAdultChild, warehouse.Child)
)

// group is the aggregate of one ADULT_CHILD class.
type group struct {
	count int64
	mm    float64
	paid  float64
	pmpm  float64
}

func groupStatement(d warehouse.Dialect, table warehouse.Table, where warehouse.Predicate, name string) warehouse.Statement {
	return warehouse.NewBuilder(d).
		Write("SELECT ", warehouse.Text(warehouse.ColAdultChild), " AS ADULT_CHILD, COUNT(*) AS CNT, ",
			warehouse.SumFloat(warehouse.MemberMonthsValue), " AS TOTAL_MM, ",
			warehouse.SumFloat(warehouse.ColTotalPaid), " AS TOTAL_PD, ",
			warehouse.AvgFloat(warehouse.ColPMPM), " AS AVG_PMPM",
			" FROM ", string(table)).
		Where(where).
		Write(" GROUP BY ", string(warehouse.ColAdultChild)).
		Build(name)
}

// queryGroups returns the adult and child aggregates. A class with no rows
// comes back as zeros.
func queryGroups(ctx context.Context, sess warehouse.Session, stmt warehouse.Statement) (adult, child group, err error) {
	err = sess.Query(ctx, stmt, func(sc warehouse.Scanner) error {
		var (
			class string
			g     group
		)
		if err := sc.Scan(&class, &g.count, &g.mm, &g.paid, &g.pmpm); err != nil {
			return err
		}
		switch class {
		case warehouse.Adult:
			adult = g
		case warehouse.Child:
			child = g
		}
		return nil
	})
	return adult, child, err
}

func newFunnelStep(name string, adult, child group) FunnelStep {
	return FunnelStep{
		Name:      name,
		Adults:    adult.count,
		Children:  child.count,
		Total:     adult.count + child.count,
		AdultMM:   adult.mm,
		ChildMM:   child.mm,
		AdultPaid: adult.paid,
		ChildPaid: child.paid,
		AdultPMPM: adult.pmpm,
		ChildPMPM: child.pmpm,
	}
}

// RunFunnel queries the starting population and then the population left
// after each cumulative step, sequentially on sess. It returns the funnel
// and the final cumulative predicate.
func RunFunnel(ctx context.Context, sess warehouse.Session, table warehouse.Table, c Criteria) ([]FunnelStep, warehouse.Predicate, error) {
	d := sess.Dialect()
	steps := Steps(c)

	adult, child, err := queryGroups(ctx, sess, groupStatement(d, table, nil, "step_0"))
	if err != nil {
		return nil, nil, fmt.Errorf("step 0: %w", err)
	}
	funnel := make([]FunnelStep, 0, len(steps)+1)
	funnel = append(funnel, newFunnelStep(StepStart, adult, child))
	start := funnel[0].Total

	var cumulative warehouse.Predicate
	for i, step := range steps {
		cumulative = warehouse.And(cumulative, step.Predicate)

		adult, child, err := queryGroups(ctx, sess, groupStatement(d, table, cumulative, fmt.Sprintf("step_%d", i+1)))
		if err != nil {
			return nil, nil, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err)
		}

		fs := newFunnelStep(step.Name, adult, child)
		fs.Excluded = funnel[i].Total - fs.Total
		fs.ExcludedPct = ratio(fs.Excluded, start)
		fs.CumulExclPct = ratio(start-fs.Total, start)
		funnel = append(funnel, fs)
	}

	return funnel, cumulative, nil
}

// ratio returns n/d, or 0 when d is 0.
func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
