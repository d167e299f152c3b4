package targeting

import (
	"context"
	"fmt"

	"github.com/paramean/targeting/internal/warehouse"
)

// Rollup statement names, in execution order.
const (
	qNonAnchors      = "nonAnchors"
	qAdultAnchorHRP  = "adultAnchorHrp"
	qChildAnchor     = "childAnchor"
	qOtherAdultGt2   = "otherAdultGt2"
	qAdultSingleExcl = "adultSingleExcl"
	qAfterNonAnchors = "afterNonAnchors"
)

// rollupPredicates derives the household counts from the final predicate.
// Anchors are rows matching final; non-anchors are children not matching it
// who live in a household that contains an anchor.
func rollupPredicates(table warehouse.Table, final warehouse.Predicate) []struct {
	name string
	pred warehouse.Predicate
} {
	hoh := warehouse.ColHeadOfHouse
	multi := warehouse.Gt(warehouse.ColHouseholdSize, 1)

	return []struct {
		name string
		pred warehouse.Predicate
	}{
		{qNonAnchors, warehouse.And(isChild, warehouse.Not(final),
			warehouse.InSelect(hoh, table, final))},
		{qAdultAnchorHRP, warehouse.And(isAdult, multi, final)},
		{qChildAnchor, warehouse.And(isChild, final)},
		{qOtherAdultGt2, warehouse.And(isAdult, warehouse.Gt(warehouse.ColAdults, 1), final)},
		{qAdultSingleExcl, warehouse.And(isAdult, warehouse.Eq(warehouse.ColHouseholdSize, 1), final)},
		{qAfterNonAnchors, warehouse.And(isChild, warehouse.Not(final),
			warehouse.InSelect(hoh, table, warehouse.And(final, multi)))},
	}
}

// ComputeAnchorRollup runs the household counts for the cohort selected by
// final, sequentially on sess, and combines them with the last funnel step.
// Adult anchors in single-member households are lost under the family
// definition; child anchors are always kept.
func ComputeAnchorRollup(ctx context.Context, sess warehouse.Session, table warehouse.Table, final warehouse.Predicate, last FunnelStep) (OutputTable, error) {
	d := sess.Dialect()

	counts := make(map[string]int64, 6)
	for _, q := range rollupPredicates(table, final) {
		stmt := warehouse.NewBuilder(d).
			Write("SELECT COUNT(*) FROM ", string(table)).
			Where(q.pred).
			Build(q.name)
		n, err := warehouse.QueryInt(ctx, sess, stmt)
		if err != nil {
			return OutputTable{}, fmt.Errorf("%s: %w", q.name, err)
		}
		counts[q.name] = n
	}

	return buildOutputTable(last, counts), nil
}

func buildOutputTable(last FunnelStep, counts map[string]int64) OutputTable {
	finalAdults, finalChildren := last.Adults, last.Children
	nonAnchors := counts[qNonAnchors]
	lost := counts[qAdultSingleExcl]
	remaining := finalAdults - lost
	afterNonAnchors := counts[qAfterNonAnchors]

	return OutputTable{
		BeforeFamilyDef: Nest{
			TotalAnchorsAdults:      finalAdults,
			TotalAnchorsChildren:    finalChildren,
			TotalNonAnchorsAdults:   0,
			TotalNonAnchorsChildren: nonAnchors,
			TotalNestAdults:         finalAdults,
			TotalNestChildren:       finalChildren + nonAnchors,
		},
		FamilyDefinition: FamilyDefinition{
			AdultAnchorHRP:      counts[qAdultAnchorHRP],
			ChildAnchor:         counts[qChildAnchor],
			OtherAdultGt2:       counts[qOtherAdultGt2],
			AdultSingleExcl:     lost,
			AnchorsLostAdults:   lost,
			AnchorsLostChildren: 0,
			AnchorsLostPct:      ratio(lost, finalAdults),
			RemainingAdults:     remaining,
			RemainingChildren:   finalChildren,
		},
		AfterFamilyDef: Nest{
			TotalAnchorsAdults:      remaining,
			TotalAnchorsChildren:    finalChildren,
			TotalNonAnchorsAdults:   0,
			TotalNonAnchorsChildren: afterNonAnchors,
			TotalNestAdults:         remaining,
			TotalNestChildren:       finalChildren + afterNonAnchors,
		},
	}
}
