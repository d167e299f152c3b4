package targeting

import (
	"github.com/paramean/targeting/internal/warehouse"
)

// Step names, in funnel order.
const (
	StepStart      = "Starting Population"
	StepNoPCP      = "PCP Visits (No PCP)"
	StepExclusions = "Exclusions (Cancer/Transplant)"
	StepInpatient  = "Inpatient (IPT)"
	StepED         = "ED Visits"
	StepMinMM      = "Minimum Member Months"
	StepPMPM       = "PMPM Threshold"
)

// Criteria selects the funnel steps. PMPM bounds are inclusive and are not
// checked for order; an inverted band simply matches nobody.
type Criteria struct {
	PMPMMinAdult float64 `json:"pmpmMinAdult"`
	PMPMMaxAdult float64 `json:"pmpmMaxAdult"`
	PMPMMinChild float64 `json:"pmpmMinChild"`
	PMPMMaxChild float64 `json:"pmpmMaxChild"`

	ExcludeNoPCP      bool `json:"excludeNoPcp"`
	ExcludeExclusions bool `json:"excludeExclusions"`
	ExcludeIPT        bool `json:"excludeIpt"`
	ExcludeED         bool `json:"excludeEd"`
	ExcludeLowMM      bool `json:"excludeLowMm"`

	// Only used when ExcludeLowMM is set. Fractional thresholds are allowed.
	MinMMAdult float64 `json:"minMmAdult"`
	MinMMChild float64 `json:"minMmChild"`
}

// Step is one named filter of the funnel.
type Step struct {
	Name      string
	Predicate warehouse.Predicate
}

// FunnelStep is the population remaining after a step.
type FunnelStep struct {
	Name         string  `json:"name"`
	Adults       int64   `json:"adults"`
	Children     int64   `json:"children"`
	Total        int64   `json:"total"`
	AdultMM      float64 `json:"adultMM"`
	ChildMM      float64 `json:"childMM"`
	AdultPaid    float64 `json:"adultPaid"`
	ChildPaid    float64 `json:"childPaid"`
	AdultPMPM    float64 `json:"adultPmpm"`
	ChildPMPM    float64 `json:"childPmpm"`
	Excluded     int64   `json:"excluded"`
	ExcludedPct  float64 `json:"excludedPct"`
	CumulExclPct float64 `json:"cumulExclPct"`
}

// Nest is the anchor and non-anchor headcount of the targeted households.
type Nest struct {
	TotalAnchorsAdults      int64 `json:"totalAnchorsAdults"`
	TotalAnchorsChildren    int64 `json:"totalAnchorsChildren"`
	TotalNonAnchorsAdults   int64 `json:"totalNonAnchorsAdults"`
	TotalNonAnchorsChildren int64 `json:"totalNonAnchorsChildren"`
	TotalNestAdults         int64 `json:"totalNestAdults"`
	TotalNestChildren       int64 `json:"totalNestChildren"`
}

// FamilyDefinition breaks the final anchors down by household shape.
type FamilyDefinition struct {
	AdultAnchorHRP      int64   `json:"adultAnchorHrp"`
	ChildAnchor         int64   `json:"childAnchor"`
	OtherAdultGt2       int64   `json:"otherAdultGt2"`
	AdultSingleExcl     int64   `json:"adultSingleExcl"`
	AnchorsLostAdults   int64   `json:"anchorsLostAdults"`
	AnchorsLostChildren int64   `json:"anchorsLostChildren"`
	AnchorsLostPct      float64 `json:"anchorsLostPct"`
	RemainingAdults     int64   `json:"remainingAdults"`
	RemainingChildren   int64   `json:"remainingChildren"`
}

// OutputTable is the household rollup before and after the family
// definition is applied.
type OutputTable struct {
	BeforeFamilyDef  Nest             `json:"beforeFamilyDef"`
	FamilyDefinition FamilyDefinition `json:"familyDefinition"`
	AfterFamilyDef   Nest             `json:"afterFamilyDef"`
}

// Result is the targeting endpoint response.
type Result struct {
	Funnel      []FunnelStep `json:"funnel"`
	OutputTable OutputTable  `json:"outputTable"`
}
