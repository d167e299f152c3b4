package report

import (
	"math"
	"net/url"
	"strconv"

	"github.com/paramean/targeting/internal/warehouse"
)

// Modes accepted by the report endpoint.
const (
	ModeSummary = "summary"
	ModeData    = "data"
)

// Page size bounds for data mode.
const (
	DefaultLimit = 50
	MinLimit     = 10
	MaxLimit     = 100
)

// MaxPage keeps the row offset within a 32-bit integer for every limit.
const MaxPage = math.MaxInt32/MaxLimit + 1

// Filters are optional equality filters. Empty fields are ignored.
type Filters struct {
	Gender    string
	AgeGroup  string
	Product   string
	PMPMGroup string
}

// FiltersFromQuery reads gender, ageGrp, product and pmpmGrp.
func FiltersFromQuery(q url.Values) Filters {
	return Filters{
		Gender:    q.Get("gender"),
		AgeGroup:  q.Get("ageGrp"),
		Product:   q.Get("product"),
		PMPMGroup: q.Get("pmpmGrp"),
	}
}

// Predicate ANDs the non-empty filters. It returns nil when no filter is set.
func (f Filters) Predicate() warehouse.Predicate {
	var parts []warehouse.Predicate
	add := func(col warehouse.Column, v string) {
		if v != "" {
			parts = append(parts, warehouse.Eq(col, v))
		}
	}
	add(warehouse.ColGender, f.Gender)
	add(warehouse.ColAgeGroup, f.AgeGroup)
	add(warehouse.ColProduct, f.Product)
	add(warehouse.ColPMPMGroup, f.PMPMGroup)
	return warehouse.And(parts...)
}

// Pagination parses page and limit. page is at least 1; limit defaults to
// DefaultLimit and is clamped to [MinLimit, MaxLimit]. page is capped at
// MaxPage. Unparseable values fall back to the defaults.
func Pagination(q url.Values) (page, limit int) {
	page = 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 1 {
		page = min(p, MaxPage)
	}

	limit = DefaultLimit
	if l, err := strconv.Atoi(q.Get("limit")); err == nil {
		limit = l
	}
	limit = min(max(limit, MinLimit), MaxLimit)
	return page, limit
}

// Summary holds population totals.
type Summary struct {
	TotalMembers int64   `json:"TOTAL_MEMBERS"`
	TotalMM      float64 `json:"TOTAL_MM"`
	TotalPaid    float64 `json:"TOTAL_PAID"`
	AvgPMPM      float64 `json:"AVG_PMPM"`
	PCPVisits    int64   `json:"PCP_VISITS"`
	BHMembers    int64   `json:"BH_MEMBERS"`
	EDMembers    int64   `json:"ED_MEMBERS"`
	IPTMembers   int64   `json:"IPT_MEMBERS"`
	PregMembers  int64   `json:"PREG_MEMBERS"`
	Exclusions   int64   `json:"EXCLUSIONS"`
}

// Bucket is one group of a breakdown.
type Bucket struct {
	Label   string  `json:"LABEL"`
	Count   int64   `json:"CNT"`
	AvgPMPM float64 `json:"AVG_PMPM"`
}

// SummaryReport is the summary mode response.
type SummaryReport struct {
	Summary     Summary  `json:"summary"`
	ByGender    []Bucket `json:"byGender"`
	ByAge       []Bucket `json:"byAge"`
	ByProduct   []Bucket `json:"byProduct"`
	ByPMPMGroup []Bucket `json:"byPmpmGrp"`
}

// DataPage is the data mode response.
type DataPage struct {
	Rows  []warehouse.PopulationRow `json:"rows"`
	Total int64                     `json:"total"`
	Page  int                       `json:"page"`
	Limit int                       `json:"limit"`
}
