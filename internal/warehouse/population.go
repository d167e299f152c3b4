package warehouse

import (
	"fmt"
	"regexp"
	"strings"
)

// Column is a population table column. Only the constants below are ever
// rendered into SQL, so column names never come from request input.
type Column string

const (
	ColMemberID      Column = "MEMBER_ID"
	ColGender        Column = "MEMBER_GENDER"
	ColProduct       Column = "MEMBER_PRODUCT_GL"
	ColAgeGroup      Column = "AGE_GRP"
	ColAdultChild    Column = "ADULT_CHILD"
	// MM may be stored as an integer or a decimal; it is always summed and
	// compared as a double.
	ColMemberMonths  Column = "MM"
	ColTotalPaid     Column = "TOT_PD"
	ColPMPM          Column = "PMPM"
	ColPMPMGroup     Column = "PMPM_GRP"
	ColPCPVisit      Column = "PCPV"
	ColExclusion     Column = "EXCL"
	ColChronic       Column = "CC"
	ColBehavioral    Column = "BH"
	ColPregnancy     Column = "PREG"
	ColInpatient     Column = "IPT"
	ColED            Column = "ED"
	ColEDInpatient   Column = "ED_IPT"
	ColHouseholdSize Column = "HSHLD"
	ColAdults        Column = "ADULTS"
	ColHeadOfHouse   Column = "MEMBER_HEADOFHOUSE"
	ColAnchor1       Column = "ANCHO1_250_5000"
	ColAnchor2       Column = "ANCHO2_250_5000"
)

// MemberMonthsValue is MM as a double. MM is summed and compared through it so
// fractional member months survive.
const MemberMonthsValue Column = "CAST(MM AS DOUBLE PRECISION)"

// Values of ColAdultChild.
const (
	Adult = "Adult"
	Child = "Child"
)

// Table is a validated table identifier, optionally schema-qualified.
type Table string

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ParseTable validates name as a plain or schema-qualified identifier.
func ParseTable(name string) (Table, error) {
	if !tableName.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return Table(name), nil
}

// PopulationRow is one individual from the population table as returned by
// the paginated report scan. Numeric columns are nullable in the warehouse and
// come back as JSON null.
type PopulationRow struct {
	MemberID    string   `json:"MEMBER_ID"`
	Gender      string   `json:"MEMBER_GENDER"`
	Product     string   `json:"MEMBER_PRODUCT_GL"`
	AgeGroup    string   `json:"AGE_GRP"`
	AdultChild  string   `json:"ADULT_CHILD"`
	MM          *float64 `json:"MM"`
	TotalPaid   *float64 `json:"TOT_PD"`
	PMPM        *float64 `json:"PMPM"`
	PMPMGroup   string   `json:"PMPM_GRP"`
	PCPVisit    *int64   `json:"PCPV"`
	Exclusion   *int64   `json:"EXCL"`
	Chronic     *int64   `json:"CC"`
	Behavioral  *int64   `json:"BH"`
	Pregnancy   *int64   `json:"PREG"`
	Inpatient   *int64   `json:"IPT"`
	ED          *int64   `json:"ED"`
	EDInpatient *int64   `json:"ED_IPT"`
	Household   *int64   `json:"HSHLD"`
	Adults      *int64   `json:"ADULTS"`
	Anchor1     *int64   `json:"ANCHO1_250_5000"`
	Anchor2     *int64   `json:"ANCHO2_250_5000"`
}

// PopulationColumns lists the columns scanned into PopulationRow, in order.
var PopulationColumns = []Column{
	ColMemberID, ColGender, ColProduct, ColAgeGroup, ColAdultChild,
	ColMemberMonths, ColTotalPaid, ColPMPM, ColPMPMGroup, ColPCPVisit, ColExclusion,
	ColChronic, ColBehavioral, ColPregnancy, ColInpatient, ColED, ColEDInpatient,
	ColHouseholdSize, ColAdults, ColAnchor1, ColAnchor2,
}

var (
	textColumns = map[Column]bool{
		ColMemberID: true, ColGender: true, ColProduct: true,
		ColAgeGroup: true, ColAdultChild: true, ColPMPMGroup: true,
	}
	floatColumns = map[Column]bool{
		ColMemberMonths: true, ColTotalPaid: true, ColPMPM: true,
	}
)

// PopulationSelect renders the PopulationColumns select list. Text columns
// are coalesced to ''; numeric columns are cast to the scan type and keep
// their NULLs.
func PopulationSelect() string {
	cols := make([]string, len(PopulationColumns))
	for i, c := range PopulationColumns {
		switch {
		case textColumns[c]:
			cols[i] = Text(c) + " AS " + string(c)
		case floatColumns[c]:
			cols[i] = Float(c) + " AS " + string(c)
		default:
			cols[i] = Int(c) + " AS " + string(c)
		}
	}
	return strings.Join(cols, ", ")
}

// ScanPopulationRow reads one row selected with PopulationSelect.
func ScanPopulationRow(s Scanner) (PopulationRow, error) {
	var r PopulationRow
	err := s.Scan(
		&r.MemberID, &r.Gender, &r.Product, &r.AgeGroup, &r.AdultChild,
		&r.MM, &r.TotalPaid, &r.PMPM, &r.PMPMGroup, &r.PCPVisit, &r.Exclusion,
		&r.Chronic, &r.Behavioral, &r.Pregnancy, &r.Inpatient, &r.ED, &r.EDInpatient,
		&r.Household, &r.Adults, &r.Anchor1, &r.Anchor2,
	)
	return r, err
}
