package member

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paramean/targeting/internal/shared/errors"
)

// Member is one entry of the operator-maintained member list. The four flags
// are derived by Recalculate and hold 0 or 1.
type Member struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	FamilyName     string    `json:"familyName"`
	PMPM           float64   `json:"pmpm"`
	PMPMEligible   int       `json:"pmpmEligible"`
	Anchor         int       `json:"anchor"`
	FamilyEligible int       `json:"familyEligible"`
	Eligible       int       `json:"eligible"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MarshalJSON also emits memberName, the key older dashboard builds read.
func (m Member) MarshalJSON() ([]byte, error) {
	type plain Member
	return json.Marshal(struct {
		plain
		MemberName string `json:"memberName"`
	}{plain(m), m.Name})
}

// Thresholds is the inclusive PMPM eligibility band stored in the settings
// singleton.
type Thresholds struct {
	Lower float64 `json:"pmpmLower"`
	Upper float64 `json:"pmpmUpper"`
}

// DefaultThresholds is the band seeded on first start.
var DefaultThresholds = Thresholds{Lower: 600, Upper: 1000}

// Contains reports whether pmpm lies within the band.
func (t Thresholds) Contains(pmpm float64) bool {
	return t.Lower <= pmpm && pmpm <= t.Upper
}

// NewMember is a validated add request.
type NewMember struct {
	Name       string
	FamilyName string
	PMPM       float64
}

// RecalcResult summarizes one eligibility recalculation.
type RecalcResult struct {
	// Skipped is set when no settings row exists.
	Skipped  bool `json:"skipped"`
	Members  int  `json:"members"`
	Anchors  int  `json:"anchors"`
	Eligible int  `json:"eligible"`
}

// Amount is a JSON number that also accepts a numeric string, matching what
// dashboard form fields submit.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		data = []byte(s)
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", data)
	}
	*a = Amount(f)
	return nil
}

// --- Request types ---

// AddMemberRequest accepts both memberName and name for the display name.
type AddMemberRequest struct {
	MemberName string  `json:"memberName"`
	Name       string  `json:"name"`
	FamilyName string  `json:"familyName"`
	PMPM       *Amount `json:"pmpm"`
}

// Validate checks required fields and returns the normalized member.
func (r AddMemberRequest) Validate() (NewMember, error) {
	name := strings.TrimSpace(r.MemberName)
	if name == "" {
		name = strings.TrimSpace(r.Name)
	}
	family := strings.TrimSpace(r.FamilyName)

	details := map[string]string{}
	if name == "" {
		details["memberName"] = "required"
	}
	if family == "" {
		details["familyName"] = "required"
	}
	if r.PMPM == nil {
		details["pmpm"] = "required"
	}
	if len(details) > 0 {
		return NewMember{}, errors.Validation("Missing required fields", details)
	}

	pmpm := float64(*r.PMPM)
	if !finite(pmpm) || pmpm < 0 {
		return NewMember{}, errors.Validation("invalid pmpm", map[string]string{"pmpm": "must be a non-negative number"})
	}
	return NewMember{Name: name, FamilyName: family, PMPM: pmpm}, nil
}

// UpdateSettingsRequest replaces the eligibility band.
type UpdateSettingsRequest struct {
	PMPMLower *Amount `json:"pmpmLower"`
	PMPMUpper *Amount `json:"pmpmUpper"`
}

// Validate requires both bounds, non-negative and ordered.
func (r UpdateSettingsRequest) Validate() (Thresholds, error) {
	details := map[string]string{}
	if r.PMPMLower == nil {
		details["pmpmLower"] = "required"
	}
	if r.PMPMUpper == nil {
		details["pmpmUpper"] = "required"
	}
	if len(details) > 0 {
		return Thresholds{}, errors.Validation("Missing required fields", details)
	}

	t := Thresholds{Lower: float64(*r.PMPMLower), Upper: float64(*r.PMPMUpper)}
	switch {
	case !finite(t.Lower) || !finite(t.Upper) || t.Lower < 0 || t.Upper < 0:
		return Thresholds{}, errors.Validation("invalid thresholds", map[string]string{"pmpmLower": "bounds must be non-negative numbers"})
	case t.Lower > t.Upper:
		return Thresholds{}, errors.Validation("invalid thresholds", map[string]string{"pmpmUpper": "must be greater than or equal to pmpmLower"})
	}
	return t, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// DuplicateMessage is returned when the (name, family, pmpm) triple exists.
const DuplicateMessage = "Duplicate record: a member with the same name, family, and PMPM already exists"
