package member

// Recalculate derives the eligibility flags of every member from one
// thresholds snapshot. A member is an anchor when its PMPM lies within the
// band; every member of a family that has at least one anchor is eligible.
// The input slice is not modified.
func Recalculate(members []Member, t Thresholds) []Member {
	anchored := make(map[string]bool)
	for _, m := range members {
		if t.Contains(m.PMPM) {
			anchored[m.FamilyName] = true
		}
	}

	out := make([]Member, len(members))
	for i, m := range members {
		m.PMPMEligible = flag(t.Contains(m.PMPM))
		m.Anchor = m.PMPMEligible
		m.FamilyEligible = flag(anchored[m.FamilyName])
		m.Eligible = m.FamilyEligible
		out[i] = m
	}
	return out
}

// summarize counts anchors and eligible members.
func summarize(members []Member) RecalcResult {
	res := RecalcResult{Members: len(members)}
	for _, m := range members {
		res.Anchors += m.Anchor
		res.Eligible += m.Eligible
	}
	return res
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}
