// Package quota decides whether a user may create another podcast in the
// current quota period.
package quota

import "strings"

// Plan is a subscription tier.
type Plan int

const (
	Free Plan = iota
	Pro
	Enterprise
)

var ceilings = [...]int{
	Free:       5,
	Pro:        30,
	Enterprise: 100,
}

var planNames = [...]string{
	Free:       "FREE",
	Pro:        "PRO",
	Enterprise: "ENTERPRISE",
}

// ParsePlan maps a stored plan name to a Plan. Matching is case-insensitive;
// empty and unrecognized names are Free.
func ParsePlan(s string) Plan {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PRO":
		return Pro
	case "ENTERPRISE":
		return Enterprise
	default:
		return Free
	}
}

// Ceiling is the number of podcasts a plan may create per period.
func (p Plan) Ceiling() int {
	if p < Free || p > Enterprise {
		return ceilings[Free]
	}
	return ceilings[p]
}

func (p Plan) String() string {
	if p < Free || p > Enterprise {
		return planNames[Free]
	}
	return planNames[p]
}
