package memory

import (
	"regexp"
	"strings"
)

// Profile is the long-term personalization state for one user. It survives
// across sessions and only ever carries advisory weight: nothing in it may
// bypass a validation check.
type Profile struct {
	QueryStyle       string            `json:"query_style"`       // short | balanced | verbose
	OutputPreference string            `json:"output_preference"` // table | summary
	FrequentFilters  map[string]string `json:"frequent_filters"`
	DomainFocus      map[string]int    `json:"domain_focus"`
	TotalQueries     int               `json:"total_queries"`
}

// DefaultProfile returns the profile skeleton for new users.
func DefaultProfile() Profile {
	return Profile{
		QueryStyle:       "balanced",
		OutputPreference: "table",
		FrequentFilters:  map[string]string{},
		DomainFocus: map[string]int{
			"HR":         0,
			"Inventory":  0,
			"Production": 0,
			"Sales":      0,
		},
	}
}

// Hints is the small advisory object folded into the grounding step.
type Hints struct {
	FrequentFilters  map[string]string
	PrimaryDomain    string
	OutputPreference string
	QueryStyle       string
}

// Empty reports whether the hints carry no signal at all.
func (h Hints) Empty() bool {
	return len(h.FrequentFilters) == 0 && h.PrimaryDomain == "" &&
		h.OutputPreference == "" && h.QueryStyle == ""
}

// BuildHints projects a profile into hints. Pure: no I/O, no mutation.
// A profile with no query history yields empty hints; defaults alone are
// not a personalization signal.
func BuildHints(p Profile) Hints {
	if p.TotalQueries == 0 {
		return Hints{}
	}
	h := Hints{
		FrequentFilters:  p.FrequentFilters,
		OutputPreference: p.OutputPreference,
		QueryStyle:       p.QueryStyle,
	}

	// Dominant domain only counts once the user has actually queried it.
	best, bestCount := "", 0
	for domain, count := range p.DomainFocus {
		if count > bestCount || (count == bestCount && count > 0 && domain < best) {
			best, bestCount = domain, count
		}
	}
	if bestCount > 0 {
		h.PrimaryDomain = best
	}
	return h
}

// FormatHints renders hints as the soft-guidance text block injected into
// the generation prompt. Returns empty string when there is nothing to say.
func FormatHints(h Hints) string {
	if h.Empty() {
		return ""
	}

	lines := []string{"=== USER PREFERENCES (use as soft guidance) ==="}
	if len(h.FrequentFilters) > 0 {
		var pairs []string
		for k, v := range h.FrequentFilters {
			pairs = append(pairs, k+"="+v)
		}
		lines = append(lines, "  Frequently used filters: "+strings.Join(pairs, ", "))
	}
	if h.PrimaryDomain != "" {
		lines = append(lines, "  Primary domain of interest: "+h.PrimaryDomain)
	}
	if h.OutputPreference != "" {
		lines = append(lines, "  Preferred output style: "+h.OutputPreference)
	}
	if h.QueryStyle != "" {
		lines = append(lines, "  Query style: "+h.QueryStyle)
	}
	lines = append(lines, "=== END USER PREFERENCES ===")
	return strings.Join(lines, "\n")
}

var domainBuckets = map[string][]string{
	"HR":         {"employee", "staff", "salary", "department", "attendance", "leave", "manager"},
	"Inventory":  {"inventory", "stock", "material", "supplier", "reorder", "fabric"},
	"Production": {"product", "production", "manufacturing", "stitching", "cutting"},
	"Sales":      {"sale", "revenue", "customer", "selling"},
}

var (
	timeFilterRe = regexp.MustCompile(`\b(today|yesterday|this week|this month|this year|last week|last month|last year)\b`)
	deptFilterRe = regexp.MustCompile(`\b(?:department|dept)\s+([a-z][a-z&-]*)`)
)

// RecordQuery folds one successful query into the profile: total count,
// domain-focus counters and learned frequent filters.
func RecordQuery(p *Profile, question string) {
	p.TotalQueries++
	if p.DomainFocus == nil {
		p.DomainFocus = map[string]int{}
	}
	if p.FrequentFilters == nil {
		p.FrequentFilters = map[string]string{}
	}
	lower := strings.ToLower(question)
	for domain, keywords := range domainBuckets {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				p.DomainFocus[domain]++
				break
			}
		}
	}
	if m := timeFilterRe.FindString(lower); m != "" {
		p.FrequentFilters["time_range"] = m
	}
	if m := deptFilterRe.FindStringSubmatch(lower); m != nil {
		p.FrequentFilters["department"] = m[1]
	}
}
