package models

import "fmt"

// Severity ranks an issue. Values are lowercase strings as they appear in
// the JSON report.
type Severity string

const (
	// Critical means the site or API is unusable.
	Critical Severity = "critical"

	// High means a significant defect that needs prompt attention.
	High Severity = "high"

	// Medium means a moderate defect.
	Medium Severity = "medium"

	// Low means a minor defect or hygiene problem.
	Low Severity = "low"
)

// Severities lists every level from most to least severe.
var Severities = []Severity{Critical, High, Medium, Low}

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low:
		return true
	}
	return false
}

// Score returns a numeric score for sorting and comparison.
// Critical=4, High=3, Medium=2, Low=1, Unknown=0.
func (s Severity) Score() int {
	switch s {
	case Critical:
		return 4
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// Issue types emitted by the probes.
const (
	TypeError         = "error"
	TypeBug           = "bug"
	TypePerformance   = "performance_issue"
	TypeSecurity      = "security_vulnerability"
	TypeAccessibility = "accessibility_issue"
	TypeResponsive    = "responsiveness_issue"
)

// Issue is a single finding produced by a probe.
type Issue struct {
	Type        string   `json:"type"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Test categories used to annotate issues in the report.
const (
	CategoryFunctional    = "functional"
	CategoryNonFunctional = "non_functional"
)

// ReportedIssue is an Issue annotated with the tester that produced it.
type ReportedIssue struct {
	Issue
	Tester       string `json:"tester"`
	TestCategory string `json:"test_category"`
}

// Findings accumulates issues in emission order. The zero value is ready to use.
type Findings struct {
	items []Issue
}

// Add appends an issue whose description is built from format and args.
func (f *Findings) Add(typ, category string, sev Severity, format string, args ...any) {
	desc := format
	if len(args) > 0 {
		desc = fmt.Sprintf(format, args...)
	}
	f.items = append(f.items, Issue{
		Type:        typ,
		Category:    category,
		Description: desc,
		Severity:    sev,
	})
}

// Len returns the number of issues collected so far.
func (f *Findings) Len() int { return len(f.items) }

// Items returns a copy of the collected issues.
func (f *Findings) Items() []Issue {
	out := make([]Issue, len(f.items))
	copy(out, f.items)
	return out
}
