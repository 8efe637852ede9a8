package models

// Report is the document produced once per run.
type Report struct {
	TestInfo        TestInfo         `json:"test_info"`
	Summary         Summary          `json:"summary"`
	Issues          []ReportedIssue  `json:"issues"`
	Recommendations []Recommendation `json:"recommendations"`

	// Analysis is a narrative summary, present only when an LLM is configured.
	Analysis string `json:"analysis,omitempty"`
}

// TestInfo describes what was tested and when.
type TestInfo struct {
	TargetWebsite string `json:"target_website"`
	TestDate      string `json:"test_date"`
	TestType      string `json:"test_type"`
}

// Summary holds the issue counts per severity.
type Summary struct {
	TotalIssues    int `json:"total_issues"`
	CriticalIssues int `json:"critical_issues"`
	HighIssues     int `json:"high_issues"`
	MediumIssues   int `json:"medium_issues"`
	LowIssues      int `json:"low_issues"`
}

// Count returns the number of issues at severity s.
func (s Summary) Count(sev Severity) int {
	switch sev {
	case Critical:
		return s.CriticalIssues
	case High:
		return s.HighIssues
	case Medium:
		return s.MediumIssues
	case Low:
		return s.LowIssues
	}
	return 0
}

// Recommendation is an action plan derived from the issue categories present.
type Recommendation struct {
	Category    string   `json:"category"`
	Priority    Severity `json:"priority"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}
