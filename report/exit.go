package report

import "github.com/use-agent/qaprobe/models"

// Process exit codes.
const (
	ExitClean    = 0
	ExitCritical = 1
	ExitHigh     = 2
	ExitIssues   = 3

	// ExitFailure is used for unexpected errors and interruption.
	ExitFailure = 1
)

// ExitCode maps a summary to the process exit code.
func ExitCode(s models.Summary) int {
	switch {
	case s.CriticalIssues > 0:
		return ExitCritical
	case s.HighIssues > 0:
		return ExitHigh
	case s.TotalIssues > 0:
		return ExitIssues
	default:
		return ExitClean
	}
}

// Verdict is the one-line closing message for a summary.
func Verdict(s models.Summary) string {
	switch ExitCode(s) {
	case ExitCritical:
		return "Critical issues found. Website requires immediate attention."
	case ExitHigh:
		return "High priority issues found. Website needs improvement."
	case ExitIssues:
		return "Issues found. Consider addressing them for better quality."
	default:
		return "All tests passed! Website quality is excellent."
	}
}
