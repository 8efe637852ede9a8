package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/use-agent/qaprobe/models"
)

var (
	primary = lipgloss.Color("#7D56F4")
	muted   = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(primary).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(primary)
	labelStyle   = lipgloss.NewStyle().Foreground(muted).Width(22)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D26A")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB800")).Bold(true)

	severityStyles = map[models.Severity]lipgloss.Style{
		models.Critical: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		models.High:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		models.Medium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD93D")),
		models.Low:      lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77")),
	}
)

func severityStyle(s models.Severity) lipgloss.Style {
	if st, ok := severityStyles[s]; ok {
		return st
	}
	return lipgloss.NewStyle()
}

const ruleWidth = 80

// PrintSummary writes a human-readable summary of r to w: counts per
// severity, the critical and high issues, and the recommendations.
func PrintSummary(w io.Writer, r *models.Report) {
	rule := strings.Repeat("=", ruleWidth)
	s := r.Summary

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, titleStyle.Render("COMPREHENSIVE QA TESTING REPORT"))
	fmt.Fprintln(w, rule)

	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render("SUMMARY"))
	row := func(label string, value any) {
		fmt.Fprintf(w, "   %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(fmt.Sprint(value)))
	}
	row("Target Website", r.TestInfo.TargetWebsite)
	row("Test Date", r.TestInfo.TestDate)
	row("Total Issues Found", s.TotalIssues)
	for _, sev := range models.Severities {
		label := strings.ToUpper(sev.String()[:1]) + sev.String()[1:] + " Issues"
		fmt.Fprintf(w, "   %s %s\n", labelStyle.Render(label+":"), severityStyle(sev).Render(fmt.Sprint(s.Count(sev))))
	}

	if s.TotalIssues == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, successStyle.Render("EXCELLENT! No issues found during testing."))
	} else {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf("%d issues found that need attention.", s.TotalIssues)))
		printUrgent(w, r.Issues)
		printRecommendations(w, r.Recommendations)
	}

	if r.Analysis != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("ANALYSIS"))
		fmt.Fprintln(w, r.Analysis)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
}

func printUrgent(w io.Writer, issues []models.ReportedIssue) {
	var urgent []models.ReportedIssue
	for _, is := range issues {
		if is.Severity == models.Critical || is.Severity == models.High {
			urgent = append(urgent, is)
		}
	}
	if len(urgent) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render(fmt.Sprintf("CRITICAL & HIGH PRIORITY ISSUES (%d):", len(urgent))))
	for i, is := range urgent {
		tag := severityStyle(is.Severity).Render("[" + strings.ToUpper(is.Severity.String()) + "]")
		fmt.Fprintf(w, "   %d. %s %s: %s\n", i+1, tag, is.Category, is.Description)
	}
}

func printRecommendations(w io.Writer, recs []models.Recommendation) {
	if len(recs) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render("RECOMMENDATIONS:"))
	for _, rec := range recs {
		fmt.Fprintf(w, "   • %s (%s priority): %s\n", rec.Category, rec.Priority, rec.Description)
	}
}
