// Package report folds probe findings into a Report, derives recommendations,
// persists the result and maps it to a process exit code.
package report

import (
	"log/slog"
	"time"

	"github.com/use-agent/qaprobe/models"
)

// TestType is the fixed test_type recorded in every report.
const TestType = "Comprehensive QA Testing"

// isoLocal matches the ISO-8601 local timestamp with microseconds used in
// test_date.
const isoLocal = "2006-01-02T15:04:05.000000"

// Generator builds reports for one target.
type Generator struct {
	target string
	now    func() time.Time
}

// NewGenerator creates a Generator for target.
func NewGenerator(target string) *Generator {
	return &Generator{target: target, now: time.Now}
}

// Generate merges functional issues followed by non-functional issues,
// annotates each with its tester, and computes the summary and
// recommendations.
func (g *Generator) Generate(functional, nonFunctional []models.Issue) *models.Report {
	slog.Info("generating report",
		"functional_issues", len(functional),
		"non_functional_issues", len(nonFunctional),
	)

	issues := make([]models.ReportedIssue, 0, len(functional)+len(nonFunctional))
	issues = annotate(issues, functional, "FunctionalTester", models.CategoryFunctional)
	issues = annotate(issues, nonFunctional, "NonFunctionalTester", models.CategoryNonFunctional)

	summary := Summarize(issues)
	return &models.Report{
		TestInfo: models.TestInfo{
			TargetWebsite: g.target,
			TestDate:      g.now().Format(isoLocal),
			TestType:      TestType,
		},
		Summary:         summary,
		Issues:          issues,
		Recommendations: Recommend(issues, summary),
	}
}

func annotate(dst []models.ReportedIssue, src []models.Issue, tester, category string) []models.ReportedIssue {
	for _, is := range src {
		dst = append(dst, models.ReportedIssue{Issue: is, Tester: tester, TestCategory: category})
	}
	return dst
}

// Summarize counts issues in total and per severity. Issues with an
// unrecognized severity count toward the total only.
func Summarize(issues []models.ReportedIssue) models.Summary {
	s := models.Summary{TotalIssues: len(issues)}
	for _, is := range issues {
		switch is.Severity {
		case models.Critical:
			s.CriticalIssues++
		case models.High:
			s.HighIssues++
		case models.Medium:
			s.MediumIssues++
		case models.Low:
			s.LowIssues++
		}
	}
	return s
}
