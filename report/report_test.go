package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/qaprobe/models"
)

func fixedGenerator() *Generator {
	g := NewGenerator("https://site.example/")
	g.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 890000000, time.Local) }
	return g
}

func TestGenerate_OrdersAndAnnotatesIssues(t *testing.T) {
	functional := []models.Issue{
		{Type: models.TypeBug, Category: "clickable_elements", Description: "f1", Severity: models.Medium},
	}
	nonFunctional := []models.Issue{
		{Type: models.TypeError, Category: "security", Description: "n1", Severity: models.High},
		{Type: models.TypeAccessibility, Category: "aria_attributes", Description: "n2", Severity: models.Low},
	}

	r := fixedGenerator().Generate(functional, nonFunctional)

	assert.Equal(t, models.TestInfo{
		TargetWebsite: "https://site.example/",
		TestDate:      "2025-03-04T05:06:07.890000",
		TestType:      "Comprehensive QA Testing",
	}, r.TestInfo)
	require.Len(t, r.Issues, 3)
	assert.Equal(t, "f1", r.Issues[0].Description)
	assert.Equal(t, "FunctionalTester", r.Issues[0].Tester)
	assert.Equal(t, models.CategoryFunctional, r.Issues[0].TestCategory)
	assert.Equal(t, "n2", r.Issues[2].Description)
	assert.Equal(t, "NonFunctionalTester", r.Issues[2].Tester)
	assert.Equal(t, models.CategoryNonFunctional, r.Issues[2].TestCategory)
	assert.Equal(t, models.Summary{TotalIssues: 3, HighIssues: 1, MediumIssues: 1, LowIssues: 1}, r.Summary)

	var cats []string
	for _, rec := range r.Recommendations {
		cats = append(cats, rec.Category)
	}
	assert.Equal(t, []string{"Security", "Functionality", "General"}, cats)
}

func TestGenerate_NoIssues(t *testing.T) {
	r := fixedGenerator().Generate(nil, nil)

	assert.Equal(t, models.Summary{}, r.Summary)
	assert.Empty(t, r.Recommendations)
	assert.Equal(t, ExitClean, ExitCode(r.Summary))

	data, err := MarshalJSON(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"issues": []`)
	assert.Contains(t, string(data), `"recommendations": []`)
}

func TestSummarize_IgnoresUnknownSeverity(t *testing.T) {
	issues := []models.ReportedIssue{
		{Issue: models.Issue{Severity: models.Critical}},
		{Issue: models.Issue{Severity: "info"}},
	}
	assert.Equal(t, models.Summary{TotalIssues: 2, CriticalIssues: 1}, Summarize(issues))
}

func TestRecommend_MatchesCategoryOnly(t *testing.T) {
	tests := []struct {
		name  string
		issue models.Issue
		want  []string
	}{
		{"security category", models.Issue{Type: models.TypeError, Category: "api_security"}, []string{"Security", "General"}},
		{"performance category", models.Issue{Type: models.TypeError, Category: "performance"}, []string{"Performance", "General"}},
		{"accessibility category", models.Issue{Type: models.TypeError, Category: "accessibility"}, []string{"Accessibility", "General"}},
		{"security type only", models.Issue{Type: models.TypeSecurity, Category: "https"}, []string{"General"}},
		{"performance type only", models.Issue{Type: models.TypePerformance, Category: "load_time"}, []string{"General"}},
		{"accessibility type only", models.Issue{Type: models.TypeAccessibility, Category: "missing_alt_text"}, []string{"General"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := []models.ReportedIssue{{Issue: tt.issue, TestCategory: models.CategoryNonFunctional}}
			recs := Recommend(issues, Summarize(issues))

			var cats []string
			for _, rec := range recs {
				cats = append(cats, rec.Category)
				assert.Len(t, rec.Actions, 4)
			}
			assert.Equal(t, tt.want, cats)
		})
	}
}

func TestGenerate_TypedFindingsOnlyGetGeneralRecommendation(t *testing.T) {
	r := fixedGenerator().Generate(nil, []models.Issue{
		{Type: models.TypePerformance, Category: "load_time", Severity: models.Medium},
		{Type: models.TypeSecurity, Category: "https", Severity: models.High},
		{Type: models.TypeAccessibility, Category: "missing_alt_text", Severity: models.Medium},
	})

	require.Len(t, r.Recommendations, 1)
	assert.Equal(t, "General", r.Recommendations[0].Category)
}

func TestRecommend_ReturnsIndependentCopies(t *testing.T) {
	issues := []models.ReportedIssue{{Issue: models.Issue{Type: models.TypeError, Category: "security"}}}
	recs := Recommend(issues, Summarize(issues))
	recs[0].Actions[0] = "changed"

	again := Recommend(issues, Summarize(issues))
	assert.Equal(t, "Add X-Frame-Options, X-Content-Type-Options, and X-XSS-Protection headers", again[0].Actions[0])
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		summary models.Summary
		want    int
	}{
		{models.Summary{TotalIssues: 3, CriticalIssues: 1, HighIssues: 2}, 1},
		{models.Summary{TotalIssues: 2, HighIssues: 1, LowIssues: 1}, 2},
		{models.Summary{TotalIssues: 1, LowIssues: 1}, 3},
		{models.Summary{}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.summary))
		assert.NotEmpty(t, Verdict(tt.summary))
	}
}

func sampleReport() *models.Report {
	r := fixedGenerator().Generate(
		[]models.Issue{{Type: models.TypeError, Category: "navigation", Description: "Navigation failed: boom", Severity: models.Critical}},
		[]models.Issue{{Type: models.TypeSecurity, Category: "xss", Description: "payload <script>alert('XSS')</script>", Severity: models.High}},
	)
	return r
}

func TestMarshalJSON_DoesNotEscapeHTML(t *testing.T) {
	data, err := MarshalJSON(sampleReport())
	require.NoError(t, err)

	assert.Contains(t, string(data), "<script>alert('XSS')</script>")
	assert.Contains(t, string(data), "\n  \"summary\": {")

	var decoded models.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 2, decoded.Summary.TotalIssues)
}

func TestSave_WritesEachFormat(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)

	paths, err := saveAt(sampleReport(), dir, []string{"json", "HTML", "md", "pdf", "json"}, now)
	require.NoError(t, err)

	require.Equal(t, []string{
		filepath.Join(dir, "qa_report_20250102_030405.json"),
		filepath.Join(dir, "qa_report_20250102_030405.html"),
		filepath.Join(dir, "qa_report_20250102_030405.md"),
	}, paths)

	page, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(page), "&lt;script&gt;")
	assert.NotContains(t, string(page), "<script>alert")

	md, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Comprehensive QA Testing Report")
	assert.Contains(t, string(md), "Navigation failed: boom")
}

func TestSave_DefaultsToJSON(t *testing.T) {
	dir := t.TempDir()
	paths, err := Save(sampleReport(), dir, nil)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasSuffix(paths[0], ".json"))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, sampleReport())
	out := buf.String()

	assert.Contains(t, out, "COMPREHENSIVE QA TESTING REPORT")
	assert.Contains(t, out, "https://site.example/")
	assert.Contains(t, out, "2 issues found that need attention.")
	assert.Contains(t, out, "CRITICAL & HIGH PRIORITY ISSUES (2):")
	assert.Contains(t, out, "navigation: Navigation failed: boom")
	assert.Contains(t, out, "Functionality (high priority)")
}

func TestPrintSummary_Clean(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, fixedGenerator().Generate(nil, nil))

	assert.Contains(t, buf.String(), "No issues found during testing.")
	assert.NotContains(t, buf.String(), "RECOMMENDATIONS")
}
