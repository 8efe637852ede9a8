package report

import (
	"strings"

	"github.com/use-agent/qaprobe/models"
)

var (
	securityRecommendation = models.Recommendation{
		Category:    "Security",
		Priority:    models.High,
		Description: "Implement security headers and HTTPS to protect against common vulnerabilities",
		Actions: []string{
			"Add X-Frame-Options, X-Content-Type-Options, and X-XSS-Protection headers",
			"Implement HTTPS with proper SSL/TLS configuration",
			"Add Content Security Policy (CSP) headers",
			"Implement input validation and sanitization for all user inputs",
		},
	}

	performanceRecommendation = models.Recommendation{
		Category:    "Performance",
		Priority:    models.Medium,
		Description: "Optimize website performance for better user experience",
		Actions: []string{
			"Optimize images and assets to reduce page size",
			"Implement caching strategies",
			"Optimize server response times",
			"Consider using a CDN for static assets",
		},
	}

	accessibilityRecommendation = models.Recommendation{
		Category:    "Accessibility",
		Priority:    models.Medium,
		Description: "Improve website accessibility for users with disabilities",
		Actions: []string{
			"Add alt text to all images",
			"Ensure proper heading structure (h1, h2, h3, etc.)",
			"Add proper labels to form inputs",
			"Implement ARIA attributes for better screen reader support",
		},
	}

	functionalityRecommendation = models.Recommendation{
		Category:    "Functionality",
		Priority:    models.High,
		Description: "Fix functional issues to ensure proper website operation",
		Actions: []string{
			"Fix broken links and navigation issues",
			"Implement proper form validation",
			"Test all user flows thoroughly",
			"Ensure API endpoints are working correctly",
		},
	}

	generalRecommendation = models.Recommendation{
		Category:    "General",
		Priority:    models.Medium,
		Description: "Implement comprehensive testing and monitoring",
		Actions: []string{
			"Set up automated testing pipelines",
			"Implement continuous monitoring for performance and security",
			"Regular security audits and penetration testing",
			"User acceptance testing with real users",
		},
	}
)

// Recommend derives recommendations from the issue categories present, in
// the fixed order Security, Performance, Accessibility, Functionality,
// General.
func Recommend(issues []models.ReportedIssue, summary models.Summary) []models.Recommendation {
	out := []models.Recommendation{}
	if anyMentions(issues, "security") {
		out = append(out, clone(securityRecommendation))
	}
	if anyMentions(issues, "performance") {
		out = append(out, clone(performanceRecommendation))
	}
	if anyMentions(issues, "accessibility") {
		out = append(out, clone(accessibilityRecommendation))
	}
	for _, is := range issues {
		if is.TestCategory == models.CategoryFunctional {
			out = append(out, clone(functionalityRecommendation))
			break
		}
	}
	if summary.TotalIssues > 0 {
		out = append(out, clone(generalRecommendation))
	}
	return out
}

// anyMentions reports whether keyword appears in the category of any issue.
// The issue type is not consulted.
func anyMentions(issues []models.ReportedIssue, keyword string) bool {
	for _, is := range issues {
		if strings.Contains(is.Category, keyword) {
			return true
		}
	}
	return false
}

// clone copies the actions so callers cannot mutate the templates.
func clone(r models.Recommendation) models.Recommendation {
	r.Actions = append([]string(nil), r.Actions...)
	return r
}
