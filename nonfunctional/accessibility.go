package nonfunctional

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/qaprobe/models"
)

var (
	imgMatcher     = cascadia.MustCompile("img")
	headingMatcher = cascadia.MustCompile("h1, h2, h3, h4, h5, h6")
	formMatcher    = cascadia.MustCompile("form")
	inputMatcher   = cascadia.MustCompile("input")
	labelMatcher   = cascadia.MustCompile("label[for]")
	ariaMatcher    = cascadia.MustCompile("[aria-label], [aria-labelledby]")
)

// unlabelledTypes are input types that never need a label.
var unlabelledTypes = map[string]bool{
	"submit": true,
	"button": true,
	"hidden": true,
}

func (t *Tester) accessibilityAudit(ctx context.Context, f *models.Findings) {
	slog.Info("conducting accessibility audit")

	resp, err := t.client.Get(ctx, t.target, nil)
	if err != nil {
		f.Add(models.TypeError, "accessibility", models.Medium, "Accessibility audit failed: %v", err)
		return
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		f.Add(models.TypeError, "accessibility", models.Medium, "Accessibility audit failed: %v", err)
		return
	}

	auditDocument(doc, f)
}

// auditDocument applies the static accessibility checks to a parsed page.
func auditDocument(doc *goquery.Document, f *models.Findings) {
	missingAlt := doc.FindMatcher(imgMatcher).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("alt", "") == ""
	}).Length()
	if missingAlt > 0 {
		f.Add(models.TypeAccessibility, "missing_alt_text", models.Medium,
			"Found %d images without alt text", missingAlt)
	}

	if skipsHeadingLevel(doc) {
		f.Add(models.TypeAccessibility, "heading_structure", models.Low,
			"Skipped heading levels detected (poor document structure)")
	}

	labelled := make(map[string]bool)
	doc.FindMatcher(labelMatcher).Each(func(_ int, s *goquery.Selection) {
		labelled[s.AttrOr("for", "")] = true
	})
	doc.FindMatcher(formMatcher).Each(func(_ int, form *goquery.Selection) {
		form.FindMatcher(inputMatcher).Each(func(_ int, in *goquery.Selection) {
			if unlabelledTypes[strings.ToLower(in.AttrOr("type", ""))] {
				return
			}
			id := in.AttrOr("id", "")
			if id == "" || labelled[id] {
				return
			}
			f.Add(models.TypeAccessibility, "missing_labels", models.Medium,
				"Input field with id '%s' lacks proper label", id)
		})
	})

	if doc.FindMatcher(ariaMatcher).Length() == 0 {
		f.Add(models.TypeAccessibility, "aria_attributes", models.Low,
			"No ARIA attributes found (may affect screen reader accessibility)")
	}
}

// skipsHeadingLevel reports whether any heading in document order is more
// than one level deeper than the heading before it.
func skipsHeadingLevel(doc *goquery.Document) bool {
	prev := 0
	skipped := false
	doc.FindMatcher(headingMatcher).EachWithBreak(func(i int, s *goquery.Selection) bool {
		level := int(goquery.NodeName(s)[1] - '0')
		if i > 0 && level-prev > 1 {
			skipped = true
			return false
		}
		prev = level
		return true
	})
	return skipped
}
