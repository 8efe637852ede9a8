package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// clickableSelectors are queried in order; their results are concatenated.
var clickableSelectors = []string{
	"a",
	"button",
	"input[type='submit'], input[type='button']",
}

const (
	formFieldSelector  = "input, textarea, select"
	submitSelector     = "input[type='submit'], button[type='submit']"
	validationSelector = ".error, .validation-error, [role='alert']"
)

// Clickable identifies an element by its selector group and position so it
// can be located again after the page navigates back.
type Clickable struct {
	Selector string
	Index    int
	Tag      string
	Label    string
	Visible  bool
	Enabled  bool
}

// Form describes a form and the fields that declare `required`.
// Err is set when the form's controls could not be enumerated.
type Form struct {
	Index    int
	Name     string
	Required []Field
	Err      error
}

// Field is a form control.
type Field struct {
	Index int
	Name  string
	Type  string
}

// Clickables lists links, buttons and submit/button inputs in document order
// per group.
func (s *Session) Clickables(ctx context.Context) ([]Clickable, error) {
	p := s.bind(ctx)
	var out []Clickable
	for _, sel := range clickableSelectors {
		els, err := p.Elements(sel)
		if err != nil {
			return nil, fmt.Errorf("browser: query %q: %w", sel, err)
		}
		for i, el := range els {
			c := Clickable{Selector: sel, Index: i}
			c.Tag = tagName(el)
			c.Label = elementLabel(el)
			if visible, err := el.Visible(); err == nil {
				c.Visible = visible
			}
			c.Enabled = !boolProperty(el, "disabled")
			out = append(out, c)
		}
	}
	return out, nil
}

// Click scrolls c into view and clicks it. When the click navigated away it
// goes back so the next element can be located. It reports whether the URL
// changed.
func (s *Session) Click(ctx context.Context, c Clickable) (bool, error) {
	p := s.bind(ctx)
	el, err := nth(p, c.Selector, c.Index)
	if err != nil {
		return false, err
	}
	if err := el.ScrollIntoView(); err != nil {
		return false, fmt.Errorf("scroll into view: %w", err)
	}
	if err := sleepCtx(ctx, s.timing.ScrollSettle); err != nil {
		return false, err
	}

	before := s.CurrentURL(ctx)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, err
	}
	if err := sleepCtx(ctx, s.timing.ClickSettle); err != nil {
		return false, err
	}

	after := s.CurrentURL(ctx)
	if after == before {
		return false, nil
	}
	if err := p.NavigateBack(); err != nil {
		return true, fmt.Errorf("navigate back from %s: %w", after, err)
	}
	if err := sleepCtx(ctx, s.timing.BackSettle); err != nil {
		return true, err
	}
	return true, nil
}

// Forms lists the forms on the page with their required fields.
func (s *Session) Forms(ctx context.Context) ([]Form, error) {
	p := s.bind(ctx)
	forms, err := p.Elements("form")
	if err != nil {
		return nil, fmt.Errorf("browser: query forms: %w", err)
	}

	out := make([]Form, 0, len(forms))
	for i, f := range forms {
		form := Form{Index: i, Name: firstAttr(f, "Unknown Form", "id", "name")}
		fields, err := f.Elements(formFieldSelector)
		if err != nil {
			form.Err = fmt.Errorf("query fields: %w", err)
			out = append(out, form)
			continue
		}
		for j, field := range fields {
			if req, err := field.Attribute("required"); err != nil || req == nil {
				continue
			}
			form.Required = append(form.Required, Field{
				Index: j,
				Name:  firstAttr(field, "Unknown", "name", "id"),
				Type:  firstAttr(field, tagName(field), "type"),
			})
		}
		out = append(out, form)
	}
	return out, nil
}

// SubmitEmpty clears field, submits the form, and reports whether any
// validation message became visible on the page.
func (s *Session) SubmitEmpty(ctx context.Context, form Form, field Field) (bool, error) {
	p := s.bind(ctx)
	f, err := nth(p, "form", form.Index)
	if err != nil {
		return false, err
	}
	fields, err := f.Elements(formFieldSelector)
	if err != nil {
		return false, err
	}
	if field.Index >= len(fields) {
		return false, fmt.Errorf("field %q no longer present", field.Name)
	}
	if _, err := fields[field.Index].Eval(`() => { if ('value' in this) this.value = '' }`); err != nil {
		return false, fmt.Errorf("clear %q: %w", field.Name, err)
	}

	submits, err := f.Elements(submitSelector)
	if err != nil {
		return false, err
	}
	if len(submits) == 0 {
		return false, fmt.Errorf("form %q has no submit control", form.Name)
	}
	if err := submits.First().Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, fmt.Errorf("click submit: %w", err)
	}
	if err := sleepCtx(ctx, s.timing.SubmitSettle); err != nil {
		return false, err
	}

	messages, err := p.Elements(validationSelector)
	if err != nil {
		return false, err
	}
	slog.Debug("form submitted without required field",
		"form", form.Name, "field", field.Name, "messages", len(messages))
	return len(messages) > 0, nil
}

func nth(p *rod.Page, selector string, index int) (*rod.Element, error) {
	els, err := p.Elements(selector)
	if err != nil {
		return nil, err
	}
	if index >= len(els) {
		return nil, fmt.Errorf("element %s[%d] no longer present", selector, index)
	}
	return els[index], nil
}

func tagName(el *rod.Element) string {
	v, err := el.Property("tagName")
	if err != nil {
		return "element"
	}
	return strings.ToLower(v.Str())
}

func boolProperty(el *rod.Element, name string) bool {
	v, err := el.Property(name)
	if err != nil {
		return false
	}
	return v.Bool()
}

// elementLabel returns the visible text, else aria-label, else "Unknown".
func elementLabel(el *rod.Element) string {
	if text, err := el.Text(); err == nil {
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return firstAttr(el, "Unknown", "aria-label")
}

// firstAttr returns the first non-empty attribute among names, or fallback.
func firstAttr(el *rod.Element, fallback string, names ...string) string {
	for _, name := range names {
		v, err := el.Attribute(name)
		if err == nil && v != nil && *v != "" {
			return *v
		}
	}
	return fallback
}
