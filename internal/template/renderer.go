package template

import (
	"regexp"
	"strings"
)

// placeholder matches {{name}} with optional whitespace inside the braces.
// Variable names are matched exactly and case-sensitively.
var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Render substitutes vars into every part of the template. Placeholders
// without a matching variable are left as-is so missing data is visible
// rather than silently blanked.
func Render(tpl *Template, vars map[string]string) Rendered {
	return Rendered{
		Subject:     Substitute(tpl.Subject, vars),
		HTMLBody:    Substitute(tpl.HTMLBody, vars),
		TextBody:    Substitute(tpl.TextBody, vars),
		PreviewText: Substitute(tpl.PreviewText, vars),
	}
}

// Substitute replaces {{name}} placeholders in s with values from vars.
func Substitute(s string, vars map[string]string) string {
	if s == "" || !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}
