package prompts

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

var ErrMissingVariable = errors.New("prompts: missing template variable")

var placeholderRe = regexp.MustCompile(`\{\{\.([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// PromptTemplate is a string with `{{.variable_name}}` placeholders.
type PromptTemplate struct {
	Template string
}

func NewPromptTemplate(template string) PromptTemplate {
	return PromptTemplate{Template: template}
}

// Format substitutes the given variables in a single pass, so placeholders
// inside substituted values are not expanded. Unknown placeholders are left as is.
func (p PromptTemplate) Format(vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(p.Template, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// FormatStrict is Format but fails when a placeholder has no value.
func (p PromptTemplate) FormatStrict(vars map[string]string) (string, error) {
	for _, name := range p.InputVariables() {
		if _, ok := vars[name]; !ok {
			return "", fmt.Errorf("%w: %q", ErrMissingVariable, name)
		}
	}
	return p.Format(vars), nil
}

// InputVariables lists the placeholder names in order of first appearance.
func (p PromptTemplate) InputVariables() []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(p.Template, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}
