package template

import "regexp"

var placeholderRe = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// ExtractVariables returns the distinct placeholder identifiers found in
// content, in order of first appearance. Malformed braces never match and are
// ignored rather than rejected.
func ExtractVariables(content string) []string {
	matches := placeholderRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	vars := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		vars = append(vars, m[1])
	}
	return vars
}

// Substitute replaces every {{k}} occurrence with bindings[k]. Placeholders
// with no binding render as the empty string. Output containing no
// placeholders passes through unchanged, so Substitute is idempotent on its
// own fully-rendered output.
func Substitute(content string, bindings Binding) string {
	return placeholderRe.ReplaceAllStringFunc(content, func(ph string) string {
		key := ph[2 : len(ph)-2]
		return bindings[key]
	})
}

type ValidationResult struct {
	MissingVariables   []string          `json:"missing_variables"`
	AvailableVariables map[string]string `json:"available_variables"`
	CanSend            bool              `json:"can_send"`
}

// ValidateTemplate reports which of the template's placeholders resolve
// against the given fields. Available placeholders carry their sample value
// for preview. Advisory only: callers may still send with missing variables.
func ValidateTemplate(t MessageTemplate, fields Binding) ValidationResult {
	res := ValidationResult{AvailableVariables: map[string]string{}}
	for _, v := range ExtractVariables(t.Content + " " + t.Subject) {
		if val, ok := fields[v]; ok {
			res.AvailableVariables[v] = val
		} else {
			res.MissingVariables = append(res.MissingVariables, v)
		}
	}
	res.CanSend = len(res.MissingVariables) == 0
	return res
}
