// Package template implements the {{key}} variable substitution used
// when previewing and rendering offer creatives.
package template

import (
	"fmt"
	"regexp"
)

var tokenPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_.\-]+)\}\}`)

// Render replaces every {{key}} occurrence in text with the string form
// of vars[key]. Substitution is a single pass over the input: a value
// that itself contains a {{token}} is inserted literally and never
// re-expanded. Tokens without a matching key are left untouched.
func Render(text string, vars map[string]interface{}) string {
	if len(vars) == 0 {
		return text
	}
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		key := token[2 : len(token)-2]
		value, ok := vars[key]
		if !ok {
			return token
		}
		return Stringify(value)
	})
}

// Tokens returns the distinct token names referenced by text, in order
// of first appearance.
func Tokens(text string) []string {
	matches := tokenPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		names = append(names, match[1])
	}
	return names
}

// Stringify converts a variable value to its template representation.
func Stringify(value interface{}) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
