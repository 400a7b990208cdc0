// Package prompt renders pass prompts from named-placeholder templates and
// the gathered meeting context.
//
// The {placeholder} syntax is substituted by direct string replacement.
// Replacement is case-sensitive; unresolved placeholders are logged as
// warnings and left unchanged rather than treated as errors.
package prompt

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// placeholderPattern matches {name} references in templates.
// Allows alphanumeric characters, hyphens, and underscores.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// Render replaces all {name} references in the template with values from
// the context map. Missing names are logged and left intact.
func Render(template string, values map[string]string, logger arbor.ILogger) string {
	if template == "" {
		return template
	}

	logUnresolvedPlaceholders(template, values, logger)

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		if value, exists := values[name]; exists {
			return value
		}
		return match
	})
}

// logUnresolvedPlaceholders warns once per {name} reference missing from
// the value map.
func logUnresolvedPlaceholders(template string, values map[string]string, logger arbor.ILogger) {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	for _, match := range matches {
		if len(match) > 1 {
			name := match[1]
			if _, exists := values[name]; !exists {
				logger.Warn().
					Str("placeholder", match[0]).
					Msg("Unresolved template placeholder - left unchanged")
			}
		}
	}
}
