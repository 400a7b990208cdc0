// Package jsonrepair recovers structured output from model-generated text.
// Models asked for JSON routinely wrap it in a markdown fence, leave a
// trailing comma, or emit raw newlines inside string literals. The repair
// pipeline applies exactly two heuristics after fence stripping, in a fixed
// order, and gives up thereafter; the original payload is always preserved
// for the caller.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencePattern matches a whole-payload markdown code fence with an optional
// language tag, capturing the inner content.
var fencePattern = regexp.MustCompile("(?s)^\\s*```[a-zA-Z0-9]*[ \t]*\n?(.*?)\n?[ \t]*```\\s*$")

// trailingCommaPattern matches a comma immediately preceding a closing
// brace or bracket, allowing intervening whitespace.
var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// ParseError reports that no repair strategy produced valid JSON. Detail is
// the strict-parse failure of the last attempted stage.
type ParseError struct {
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("json repair exhausted: %s", e.Detail)
}

// StripFences removes one enclosing markdown code fence, with or without a
// language tag, and returns the inner content. Text that is not fully
// fenced is returned unchanged.
func StripFences(s string) string {
	if matches := fencePattern.FindStringSubmatch(s); len(matches) > 1 {
		return matches[1]
	}
	return strings.TrimSpace(s)
}

// removeTrailingCommas drops commas that directly precede a closing } or ].
func removeTrailingCommas(s string) string {
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

// escapeControlChars rewrites bare newline and tab characters that occur
// inside JSON string literals as their escaped forms. Characters outside
// string literals are left alone.
func escapeControlChars(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
				sb.WriteRune(r)
				continue
			case r == '\\':
				escaped = true
				sb.WriteRune(r)
				continue
			case r == '"':
				inString = false
				sb.WriteRune(r)
				continue
			case r == '\n':
				sb.WriteString("\\n")
				continue
			case r == '\t':
				sb.WriteString("\\t")
				continue
			}
			sb.WriteRune(r)
			continue
		}
		if r == '"' {
			inString = true
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Parse applies the repair pipeline to raw model output and returns the
// decoded JSON object. Stages run in a fixed order, stopping at the first
// success: fence strip + strict parse, trailing-comma removal, control
// character escaping. Exhaustion returns a *ParseError; the caller keeps
// the raw text.
func Parse(raw string) (map[string]interface{}, error) {
	stripped := StripFences(raw)

	var doc map[string]interface{}
	err := json.Unmarshal([]byte(stripped), &doc)
	if err == nil {
		return doc, nil
	}

	// Stage two: trailing commas before } or ].
	fixed := removeTrailingCommas(stripped)
	if err = json.Unmarshal([]byte(fixed), &doc); err == nil {
		return doc, nil
	}

	// Stage three: bare control characters inside string literals.
	fixed = escapeControlChars(fixed)
	if err = json.Unmarshal([]byte(fixed), &doc); err == nil {
		return doc, nil
	}

	return nil, &ParseError{Detail: err.Error()}
}
