package jsonrepair

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"leading whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
		{"inner fence untouched", "prefix ```json\n{}\n``` suffix", "prefix ```json\n{}\n``` suffix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripFences(tt.input))
		})
	}
}

func TestStripFencesIdempotent(t *testing.T) {
	input := "```json\n{\"a\": 1}\n```"
	once := StripFences(input)
	assert.Equal(t, once, StripFences(once))
}

func TestParseStrict(t *testing.T) {
	doc, err := Parse(`{"summary": "ok", "n": 2}`)
	require.NoError(t, err)
	assert.Equal(t, "ok", doc["summary"])
}

func TestParseFenced(t *testing.T) {
	doc, err := Parse("```json\n{\"summary\": \"ok\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ok", doc["summary"])
}

func TestParseTrailingCommas(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"object", `{"a": 1,}`},
		{"array", `{"xs": ["x", "y",]}`},
		{"nested", `{"a": {"b": 2,}, "xs": [1, 2,],}`},
		{"whitespace before close", "{\"a\": 1,\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.NoError(t, err)
		})
	}
}

func TestParseBareControlChars(t *testing.T) {
	// Raw newline and tab inside a string literal
	doc, err := Parse("{\"summary\": \"line one\nline two\ttabbed\"}")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\ttabbed", doc["summary"])
}

func TestParseFencedWithTrailingComma(t *testing.T) {
	doc, err := Parse("```json\n{\"summary\": \"ok\",}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ok", doc["summary"])
}

func TestParseExhausted(t *testing.T) {
	_, err := Parse("this is not json at all")
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.NotEmpty(t, parseErr.Detail)
}

func TestEscapeControlCharsOutsideStrings(t *testing.T) {
	// Formatting whitespace between tokens must survive
	input := "{\n\t\"a\": \"x\ny\"\n}"
	out := escapeControlChars(input)
	assert.Equal(t, "{\n\t\"a\": \"x\\ny\"\n}", out)
}

func TestEscapeControlCharsEscapedQuote(t *testing.T) {
	// An escaped quote does not end the string
	input := `{"a": "he said \"hi\"` + "\n" + `"}`
	out := escapeControlChars(input)
	assert.Equal(t, `{"a": "he said \"hi\"\n"}`, out)
}
