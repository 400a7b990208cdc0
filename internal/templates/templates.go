// Package templates provides the embedded pass prompt templates with user
// override support. Templates are loaded with resolution order:
// 1. User override: templatesDir/{name}.toml
// 2. Embedded default: internal/templates/{name}.toml
package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed *.toml
var fs embed.FS

// Template names for the two summarization passes.
const (
	Pass1 = "pass1"
	Pass2 = "pass2"
)

// Template is a loaded prompt template. Prompt contains {placeholder}
// references substituted at render time.
type Template struct {
	Description string `toml:"description"`
	Prompt      string `toml:"prompt"`
}

// GetTemplate loads a template by name, preferring a user override file in
// templatesDir over the embedded default.
func GetTemplate(name string, templatesDir string) (*Template, error) {
	if templatesDir != "" {
		userPath := filepath.Join(templatesDir, name+".toml")
		if data, err := os.ReadFile(userPath); err == nil {
			return parseTemplate(data)
		}
	}

	data, err := fs.ReadFile(name + ".toml")
	if err != nil {
		return nil, fmt.Errorf("template '%s' not found: %w", name, err)
	}
	return parseTemplate(data)
}

func parseTemplate(data []byte) (*Template, error) {
	var tmpl Template
	if err := toml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if tmpl.Prompt == "" {
		return nil, fmt.Errorf("template has an empty prompt")
	}
	return &tmpl, nil
}
