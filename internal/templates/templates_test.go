package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedTemplatesLoad(t *testing.T) {
	for _, name := range []string{Pass1, Pass2} {
		tmpl, err := GetTemplate(name, "")
		if err != nil {
			t.Fatalf("GetTemplate(%s) failed: %v", name, err)
		}
		if tmpl.Prompt == "" {
			t.Errorf("Template %s has an empty prompt", name)
		}
		if !strings.Contains(tmpl.Prompt, "{transcript}") {
			t.Errorf("Template %s is missing the {transcript} placeholder", name)
		}
	}
}

func TestPass2TemplateCarriesPass1Output(t *testing.T) {
	tmpl, err := GetTemplate(Pass2, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(tmpl.Prompt, "{pass1_output}") {
		t.Error("Pass 2 template is missing the {pass1_output} placeholder")
	}
}

func TestUserOverridePreferred(t *testing.T) {
	dir := t.TempDir()
	override := `description = "custom"` + "\n" + `prompt = "Custom prompt {transcript}"` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "pass1.toml"), []byte(override), 0644); err != nil {
		t.Fatal(err)
	}

	tmpl, err := GetTemplate(Pass1, dir)
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Prompt != "Custom prompt {transcript}" {
		t.Errorf("Override not used, got: %q", tmpl.Prompt)
	}

	// Other templates fall back to the embedded defaults
	if _, err := GetTemplate(Pass2, dir); err != nil {
		t.Fatalf("Embedded fallback failed: %v", err)
	}
}

func TestUnknownTemplate(t *testing.T) {
	if _, err := GetTemplate("pass3", ""); err == nil {
		t.Fatal("Expected error for unknown template")
	}
}
