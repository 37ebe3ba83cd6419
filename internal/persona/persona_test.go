package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultProfileIsComplete(t *testing.T) {
	t.Parallel()

	p := Default()
	if p.Name != "Aria" {
		t.Errorf("name: got %q", p.Name)
	}
	for field, v := range map[string]string{
		"greeting":      p.Greeting,
		"help":          p.Help,
		"system_prompt": p.SystemPrompt,
	} {
		if strings.TrimSpace(v) == "" {
			t.Errorf("default %s is empty", field)
		}
	}
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "persona.yaml")
	content := "name: Nova\nsystem_prompt: |\n  You are Nova. Answer briefly.\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Name != "Nova" {
		t.Errorf("name: got %q", p.Name)
	}
	if !strings.Contains(p.SystemPrompt, "You are Nova") {
		t.Errorf("system prompt not overridden: %q", p.SystemPrompt)
	}
	if p.Help != Default().Help {
		t.Errorf("help should keep its default")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("expected error for malformed yaml")
	}
}

func TestGreetingFor(t *testing.T) {
	t.Parallel()

	p := Default()
	got := p.GreetingFor("Dana")
	if !strings.Contains(got, "Hi Dana!") {
		t.Errorf("greeting missing name: %q", got)
	}
	if strings.Contains(p.GreetingFor(""), "%!s") {
		t.Errorf("empty name not substituted")
	}

	p.Greeting = "hello friend"
	if p.GreetingFor("Dana") != "hello friend" {
		t.Errorf("greeting without name slot must pass through unchanged")
	}
}
