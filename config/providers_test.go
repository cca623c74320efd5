package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/richinex/reasonloop/model"
)

func writeProvider(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write provider file: %v", err)
	}
}

const localProvider = `provider_type: openai-compatible
name: local
description: Local model
base_url: http://localhost:11434/v1
api_key: ${REASONLOOP_TEST_KEY}
model: llama3.1
temperature: 0.2
top_p: 0.9
pricing:
  input_tokens: 2.5
  cached_tokens: 1.25
  output_tokens: 10
`

func TestLoadProvider(t *testing.T) {
	t.Setenv("REASONLOOP_TEST_KEY", "secret")
	dir := t.TempDir()
	writeProvider(t, dir, "local", localProvider)

	pf, err := LoadProvider(dir, "local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pf.APIKey != "secret" {
		t.Errorf("expected api_key from environment, got %q", pf.APIKey)
	}
	if pf.Temperature != 0.2 || pf.TopP != 0.9 {
		t.Errorf("unexpected sampling %v/%v", pf.Temperature, pf.TopP)
	}
	if pf.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected default max tokens, got %d", pf.MaxTokens)
	}
	want := model.Pricing{InputTokens: 2.5, CachedTokens: 1.25, OutputTokens: 10}
	if pf.Pricing != want {
		t.Errorf("pricing = %+v, want %+v", pf.Pricing, want)
	}

	provider, err := pf.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if provider.Name() != "local" || provider.Model() != "llama3.1" {
		t.Errorf("unexpected provider %s/%s", provider.Name(), provider.Model())
	}
}

func TestParseProviderEnvNumber(t *testing.T) {
	t.Setenv("REASONLOOP_TEST_TEMP", "0.4")
	pf, err := ParseProvider([]byte("provider_type: deepseek\nmodel: deepseek-chat\ntemperature: ${REASONLOOP_TEST_TEMP}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pf.Temperature != 0.4 {
		t.Errorf("expected temperature 0.4, got %v", pf.Temperature)
	}
}

func TestParseProviderRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", "provider_type"},
		{"unknown type", "provider_type: mistral\nmodel: m\n", "unsupported provider type"},
		{"compatible without url", "provider_type: openai-compatible\nmodel: m\n", "base_url"},
		{"no model", "provider_type: anthropic\n", "model"},
		{"bad max tokens", "provider_type: openai\nmodel: m\nmax_tokens: 0\n", "max_tokens"},
		{"negative price", "provider_type: openai\nmodel: m\npricing:\n  input_tokens: -1\n", "pricing"},
		{"not yaml", "provider_type: [", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProvider([]byte(tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadProviderMissing(t *testing.T) {
	_, err := LoadProvider(t.TempDir(), "nope")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
	if _, err := LoadProvider(t.TempDir(), "../etc/passwd"); err == nil {
		t.Error("expected error for path-like name")
	}
}

func TestLoadProviderDefaultsName(t *testing.T) {
	dir := t.TempDir()
	writeProvider(t, dir, "claude", "provider_type: anthropic\nmodel: claude-sonnet-4-5\napi_key: k\n")

	pf, err := LoadProvider(dir, "claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pf.Name != "claude" {
		t.Errorf("expected name from file name, got %q", pf.Name)
	}
}

func TestListProviders(t *testing.T) {
	dir := t.TempDir()
	writeProvider(t, dir, "zeta", localProvider)
	writeProvider(t, dir, "alpha", localProvider)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.yml"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err := ListProviders(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "zeta"}) {
		t.Errorf("unexpected providers %v", names)
	}

	names, err = ListProviders(filepath.Join(dir, "missing"))
	if err != nil || len(names) != 0 {
		t.Errorf("expected empty list for missing dir, got %v, %v", names, err)
	}
}
