// Provider definition files.
//
// A provider file lives at <dir>/<name>.yml:
//
//	provider_type: openai-compatible
//	name: local-llama
//	description: Llama on Ollama
//	base_url: http://localhost:11434/v1
//	api_key: ${OLLAMA_API_KEY}
//	model: llama3.1
//	temperature: 0.7
//	max_tokens: 2000
//	pricing:
//	  input_tokens: 0
//	  cached_tokens: 0
//	  output_tokens: 0
//
// A scalar written exactly as ${VAR} is replaced by the value of VAR, or the
// empty string when VAR is unset.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/richinex/reasonloop/llm"
	"github.com/richinex/reasonloop/model"
)

const providerExt = ".yml"

// Defaults for optional provider file fields.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
	DefaultTopP        = 1.0
)

// ProviderFile is a parsed provider definition.
type ProviderFile struct {
	ProviderType     string        `yaml:"provider_type"`
	Name             string        `yaml:"name"`
	Description      string        `yaml:"description"`
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	Model            string        `yaml:"model"`
	Temperature      float64       `yaml:"temperature"`
	MaxTokens        int           `yaml:"max_tokens"`
	TopP             float64       `yaml:"top_p"`
	FrequencyPenalty float64       `yaml:"frequency_penalty"`
	PresencePenalty  float64       `yaml:"presence_penalty"`
	Pricing          model.Pricing `yaml:"pricing"`
}

// LoadProvider reads <dir>/<name>.yml.
func LoadProvider(dir, name string) (ProviderFile, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return ProviderFile{}, fmt.Errorf("invalid provider name %q", name)
	}
	path := filepath.Join(dir, name+providerExt)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ProviderFile{}, fmt.Errorf("provider configuration %q not found at %s", name, path)
	}
	if err != nil {
		return ProviderFile{}, fmt.Errorf("failed to read provider file: %w", err)
	}

	pf, err := ParseProvider(data)
	if err != nil {
		return ProviderFile{}, fmt.Errorf("%s: %w", path, err)
	}
	if pf.Name == "" {
		pf.Name = name
	}
	return pf, nil
}

// ParseProvider decodes a provider definition, resolving ${VAR} values and
// applying defaults.
func ParseProvider(data []byte) (ProviderFile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ProviderFile{}, fmt.Errorf("failed to parse provider YAML: %w", err)
	}
	expandEnv(&doc)

	pf := ProviderFile{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
	}
	if len(doc.Content) > 0 {
		if err := doc.Decode(&pf); err != nil {
			return ProviderFile{}, fmt.Errorf("failed to decode provider YAML: %w", err)
		}
	}
	if err := pf.validate(); err != nil {
		return ProviderFile{}, err
	}
	return pf, nil
}

// expandEnv replaces every scalar of the form ${VAR} in place. The tag is
// cleared so the substituted value resolves like a plain scalar.
func expandEnv(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode {
		if v, ok := strings.CutPrefix(n.Value, "${"); ok && strings.HasSuffix(v, "}") {
			n.Value = os.Getenv(strings.TrimSuffix(v, "}"))
			n.Tag = ""
			n.Style = 0
		}
		return
	}
	for _, c := range n.Content {
		expandEnv(c)
	}
}

func (p ProviderFile) validate() error {
	if p.ProviderType == "" {
		return errors.New("provider_type is required")
	}
	pt, err := llm.ParseProviderType(p.ProviderType)
	if err != nil {
		return fmt.Errorf("unsupported provider type: %q", p.ProviderType)
	}
	if pt == llm.ProviderCompatible && p.BaseURL == "" {
		return errors.New("base_url is required for openai-compatible providers")
	}
	if p.Model == "" {
		return errors.New("model is required")
	}
	if p.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", p.MaxTokens)
	}
	if p.Pricing.InputTokens < 0 || p.Pricing.CachedTokens < 0 || p.Pricing.OutputTokens < 0 {
		return errors.New("pricing rates must not be negative")
	}
	return nil
}

// Build creates the provider the file describes. An empty api_key falls back
// to the provider's environment variable.
func (p ProviderFile) Build() (llm.Provider, error) {
	pt, err := llm.ParseProviderType(p.ProviderType)
	if err != nil {
		return nil, err
	}
	b := llm.NewProviderBuilder(pt).
		Model(p.Model).
		Name(p.Name).
		BaseURL(p.BaseURL).
		MaxTokens(uint32(p.MaxTokens)).
		Temperature(float32(p.Temperature)).
		TopP(float32(p.TopP)).
		Penalties(float32(p.FrequencyPenalty), float32(p.PresencePenalty))
	if p.APIKey == "" {
		return b.FromEnv()
	}
	return b.APIKey(p.APIKey)
}

// ListProviders returns the names of the provider files in dir, sorted.
// A missing directory yields an empty list.
func ListProviders(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != providerExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), providerExt))
	}
	sort.Strings(names)
	return names, nil
}
