package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/richinex/reasonloop/config"
	"github.com/richinex/reasonloop/llm"
	"github.com/richinex/reasonloop/model"
	"github.com/richinex/reasonloop/session"
)

// Provider is a ready provider with the pricing the session bills at.
type Provider struct {
	LLM     llm.Provider
	Pricing model.Pricing
}

// Info identifies the provider in session records.
func (p Provider) Info() session.ProviderInfo {
	return session.ProviderInfo{Name: p.LLM.Name(), Model: p.LLM.Model()}
}

// CreateProvider resolves name against the provider files in dir first, then
// against the built-in providers configured from the environment. Built-in
// providers carry no pricing.
func CreateProvider(dir, name string) (Provider, error) {
	if name == "" {
		return Provider{}, fmt.Errorf("--provider is required for this command")
	}

	_, err := os.Stat(filepath.Join(dir, name+".yml"))
	switch {
	case err == nil:
		pf, err := config.LoadProvider(dir, name)
		if err != nil {
			return Provider{}, err
		}
		p, err := pf.Build()
		if err != nil {
			return Provider{}, err
		}
		return Provider{LLM: p, Pricing: pf.Pricing}, nil
	case !errors.Is(err, fs.ErrNotExist):
		return Provider{}, fmt.Errorf("failed to read provider file: %w", err)
	}

	settings, err := config.New(name)
	if err != nil {
		return Provider{}, fmt.Errorf("provider %q: no file in %s and %w", name, dir, err)
	}
	p, err := settings.BuildProvider()
	if err != nil {
		return Provider{}, err
	}
	return Provider{LLM: p}, nil
}
