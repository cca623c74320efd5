// Package policy selects directives for unattended sessions.
//
// Every policy is a pure function of its configuration and the session view:
// the same strategy, seed, initial mode and history length always produce the
// same directive.

package policy

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/richinex/reasonloop/model"
)

// Strategy names an auto-mode policy.
type Strategy string

const (
	// StrategyContinue always sends CONTINUE.
	StrategyContinue Strategy = "continue"
	// StrategyFixed always replays one configured mode.
	StrategyFixed Strategy = "fixed"
	// StrategyVary cycles through the modes keyed by step id.
	StrategyVary Strategy = "vary"
	// StrategyWrong always sends GO_VERY_WRONG.
	StrategyWrong Strategy = "wrong"
	// StrategyRandom draws from every directive with an explicit seed.
	StrategyRandom Strategy = "random"
)

// Strategies lists the supported strategy names.
func Strategies() []Strategy {
	return []Strategy{StrategyContinue, StrategyFixed, StrategyVary, StrategyWrong, StrategyRandom}
}

// View is the part of a session a policy may look at.
type View struct {
	HistoryLen  int
	InitialMode model.Mode
}

// ExpectedStepID is the id of the step the next directive will produce.
func (v View) ExpectedStepID() int {
	return v.HistoryLen + 1
}

// Policy produces the next directive without human input.
type Policy interface {
	Strategy() Strategy
	Next(v View) model.Directive
}

// Config configures a policy. Mode is used by fixed; Seed by random.
type Config struct {
	Strategy Strategy
	Mode     model.Mode
	Seed     uint64
}

// New builds the policy described by cfg.
func New(cfg Config) (Policy, error) {
	switch cfg.Strategy {
	case StrategyContinue:
		return continuePolicy{}, nil
	case StrategyFixed:
		if !cfg.Mode.Valid() {
			return nil, fmt.Errorf("fixed policy needs a mode, got %q", cfg.Mode)
		}
		return fixedPolicy{mode: cfg.Mode}, nil
	case StrategyVary:
		return varyPolicy{}, nil
	case StrategyWrong:
		return fixedPolicy{mode: model.ModeGoVeryWrong, name: StrategyWrong}, nil
	case StrategyRandom:
		return randomPolicy{seed: cfg.Seed}, nil
	default:
		return nil, fmt.Errorf("unknown auto-mode strategy: %q", cfg.Strategy)
	}
}

// ParseStrategy parses a strategy tag (case-insensitive).
func ParseStrategy(s string) (Strategy, error) {
	strategy := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Strategies() {
		if strategy == known {
			return strategy, nil
		}
	}
	return "", fmt.Errorf("unknown auto-mode strategy: %q", s)
}

type continuePolicy struct{}

func (continuePolicy) Strategy() Strategy { return StrategyContinue }

func (continuePolicy) Next(View) model.Directive { return model.Continue() }

type fixedPolicy struct {
	mode model.Mode
	name Strategy
}

func (p fixedPolicy) Strategy() Strategy {
	if p.name != "" {
		return p.name
	}
	return StrategyFixed
}

func (p fixedPolicy) Next(View) model.Directive { return model.SwitchMode(p.mode) }

type varyPolicy struct{}

func (varyPolicy) Strategy() Strategy { return StrategyVary }

// Next walks the mode cycle starting at the initial mode, so step 1 always
// gets the mode the session was initialized with.
func (varyPolicy) Next(v View) model.Directive {
	offset := modeIndex(v.InitialMode)
	n := len(model.Modes)
	idx := (offset + v.ExpectedStepID() - 1) % n
	return model.SwitchMode(model.Modes[idx])
}

type randomPolicy struct {
	seed uint64
}

func (randomPolicy) Strategy() Strategy { return StrategyRandom }

var randomChoices = []model.Directive{
	model.Continue(),
	model.SwitchMode(model.ModeExploreOptimal),
	model.SwitchMode(model.ModeGoSlightlyWrong),
	model.SwitchMode(model.ModeGoVeryWrong),
}

// Next seeds a fresh generator from (seed, step id), so the draw for a step
// does not depend on how many draws happened before it.
func (p randomPolicy) Next(v View) model.Directive {
	r := rand.New(rand.NewPCG(p.seed, uint64(v.ExpectedStepID())))
	return randomChoices[r.IntN(len(randomChoices))]
}

func modeIndex(m model.Mode) int {
	for i, mode := range model.Modes {
		if mode == m {
			return i
		}
	}
	return 0
}
