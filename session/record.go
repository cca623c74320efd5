package session

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/richinex/reasonloop/model"
)

// Record is the durable form of a session.
type Record struct {
	ID                string            `json:"id"`
	CreatedAt         time.Time         `json:"created_at"`
	Task              string            `json:"task"`
	InitialMode       model.Mode        `json:"initial_mode"`
	InitialLanguage   string            `json:"initial_language"`
	MaxSteps          int               `json:"max_steps"`
	ModeHistory       []model.Mode      `json:"mode_history"`
	Steps             []Entry           `json:"steps"`
	Commands          []model.Directive `json:"commands"`
	// Issued also lists directives whose turn failed; Commands does not.
	Issued            []IssuedDirective `json:"issued,omitempty"`
	Totals            model.Totals      `json:"totals"`
	Pricing           model.Pricing     `json:"pricing"`
	Provider          ProviderInfo      `json:"provider"`
	Status            Status            `json:"status"`
	TerminationReason string            `json:"termination_reason,omitempty"`
}

// Snapshot captures the session as a Record. It can be taken at any time;
// a running session yields a RUNNING record.
func (s *Session) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := Record{
		ID:                s.id,
		CreatedAt:         s.createdAt,
		Task:              s.cfg.Task,
		InitialMode:       s.cfg.Mode,
		InitialLanguage:   s.cfg.ReasoningLanguage,
		MaxSteps:          s.cfg.MaxSteps,
		ModeHistory:       make([]model.Mode, len(s.history)),
		Steps:             cloneEntries(s.history),
		Commands:          make([]model.Directive, len(s.history)),
		Issued:            slices.Clone(s.issued),
		Totals:            s.accountant.Totals(),
		Pricing:           s.cfg.Pricing,
		Provider:          s.cfg.Provider,
		Status:            s.status,
		TerminationReason: s.reason,
	}
	for i, e := range s.history {
		rec.ModeHistory[i] = e.Mode
		rec.Commands[i] = e.Directive
	}
	return rec
}

// Restore rebuilds a terminated session from a record. Every step is
// validated again; totals are taken from the record as they are.
func Restore(rec Record, opts ...Option) (*Session, error) {
	cfg := Config{
		Task:              rec.Task,
		Mode:              rec.InitialMode,
		ReasoningLanguage: rec.InitialLanguage,
		MaxSteps:          rec.MaxSteps,
		Pricing:           rec.Pricing,
		Provider:          rec.Provider,
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid session record %s: %w", rec.ID, err)
	}
	if rec.ID == "" {
		return nil, errors.New("invalid session record: missing id")
	}
	if len(rec.Steps) > rec.MaxSteps {
		return nil, fmt.Errorf("invalid session record %s: %d steps exceed max steps %d",
			rec.ID, len(rec.Steps), rec.MaxSteps)
	}

	history := make([]Entry, len(rec.Steps))
	for i, e := range rec.Steps {
		raw, err := StepPayload(e.Step)
		if err != nil {
			return nil, fmt.Errorf("invalid session record %s: %w", rec.ID, err)
		}
		step, err := Validate(raw, i+1)
		if err != nil {
			return nil, fmt.Errorf("invalid session record %s: %w", rec.ID, err)
		}
		if step.IsFinalResult && i != len(rec.Steps)-1 {
			return nil, fmt.Errorf("invalid session record %s: steps follow final step %d", rec.ID, step.StepID)
		}
		e.Step = step
		history[i] = e.clone()
	}

	s := newSession(cfg, nil, append([]Option{WithID(rec.ID)}, opts...)...)
	s.createdAt = rec.CreatedAt
	s.history = history
	s.issued = slices.Clone(rec.Issued)
	s.accountant.Restore(rec.Totals)
	s.status = StatusTerminated
	s.reason = rec.TerminationReason
	if s.reason == "" {
		s.reason = ReasonFinished
	}
	if n := len(history); n > 0 {
		s.mode = history[n-1].Mode
		s.language = history[n-1].ReasoningLanguage
	}
	return s, nil
}
