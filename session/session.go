// Package session runs a reasoning session: one validated step per turn,
// driven by directives from an operator or an auto-mode policy.
//
// Information Hiding:
// - Turn serialization and cancellation handling
// - Retry budget for provider and validation failures
// - Accounting state and audit log bookkeeping

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"

	"github.com/richinex/reasonloop/accounting"
	"github.com/richinex/reasonloop/model"
)

// maxAttempts is the per-turn budget: the first call plus one retry.
const maxAttempts = 2

// Status is the state of a session.
type Status string

const (
	StatusRunning    Status = "RUNNING"
	StatusTerminated Status = "TERMINATED"
)

// Reasons a session terminated.
const (
	ReasonFinalResult = "final_result"
	ReasonMaxSteps    = "max_steps"
	ReasonFinished    = "finished"
)

// ProviderInfo identifies the model a session talked to.
type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

// Config is the immutable configuration of a session.
type Config struct {
	Task              string
	Mode              model.Mode
	ReasoningLanguage string
	MaxSteps          int
	Pricing           model.Pricing
	Provider          ProviderInfo
}

func (c Config) validate() error {
	if c.Task == "" {
		return errors.New("task must not be empty")
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("invalid mode: %q", c.Mode)
	}
	if c.ReasoningLanguage == "" {
		return errors.New("reasoning language must not be empty")
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max steps must be positive, got %d", c.MaxSteps)
	}
	return nil
}

// Turn is the outcome of a successful Advance.
type Turn struct {
	Step     model.Step
	Status   Status
	TurnCost float64
	Totals   model.Totals
	UsageErr error // set when usage could not be priced; the step is still committed
	Attempts int
}

// Outcome of an issued directive.
const (
	OutcomeAccepted = "accepted"
	OutcomeFailed   = "failed"
)

// IssuedDirective is one directive handed to Advance that reached the
// provider, with what became of it.
type IssuedDirective struct {
	Directive model.Directive `json:"directive"`
	StepID    int             `json:"step_id"`
	Outcome   string          `json:"outcome"`
	Attempts  int             `json:"attempts"`
	Error     string          `json:"error,omitempty"`
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCallTimeout bounds each provider call. Expiry counts as a provider
// failure for retry purposes.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.callTimeout = d
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Session is one reasoning session. Turns are serialized; the read accessors
// may be called while a turn is in flight.
type Session struct {
	id          string
	cfg         Config
	port        Port
	logger      *slog.Logger
	callTimeout time.Duration
	createdAt   time.Time

	// turn holds a token while a turn or Finish is running.
	turn chan struct{}

	mu         sync.RWMutex
	mode       model.Mode
	language   string
	history    []Entry
	issued     []IssuedDirective
	accountant *accounting.Accountant
	status     Status
	reason     string
}

// New creates a running session with empty history.
func New(cfg Config, port Port, opts ...Option) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if port == nil {
		return nil, errors.New("invalid session config: port is nil")
	}

	s := newSession(cfg, port, opts...)
	s.logger.Info("session created",
		"mode", s.mode,
		"reasoning_language", s.language,
		"max_steps", cfg.MaxSteps,
	)
	capitan.Emit(context.Background(), SessionCreated,
		FieldSessionID.Field(s.id),
		FieldTask.Field(cfg.Task),
		FieldMode.Field(string(cfg.Mode)),
		FieldLanguage.Field(cfg.ReasoningLanguage),
		FieldMaxSteps.Field(cfg.MaxSteps),
	)
	return s, nil
}

func newSession(cfg Config, port Port, opts ...Option) *Session {
	s := &Session{
		id:         uuid.New().String(),
		cfg:        cfg,
		port:       port,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		createdAt:  time.Now().UTC(),
		turn:       make(chan struct{}, 1),
		mode:       cfg.Mode,
		language:   cfg.ReasoningLanguage,
		accountant: accounting.New(),
		status:     StatusRunning,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)
	return s
}

// Advance runs one turn: apply the directive, ask the Port for the next step,
// validate it, account for its usage, and append it to history.
//
// A failed attempt is retried once with the same step id. If the caller's
// context ends while the Port call is outstanding, Advance returns the
// context error and the session is exactly as it was before the call.
func (s *Session) Advance(ctx context.Context, d model.Directive) (Turn, error) {
	if err := s.acquire(ctx); err != nil {
		return Turn{}, err
	}
	defer s.release()

	s.mu.RLock()
	closed := s.status == StatusTerminated
	mode, language := s.mode, s.language
	expected := len(s.history) + 1
	history := cloneEntries(s.history)
	s.mu.RUnlock()

	if closed {
		return Turn{}, &ClosedError{SessionID: s.id, LastStepID: expected - 1}
	}

	mode, language, err := apply(d, mode, language)
	if err != nil {
		return Turn{}, err
	}

	req := Request{
		SessionID:         s.id,
		Task:              s.cfg.Task,
		Mode:              mode,
		ReasoningLanguage: language,
		MaxSteps:          s.cfg.MaxSteps,
		ExpectedStepID:    expected,
		Directive:         d,
		History:           history,
	}

	logger := s.logger.With("step_id", expected)
	logger.Debug("turn started", "directive", d.String(), "mode", mode)
	capitan.Emit(ctx, TurnStarted,
		FieldSessionID.Field(s.id),
		FieldStepID.Field(expected),
		FieldDirective.Field(d.String()),
		FieldMode.Field(string(mode)),
	)

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req.Attempt = attempt
		step, usage, err := s.attempt(ctx, req)
		if err == nil {
			return s.commit(ctx, req, step, usage, attempt, time.Since(start)), nil
		}
		if ctx.Err() != nil {
			logger.Info("turn cancelled", "attempt", attempt)
			return Turn{}, fmt.Errorf("step %d cancelled: %w", expected, ctx.Err())
		}

		lastErr = err
		if attempt < maxAttempts {
			logger.Warn("attempt failed, retrying", "attempt", attempt, "error", err)
			capitan.Emit(ctx, TurnRetried,
				FieldSessionID.Field(s.id),
				FieldStepID.Field(expected),
				FieldAttempt.Field(attempt),
				FieldError.Field(err),
			)
		}
	}

	s.mu.Lock()
	s.issued = append(s.issued, IssuedDirective{
		Directive: d,
		StepID:    expected,
		Outcome:   OutcomeFailed,
		Attempts:  maxAttempts,
		Error:     lastErr.Error(),
	})
	s.mu.Unlock()

	logger.Error("turn failed", "attempts", maxAttempts, "error", lastErr)
	capitan.Error(ctx, TurnFailed,
		FieldSessionID.Field(s.id),
		FieldStepID.Field(expected),
		FieldAttempt.Field(maxAttempts),
		FieldDuration.Field(time.Since(start)),
		FieldError.Field(lastErr),
	)
	return Turn{}, &TurnError{
		ExpectedStepID: expected,
		LastGoodStepID: expected - 1,
		Attempts:       maxAttempts,
		Err:            lastErr,
	}
}

// attempt makes one Port call and validates the result. A ValidationError
// from the Port is passed through; any other Port error is a ProviderError.
func (s *Session) attempt(ctx context.Context, req Request) (model.Step, *model.Usage, error) {
	callCtx := ctx
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	raw, usage, err := s.port.Generate(callCtx, req)
	if ctx.Err() != nil {
		return model.Step{}, nil, ctx.Err()
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return model.Step{}, nil, err
	}
	if err != nil {
		return model.Step{}, nil, &ProviderError{StepID: req.ExpectedStepID, Err: err}
	}

	step, err := Validate(raw, req.ExpectedStepID)
	if err != nil {
		return model.Step{}, nil, err
	}
	return step, usage, nil
}

func (s *Session) commit(ctx context.Context, req Request, step model.Step, usage *model.Usage, attempts int, elapsed time.Duration) Turn {
	s.mu.Lock()

	turnCost, totals, usageErr := s.accountant.Record(usage, s.cfg.Pricing)

	entry := Entry{
		Step:              step,
		Directive:         req.Directive,
		Mode:              req.Mode,
		ReasoningLanguage: req.ReasoningLanguage,
		TurnCost:          turnCost,
	}
	if usage != nil {
		u := *usage
		entry.Usage = &u
	}
	s.history = append(s.history, entry)
	s.issued = append(s.issued, IssuedDirective{
		Directive: req.Directive,
		StepID:    step.StepID,
		Outcome:   OutcomeAccepted,
		Attempts:  attempts,
	})
	s.mode = req.Mode
	s.language = req.ReasoningLanguage

	switch {
	case step.IsFinalResult:
		s.status, s.reason = StatusTerminated, ReasonFinalResult
	case len(s.history) == s.cfg.MaxSteps:
		s.status, s.reason = StatusTerminated, ReasonMaxSteps
	}
	status, reason := s.status, s.reason
	s.mu.Unlock()

	logger := s.logger.With("step_id", step.StepID)
	if usageErr != nil {
		logger.Warn("usage not recorded", "error", usageErr)
		capitan.Emit(ctx, UsageRejected,
			FieldSessionID.Field(s.id),
			FieldStepID.Field(step.StepID),
			FieldError.Field(usageErr),
		)
	}

	logger.Info("step accepted",
		"attempts", attempts,
		"turn_cost", turnCost,
		"total_cost", totals.CostUSD,
		"final", step.IsFinalResult,
	)
	capitan.Emit(ctx, TurnCompleted,
		FieldSessionID.Field(s.id),
		FieldStepID.Field(step.StepID),
		FieldMode.Field(string(req.Mode)),
		FieldAttempt.Field(attempts),
		FieldTurnCost.Field(float32(turnCost)),
		FieldDuration.Field(elapsed),
	)
	if status == StatusTerminated {
		s.emitTerminated(ctx, reason, step.StepID)
	}

	return Turn{
		Step:     step.Clone(),
		Status:   status,
		TurnCost: turnCost,
		Totals:   totals,
		UsageErr: usageErr,
		Attempts: attempts,
	}
}

// Finish terminates a running session on operator request. It waits for an
// in-flight turn and is a no-op on a terminated session.
func (s *Session) Finish() {
	s.turn <- struct{}{}
	defer s.release()

	s.mu.Lock()
	if s.status == StatusTerminated {
		s.mu.Unlock()
		return
	}
	s.status, s.reason = StatusTerminated, ReasonFinished
	last := len(s.history)
	s.mu.Unlock()

	s.emitTerminated(context.Background(), ReasonFinished, last)
}

func (s *Session) emitTerminated(ctx context.Context, reason string, lastStep int) {
	s.logger.Info("session terminated", "reason", reason, "steps", lastStep)
	capitan.Emit(ctx, SessionTerminated,
		FieldSessionID.Field(s.id),
		FieldStepID.Field(lastStep),
		FieldReason.Field(reason),
	)
}

func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() {
	<-s.turn
}

// apply folds a directive into (mode, language). Only the fields the
// directive names change.
func apply(d model.Directive, mode model.Mode, language string) (model.Mode, string, error) {
	if m, ok := d.Mode(); ok {
		return m, language, nil
	}
	switch d.Kind {
	case model.DirectiveContinue:
		return mode, language, nil
	case model.DirectiveReasoningLanguage:
		if d.Language == "" {
			return "", "", errors.New("REASONING_LANGUAGE directive without a language")
		}
		return mode, d.Language, nil
	default:
		return "", "", fmt.Errorf("unsupported directive: %q", d.Kind)
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Config returns the session configuration.
func (s *Session) Config() Config { return s.cfg }

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// TerminationReason is empty while the session is running.
func (s *Session) TerminationReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// Mode returns the mode in effect for the next turn.
func (s *Session) Mode() model.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// ReasoningLanguage returns the language in effect for the next turn.
func (s *Session) ReasoningLanguage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// Len returns the number of accepted steps.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// History returns copies of the accepted steps in order.
func (s *Session) History() []model.Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	steps := make([]model.Step, len(s.history))
	for i, e := range s.history {
		steps[i] = e.Step.Clone()
	}
	return steps
}

// Entries returns copies of the committed turns in order.
func (s *Session) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.history)
}

// Commands returns the audit log of directives that produced accepted steps.
// Directives whose turn failed are listed by Issued.
func (s *Session) Commands() []model.Directive {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cmds := make([]model.Directive, len(s.history))
	for i, e := range s.history {
		cmds[i] = e.Directive
	}
	return cmds
}

// Issued returns every directive that reached the provider, including those
// whose turn failed, in the order they were issued.
func (s *Session) Issued() []IssuedDirective {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.issued)
}

// ModeHistory returns the mode each accepted step was produced in.
func (s *Session) ModeHistory() []model.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	modes := make([]model.Mode, len(s.history))
	for i, e := range s.history {
		modes[i] = e.Mode
	}
	return modes
}

// Totals returns the cumulative usage and cost.
func (s *Session) Totals() model.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountant.Totals()
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.clone()
	}
	return out
}
