// Session execution for CLI commands.
//
// Information Hiding:
// - Turn loop and directive sourcing (operator or auto-mode policy)
// - Retry notices via session signals
// - Trace persistence

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zoobzio/capitan"

	"github.com/richinex/reasonloop/command"
	"github.com/richinex/reasonloop/internal/dsa"
	"github.com/richinex/reasonloop/model"
	"github.com/richinex/reasonloop/policy"
	"github.com/richinex/reasonloop/session"
	"github.com/richinex/reasonloop/storage"
)

// Options holds the settings of one reasoning run.
type Options struct {
	// Task is the task text. When empty the initialization block is read
	// from the runner's input instead, and the fields below are ignored.
	Task              string
	Mode              model.Mode
	ReasoningLanguage string
	MaxSteps          int

	// Auto selects directives with Policy instead of asking the operator.
	Auto   bool
	Policy policy.Config

	CallTimeout time.Duration
	ShowHidden  bool
}

// DefaultOptions returns default run options.
func DefaultOptions() Options {
	return Options{
		Mode:              command.DefaultMode,
		ReasoningLanguage: command.DefaultLanguage,
		MaxSteps:          command.DefaultMaxSteps,
		Policy:            policy.Config{Strategy: policy.StrategyContinue},
	}
}

// Runner drives sessions against one provider port.
type Runner struct {
	port     session.Port
	provider session.ProviderInfo
	pricing  model.Pricing
	store    storage.RecordStorage
	logger   *slog.Logger
	in       *bufio.Scanner
	out      *syncWriter
}

// NewRunner creates a runner reading stdin and writing stdout.
func NewRunner(port session.Port, provider session.ProviderInfo, pricing model.Pricing) *Runner {
	return &Runner{
		port:     port,
		provider: provider,
		pricing:  pricing,
		in:       bufio.NewScanner(os.Stdin),
		out:      &syncWriter{w: os.Stdout},
	}
}

// WithStore saves the session record after the run.
func (r *Runner) WithStore(store storage.RecordStorage) *Runner {
	r.store = store
	return r
}

// WithInput replaces the operator input.
func (r *Runner) WithInput(in io.Reader) *Runner {
	r.in = bufio.NewScanner(in)
	return r
}

// WithOutput replaces the display output.
func (r *Runner) WithOutput(out io.Writer) *Runner {
	r.out = &syncWriter{w: out}
	return r
}

// WithLogger sets the structured logger handed to sessions.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.logger = logger
	return r
}

// Think runs one session to termination and returns its record. The record
// is returned, and saved when a store is set, even when the run stops on an
// error.
func (r *Runner) Think(ctx context.Context, opts Options) (session.Record, error) {
	cfg, err := r.sessionConfig(opts)
	if err != nil {
		return session.Record{}, err
	}

	var auto policy.Policy
	if opts.Auto {
		auto, err = policy.New(opts.Policy)
		if err != nil {
			return session.Record{}, err
		}
	}

	s, err := session.New(cfg, r.port,
		session.WithLogger(r.logger),
		session.WithCallTimeout(opts.CallTimeout),
	)
	if err != nil {
		return session.Record{}, err
	}

	listener := capitan.Hook(session.TurnRetried, func(_ context.Context, e *capitan.Event) {
		if id, ok := session.FieldSessionID.From(e); !ok || id != s.ID() {
			return
		}
		step, _ := session.FieldStepID.From(e)
		reason := "unknown error"
		if err, ok := session.FieldError.From(e); ok && err != nil {
			reason = err.Error()
		}
		r.printf("Retrying step %d: %s\n", step, reason)
	})
	defer listener.Close()

	printSessionStart(r.out, s.ID(), cfg, auto)

	runErr := r.loop(ctx, s, auto, opts.ShowHidden)
	s.Finish()

	rec := s.Snapshot()
	printCostSummary(r.out, rec.Totals)

	if r.store != nil {
		// The run context may already be cancelled; the trace is still written.
		if err := r.store.Save(context.WithoutCancel(ctx), rec); err != nil {
			return rec, errors.Join(runErr, fmt.Errorf("failed to save trace: %w", err))
		}
		if fs, ok := r.store.(*storage.FileStorage); ok {
			r.printf("Trace saved to %s/%s\n", fs.Dir(), storage.TraceName(rec))
		} else {
			r.printf("Session %s saved\n", rec.ID)
		}
	}
	return rec, runErr
}

func (r *Runner) sessionConfig(opts Options) (session.Config, error) {
	init := command.Init{
		Task:              opts.Task,
		Mode:              opts.Mode,
		ReasoningLanguage: opts.ReasoningLanguage,
		MaxSteps:          opts.MaxSteps,
	}
	if opts.Task == "" {
		var err error
		init, err = command.ReadInit(r.in)
		if err != nil {
			return session.Config{}, err
		}
	}
	return session.Config{
		Task:              init.Task,
		Mode:              init.Mode,
		ReasoningLanguage: init.ReasoningLanguage,
		MaxSteps:          init.MaxSteps,
		Pricing:           r.pricing,
		Provider:          r.provider,
	}, nil
}

func (r *Runner) loop(ctx context.Context, s *session.Session, auto policy.Policy, showHidden bool) error {
	// The first step is produced from the initialization block alone.
	d := model.Continue()
	menuShown := false

	for {
		turn, err := s.Advance(ctx, d)
		if err != nil {
			var turnErr *session.TurnError
			if auto != nil || !errors.As(err, &turnErr) {
				return err
			}
			r.printf("Error: %v\n", err)
			r.printf("The session is unchanged; choose a command to try again.\n")
		} else {
			printStep(r.out, turn, s.Config().MaxSteps, showHidden)
			if turn.UsageErr != nil {
				r.printf("Warning: %v\n", turn.UsageErr)
			}
			if turn.Status == session.StatusTerminated {
				return nil
			}
		}

		if auto != nil {
			d = auto.Next(policy.View{HistoryLen: s.Len(), InitialMode: s.Config().Mode})
			r.printf("Auto-selecting command: %s\n", d)
			continue
		}

		if !menuShown {
			printMenu(r.out)
			menuShown = true
		}
		next, ok := r.readDirective()
		if !ok {
			return nil
		}
		d = next
	}
}

// Interactive menu entries, selectable by number or by name.
var menu = []string{
	string(model.DirectiveContinue),
	string(model.DirectiveExploreOptimal),
	string(model.DirectiveGoSlightlyWrong),
	string(model.DirectiveGoVeryWrong),
	string(model.DirectiveReasoningLanguage),
	"EXIT",
}

var menuKeywords = func() *dsa.Trie[int] {
	t := dsa.NewTrie[int]()
	for i, name := range menu {
		t.Insert(name, i+1)
	}
	return t
}()

// completeKeyword expands the first word of input when it is an unambiguous,
// case-insensitive prefix of a menu entry. Anything else is returned as is.
func completeKeyword(input string) string {
	word, rest, _ := strings.Cut(input, " ")
	if name, _, ok := menuKeywords.Complete(strings.ToUpper(word)); ok {
		if rest == "" {
			return name
		}
		return name + " " + rest
	}
	return input
}

// readDirective prompts until the operator enters a directive. It reports
// false when the operator exits or the input ends.
func (r *Runner) readDirective() (model.Directive, bool) {
	for {
		r.printf("Choice [1]: ")
		if !r.in.Scan() {
			r.printf("\n")
			return model.Directive{}, false
		}
		input := strings.TrimSpace(r.in.Text())

		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(menu) {
			input = menu[n-1]
		}
		input = completeKeyword(input)
		switch strings.ToLower(input) {
		case "exit", "quit":
			return model.Directive{}, false
		}

		if input == string(model.DirectiveReasoningLanguage) {
			r.printf("Language: ")
			if !r.in.Scan() {
				r.printf("\n")
				return model.Directive{}, false
			}
			input += " " + strings.TrimSpace(r.in.Text())
		}

		d, err := command.Parse(input)
		if err != nil {
			r.printf("Invalid choice: %v\n", err)
			continue
		}
		return d, true
	}
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// syncWriter serializes writes from the turn loop and signal listeners.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
