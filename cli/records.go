// Stored session commands.
//
// Information Hiding:
// - Record lookup by id or trace path
// - Listing layout

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/richinex/reasonloop/accounting"
	"github.com/richinex/reasonloop/config"
	"github.com/richinex/reasonloop/session"
	"github.com/richinex/reasonloop/storage"
)

// Replay prints a stored session. ref is a session id in store or a path to
// a trace file. The record is validated again before anything is printed.
func Replay(ctx context.Context, store storage.RecordStorage, ref string, w io.Writer, showHidden bool) error {
	rec, err := loadRecord(ctx, store, ref)
	if err != nil {
		return err
	}
	s, err := session.Restore(rec)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Session %s (%s, %s)\n", s.ID(), s.Status(), s.TerminationReason())
	fmt.Fprintf(w, "  Provider:  %s (%s)\n", rec.Provider.Name, rec.Provider.Model)
	fmt.Fprintf(w, "  Task:      %s\n", rec.Task)
	fmt.Fprintf(w, "  Created:   %s\n\n", rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	for _, e := range s.Entries() {
		if e.Step.StepID > 1 {
			fmt.Fprintf(w, "> %s\n", e.Directive)
		}
		printEntry(w, e.Step, rec.MaxSteps, showHidden)
		fmt.Fprintf(w, "Cost: %s\n\n", accounting.FormatUSD(e.TurnCost))
	}
	for _, d := range s.Issued() {
		if d.Outcome == session.OutcomeFailed {
			fmt.Fprintf(w, "Failed: > %s at step %d: %s\n", d.Directive, d.StepID, d.Error)
		}
	}
	printCostSummary(w, s.Totals())
	return nil
}

func loadRecord(ctx context.Context, store storage.RecordStorage, ref string) (session.Record, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return storage.ReadTrace(ref)
	}
	rec, err := store.Load(ctx, ref)
	if err != nil {
		return session.Record{}, fmt.Errorf("session %s: %w", ref, err)
	}
	return rec, nil
}

// ListSessions prints the stored sessions, newest first.
func ListSessions(ctx context.Context, store storage.RecordStorage, w io.Writer) error {
	summaries, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTEPS\tSTATUS\tCOST\tMODEL\tTASK")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.CreatedAt.Format("2006-01-02 15:04"),
			s.Steps,
			s.Status,
			accounting.FormatUSD(s.CostUSD),
			s.Model,
			truncateString(s.Task, maxTaskLen),
		)
	}
	return tw.Flush()
}

// ListProviders prints the provider files in dir.
func ListProviders(dir string, w io.Writer) error {
	names, err := config.ListProviders(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintf(w, "No provider configurations in %s.\n", dir)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tMODEL\tDESCRIPTION")
	for _, name := range names {
		pf, err := config.LoadProvider(dir, name)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\tinvalid: %v\n", name, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, pf.ProviderType, pf.Model, pf.Description)
	}
	return tw.Flush()
}

const maxTaskLen = 50

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
