// Terminal rendering of sessions.
//
// Information Hiding:
// - Layout of steps, menus and cost summaries

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/richinex/reasonloop/accounting"
	"github.com/richinex/reasonloop/model"
	"github.com/richinex/reasonloop/policy"
	"github.com/richinex/reasonloop/session"
)

const barWidth = 20

// bar renders value/total as a fixed-width bar.
func bar(value, total int) string {
	filled := 0
	if total > 0 {
		filled = barWidth * value / total
	}
	filled = min(max(filled, 0), barWidth)
	return fmt.Sprintf("%s%s %d/%d", strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), value, total)
}

func printSessionStart(w io.Writer, id string, cfg session.Config, auto policy.Policy) {
	fmt.Fprintf(w, "Reasoning session %s\n", id)
	fmt.Fprintf(w, "  Provider:  %s (%s)\n", cfg.Provider.Name, cfg.Provider.Model)
	fmt.Fprintf(w, "  Task:      %s\n", cfg.Task)
	fmt.Fprintf(w, "  Mode:      %s\n", cfg.Mode)
	fmt.Fprintf(w, "  Language:  %s\n", cfg.ReasoningLanguage)
	fmt.Fprintf(w, "  Max steps: %d\n", cfg.MaxSteps)
	if auto != nil {
		fmt.Fprintf(w, "  Auto mode: %s\n", auto.Strategy())
	}
	fmt.Fprintln(w)
}

func printStep(w io.Writer, turn session.Turn, maxSteps int, showHidden bool) {
	printEntry(w, turn.Step, maxSteps, showHidden)
	fmt.Fprintf(w, "Cost: %s (total %s)\n\n", accounting.FormatUSD(turn.TurnCost), accounting.FormatUSD(turn.Totals.CostUSD))
}

func printEntry(w io.Writer, step model.Step, maxSteps int, showHidden bool) {
	fmt.Fprintf(w, "Step %d/%d  Confidence: %s  Language: %s\n",
		step.StepID, maxSteps, bar(step.ConfidenceLevel, 5), step.ReasoningLanguage)
	fmt.Fprintf(w, "== %s ==\n", step.StepTitle)
	fmt.Fprintf(w, "%s\n", step.StepText)

	if step.ExplorationMode.Active && showHidden {
		fmt.Fprintf(w, "Divergence: %s\n", step.ExplorationMode.DivergenceReason)
		if step.ExplorationMode.OptimalAlternative != "" {
			fmt.Fprintf(w, "Optimal alternative: %s\n", step.ExplorationMode.OptimalAlternative)
		}
	}
	if showHidden {
		h := step.HiddenMetadata
		fmt.Fprintf(w, "Hidden: true confidence %d/5, path %s\n", h.TrueConfidence, h.PathQuality)
		for _, issue := range h.EmbeddedIssues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}

	if step.Solution.Type != model.SolutionNone {
		fmt.Fprintf(w, "Solution (%s)  Completeness: %s\n", step.Solution.Type, bar(step.Solution.Completeness, 100))
		fmt.Fprintf(w, "%s\n", step.Solution.Content)
	}
}

func printMenu(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	for i, name := range menu {
		fmt.Fprintf(w, "  %d. %s\n", i+1, name)
	}
}

func printCostSummary(w io.Writer, t model.Totals) {
	fmt.Fprintf(w, "\nTokens: input %d | cached %d | output %d\n", t.InputTokens, t.CachedTokens, t.OutputTokens)
	fmt.Fprintf(w, "Cost Summary: Input: %s | Cached: %s | Output: %s | Total: %s\n",
		accounting.FormatUSD(t.InputCost),
		accounting.FormatUSD(t.CachedCost),
		accounting.FormatUSD(t.OutputCost),
		accounting.FormatUSD(t.CostUSD),
	)
}
