// Package main provides the reasonloop CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/reasonloop/agent"
	"github.com/richinex/reasonloop/cli"
	"github.com/richinex/reasonloop/config"
	"github.com/richinex/reasonloop/model"
	"github.com/richinex/reasonloop/policy"
	"github.com/richinex/reasonloop/storage"
)

var (
	// Global flags
	providersDir string
	outputDir    string
	storeKind    string
	dbPath       string
	verbose      bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "reasonloop",
		Short: "Step-by-step reasoning sessions against chat-completion models",
		Long: `A CLI for driving multi-step reasoning sessions.

Each turn asks the model for one structured reasoning step. Between steps an
operator (or an auto-mode policy) steers the session with commands:
CONTINUE, EXPLORE_OPTIMAL, GO_SLIGHTLY_WRONG, GO_VERY_WRONG and
REASONING_LANGUAGE <language>.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&providersDir, "providers-dir", "providers", "Directory of provider YAML files")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "traces", "Directory for trace files")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "file", "Session storage: file or sqlite")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", ".reasonloop/sessions.db", "Database path for sqlite storage")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log session events to stderr")

	rootCmd.AddCommand(thinkCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(providersCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func thinkCmd() *cobra.Command {
	var (
		task         string
		mode         string
		language     string
		maxSteps     int
		providerName string
		auto         bool
		autoMode     string
		fixedMode    string
		seed         uint64
		callTimeout  time.Duration
		debug        bool
		showHidden   bool
	)

	cmd := &cobra.Command{
		Use:   "think",
		Short: "Start a reasoning session",
		Long: `Start a reasoning session.

Without --task the initialization block is read from stdin:

  TASK: ` + "```<task>```" + `
  MODE: GO_SLIGHTLY_WRONG
  REASONING_LANGUAGE: French
  MAX_STEPS: 5
  <blank line>

followed by one command per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionDefaults, err := config.SessionFromEnv()
			if err != nil {
				return err
			}

			opts := cli.DefaultOptions()
			opts.Task = task
			opts.ReasoningLanguage = sessionDefaults.ReasoningLanguage
			opts.MaxSteps = sessionDefaults.MaxSteps
			opts.CallTimeout = sessionDefaults.CallTimeout
			opts.ShowHidden = showHidden

			if mode != "" {
				if opts.Mode, err = model.ParseMode(mode); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("language") {
				opts.ReasoningLanguage = language
			}
			if cmd.Flags().Changed("max-steps") {
				opts.MaxSteps = maxSteps
			}
			if cmd.Flags().Changed("timeout") {
				opts.CallTimeout = callTimeout
			}

			if auto {
				strategy, err := policy.ParseStrategy(autoMode)
				if err != nil {
					return err
				}
				opts.Auto = true
				opts.Policy = policy.Config{Strategy: strategy, Mode: model.Mode(fixedMode), Seed: seed}
				if !cmd.Flags().Changed("seed") {
					opts.Policy.Seed = uint64(time.Now().UnixNano())
				}
			}

			provider, err := cli.CreateProvider(providersDir, providerName)
			if err != nil {
				return err
			}

			builder := agent.NewBuilder(provider.LLM)
			if debug {
				builder = builder.DebugDir(filepath.Join(outputDir, time.Now().Format("20060102_150405"), "debug"))
			}

			store, closeStore, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			runner := cli.NewRunner(builder.Build(), provider.Info(), provider.Pricing).
				WithStore(store).
				WithLogger(newLogger())
			_, err = runner.Think(cmd.Context(), opts)
			return err
		},
	}

	cmd.Flags().StringVarP(&task, "task", "t", "", "Task description (reads the init block from stdin when empty)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Initial mode: EXPLORE_OPTIMAL, GO_SLIGHTLY_WRONG, GO_VERY_WRONG")
	cmd.Flags().StringVarP(&language, "language", "l", "English", "Reasoning language")
	cmd.Flags().IntVarP(&maxSteps, "max-steps", "s", 10, "Maximum number of steps")
	cmd.Flags().StringVarP(&providerName, "provider", "p", "deepseek", "Provider file name or built-in provider (openai, anthropic, deepseek, gemini)")
	cmd.Flags().BoolVarP(&auto, "auto", "a", false, "Run without operator input")
	cmd.Flags().StringVar(&autoMode, "auto-mode", "continue", "Auto-mode policy: continue, fixed, vary, wrong, random")
	cmd.Flags().StringVar(&fixedMode, "fixed-mode", string(model.ModeExploreOptimal), "Mode replayed by the fixed policy")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for the random policy")
	cmd.Flags().DurationVar(&callTimeout, "timeout", 0, "Timeout for a single provider call (0 for none)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Write every provider call to the output directory")
	cmd.Flags().BoolVar(&showHidden, "show-hidden", false, "Show the model's hidden self-assessment")

	return cmd
}

func replayCmd() *cobra.Command {
	var showHidden bool

	cmd := &cobra.Command{
		Use:   "replay <session-id | trace-file>",
		Short: "Print a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore()
			return cli.Replay(cmd.Context(), store, args[0], os.Stdout, showHidden)
		},
	}

	cmd.Flags().BoolVar(&showHidden, "show-hidden", true, "Show the model's hidden self-assessment")
	return cmd
}

func sessionsCmd() *cobra.Command {
	var remove string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			if remove != "" {
				if err := store.Delete(cmd.Context(), remove); err != nil {
					return err
				}
				fmt.Printf("Deleted session %s\n", remove)
				return nil
			}
			return cli.ListSessions(cmd.Context(), store, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&remove, "delete", "", "Delete the session with this id")
	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List provider configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListProviders(providersDir, os.Stdout)
		},
	}
}

func openStore() (storage.RecordStorage, func(), error) {
	switch storeKind {
	case "file":
		return storage.NewFileStorage(outputDir), func() {}, nil
	case "sqlite":
		s, err := storage.OpenSqlite(dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want file or sqlite)", storeKind)
	}
}

func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
