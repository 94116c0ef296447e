package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bw4243/NodeSeek-Signin/commenter"
	"github.com/bw4243/NodeSeek-Signin/config"
	"github.com/bw4243/NodeSeek-Signin/forum"
	"github.com/bw4243/NodeSeek-Signin/generator"
	"github.com/bw4243/NodeSeek-Signin/history"
)

var (
	configPath string
	verbose    bool
	logger     *zap.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ns-commenter",
		Short:        "Read forum threads and post drafted replies within a daily quota",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			l, err := buildLogger(verbose)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional config file (toml, yaml or json)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")

	root.AddCommand(newRunCmd(), newThreadsCmd(), newContextCmd())
	return root
}

func buildLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func newRunCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reply to threads for every configured account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dry-run") {
				app.Comment.DryRun = dryRun
			}
			if len(app.Accounts) == 0 {
				return errors.New("no cookies configured; set NS_COOKIE or NS_COOKIE_FILE")
			}
			return runAccounts(cmd.Context(), app)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "draft replies without posting them")
	return cmd
}

func runAccounts(ctx context.Context, app config.App) error {
	llm, err := buildLLM(ctx, app.LLM)
	if err != nil {
		return err
	}
	agent, err := generator.NewAgent(llm)
	if err != nil {
		return err
	}
	store, err := history.Open(app.HistoryPath)
	if err != nil {
		return err
	}
	runner, err := commenter.NewRunner(app.Comment, agent, store, commenter.LogNotifier{Logger: logger}, logger)
	if err != nil {
		return err
	}

	logger.Info("starting run", zap.Int("accounts", len(app.Accounts)), zap.Bool("dry_run", app.Comment.DryRun))
	for _, account := range app.Accounts {
		cfg := app.Forum
		cfg.Cookie = account.Cookie
		client, err := forum.New(cfg, logger.With(zap.String("account", account.Label)))
		if err != nil {
			return err
		}
		if err := runner.Run(ctx, account, client); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("account stopped", zap.String("account", account.Label), zap.Error(err))
		}
	}
	return nil
}

func newThreadsCmd() *cobra.Command {
	var (
		category string
		page     int
		account  int
	)
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List the threads on a category page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := config.Load(configPath)
			if err != nil {
				return err
			}
			client, err := clientFor(app, account)
			if err != nil {
				return err
			}
			if category == "" {
				category = app.Comment.CategorySlug
			}
			refs, err := client.ListThreads(cmd.Context(), category, page)
			if err != nil {
				return err
			}
			for _, ref := range refs {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", ref.ID, ref.Title, ref.URL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category slug (defaults to the configured one)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&account, "account", 1, "which configured cookie to use (1-based)")
	return cmd
}

func newContextCmd() *cobra.Command {
	var (
		sample  int
		account int
	)
	cmd := &cobra.Command{
		Use:   "context <thread-url>",
		Short: "Print what would be sent to the reply generator for a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := config.Load(configPath)
			if err != nil {
				return err
			}
			client, err := clientFor(app, account)
			if err != nil {
				return err
			}
			tc, err := client.FetchContext(cmd.Context(), args[0], sample)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(tc)
		},
	}
	cmd.Flags().IntVar(&sample, "sample", 6, "number of peer replies to sample")
	cmd.Flags().IntVar(&account, "account", 1, "which configured cookie to use (1-based)")
	return cmd
}

// clientFor builds a client for the n-th account, or an anonymous one when no
// cookie is configured.
func clientFor(app config.App, n int) (*forum.Client, error) {
	cfg := app.Forum
	if len(app.Accounts) > 0 {
		if n < 1 || n > len(app.Accounts) {
			return nil, fmt.Errorf("account %d out of range (have %d)", n, len(app.Accounts))
		}
		cfg.Cookie = app.Accounts[n-1].Cookie
	}
	return forum.New(cfg, logger)
}

func buildLLM(ctx context.Context, s generator.LLMSettings) (generator.LLMClient, error) {
	switch s.Provider {
	case "gemini", "":
		return generator.NewGeminiLLMFromConfig(ctx, &s)
	case "openai":
		return generator.NewOpenAILLMFromConfig(&s)
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url。
		if s.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(&s)
	case "mock":
		return generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", s.Provider)
	}
}
