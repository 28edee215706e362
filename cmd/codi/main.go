// Package main provides the CLI entry point for codi.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/terminal"
)

var (
	providerName  string
	modelName     string
	workspacePath string
	timeout       time.Duration
	retries       int
	storeName     string
	noConfig      bool
	logLevel      string
	noColor       bool
	jsonOutput    bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	interrupted := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		close(interrupted)
		fmt.Fprintln(os.Stderr)
		terminal.Log("Interrupted, shutting down...", terminal.StyleWarning)
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)

	select {
	case <-interrupted:
		return domain.ExitInterrupted.Int()
	default:
	}
	if err == nil {
		return domain.ExitSuccess.Int()
	}
	// Check if this is an exit code wrapper (not a real error)
	var exitErr exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code.Int()
	}
	terminal.Logf(terminal.StyleError, "Error: %v", err)
	return domain.ExitError.Int()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codi",
		Short: "Codi - an AI developer assistant",
		Long: `Codi answers questions about your code, analyzes, reviews, and generates
code, and opens pull requests. It runs as an interactive chat, a Slack bot,
a GitHub webhook, an HTTP task service, or an MCP server.

Running codi without a subcommand starts the chat and, when Slack tokens
are set, the Slack bot.

Exit codes:
  0 - Success
  1 - Task failed
  2 - Error
  130 - Interrupted`,
		RunE:              runInteractive,
		PersistentPreRunE: setupLogging,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           buildVersionString(),
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Defaults are resolved via config.Resolve with precedence: flag > env > config > default
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&providerName, "provider", "p", "",
		"Model provider: openai, anthropic, gemini (default: openai, env: CODI_PROVIDER)")
	flags.StringVarP(&modelName, "model", "m", "",
		"Model name (default: provider default, env: CODI_MODEL)")
	flags.StringVarP(&workspacePath, "workspace", "w", "",
		"Workspace directory (default: detected from GITHUB_REPO or the enclosing git repository)")
	flags.DurationVarP(&timeout, "timeout", "t", 0,
		"Timeout per model call (default: 2m, env: CODI_TIMEOUT)")
	flags.IntVarP(&retries, "retries", "R", 0,
		"Retry transient model errors N times (default: 3, env: CODI_RETRIES)")
	flags.StringVar(&storeName, "store", "",
		"Conversation store: file, sqlite (default: file, env: CODI_STORE)")
	flags.BoolVar(&noConfig, "no-config", false,
		"Skip loading .codi.yaml config file")
	flags.StringVar(&logLevel, "log-level", "info",
		"Service log level: debug, info, warn, error")
	flags.BoolVar(&noColor, "no-color", false,
		"Disable colored output (also honors NO_COLOR)")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupTasks, Title: "Tasks:"},
		&cobra.Group{ID: groupServices, Title: "Services:"},
		&cobra.Group{ID: groupTools, Title: "Tools:"},
	)
	for _, c := range []*cobra.Command{newChatCmd(), newAnalyzeCmd(), newReviewCmd(), newGenerateCmd()} {
		c.GroupID = groupTasks
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{newRunCmd(), newServeCmd(), newSlackCmd(), newMCPCmd()} {
		c.GroupID = groupServices
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{newPRCmd(), newStatsCmd(), newConfigCmd()} {
		c.GroupID = groupTools
		rootCmd.AddCommand(c)
	}

	setGroupedUsage(rootCmd)
	return rootCmd
}

const (
	groupTasks    = "tasks"
	groupServices = "services"
	groupTools    = "tools"
)

// setupLogging installs the structured service logger on the command context
// and configures terminal colors.
func setupLogging(cmd *cobra.Command, _ []string) error {
	terminal.ConfigureColors(noColor)

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	logger := clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(slog.New(logger.Handler()))
	cmd.SetContext(clog.WithLogger(cmd.Context(), logger))
	return nil
}
