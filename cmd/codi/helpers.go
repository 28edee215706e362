package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tognete/codi/internal/agent"
	"github.com/tognete/codi/internal/config"
	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/llm"
	"github.com/tognete/codi/internal/memory"
	"github.com/tognete/codi/internal/terminal"
	"github.com/tognete/codi/internal/workspace"
)

// exitCodeError is a wrapper type for returning exit codes via error interface.
type exitCodeError struct {
	code domain.ExitCode
}

func (e exitCodeError) Error() string {
	switch e.code {
	case domain.ExitTaskFailed:
		return "task failed"
	case domain.ExitError:
		return "command failed with error"
	case domain.ExitInterrupted:
		return "command was interrupted"
	default:
		return fmt.Sprintf("exit code %d", e.code)
	}
}

func exitCode(code domain.ExitCode) error {
	if code == domain.ExitSuccess {
		return nil
	}
	return exitCodeError{code: code}
}

// settings is the resolved configuration plus credentials for one command.
type settings struct {
	config.ResolvedConfig
	Creds     config.Credentials
	Workspace *workspace.Workspace
}

// loadSettings resolves configuration (flags > env > .codi.yaml > defaults)
// and detects the workspace. Config warnings are reported through logger.
func loadSettings(cmd *cobra.Command, logger *terminal.Logger) (*settings, error) {
	ctx := cmd.Context()

	creds, err := config.LoadCredentials(ctx)
	if err != nil {
		return nil, err
	}
	envState, err := config.LoadEnvState(ctx)
	if err != nil {
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	home, _ := os.UserHomeDir()

	ws := workspace.Detect(cwd, home, creds.GitHubRepo)
	if workspacePath != "" {
		ws = workspace.Open(workspacePath)
	}

	// Load config file from the workspace root (unless --no-config)
	var cfg *config.Config
	if !noConfig {
		result, err := config.LoadFromDirWithWarnings(ws.Root)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
		cfg = result.Config
		for _, warning := range result.Warnings {
			logger.Logf(terminal.StyleWarning, "Warning: %s", warning)
		}
	}

	flags := cmd.Flags()
	flagState := config.FlagState{
		ProviderSet:  flags.Changed("provider"),
		ModelSet:     flags.Changed("model"),
		TimeoutSet:   flags.Changed("timeout"),
		RetriesSet:   flags.Changed("retries"),
		AddrSet:      flags.Lookup("addr") != nil && flags.Changed("addr"),
		StoreSet:     flags.Changed("store"),
		WorkspaceSet: flags.Changed("workspace"),
	}
	flagValues := config.ResolvedConfig{
		Provider:  providerName,
		Model:     modelName,
		Timeout:   timeout,
		Retries:   retries,
		Addr:      serveAddr,
		Store:     storeName,
		Workspace: workspacePath,
	}
	resolved := config.Resolve(cfg, envState, flagState, flagValues)
	if err := resolved.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// A workspace set only in .codi.yaml is relative to the directory holding it.
	if resolved.Workspace != "" && !flagState.WorkspaceSet {
		root := resolved.Workspace
		if !filepath.IsAbs(root) {
			root = filepath.Join(ws.Root, root)
		}
		ws = workspace.Open(root)
	}

	return &settings{ResolvedConfig: resolved, Creds: creds, Workspace: ws}, nil
}

// newProvider builds the configured provider wrapped with retries and metrics.
func newProvider(ctx context.Context, s *settings) (llm.Provider, error) {
	opts := llm.Options{
		APIKey: s.Creds.APIKeyFor(s.Provider),
		Model:  s.Model,
	}
	if s.Provider == llm.ProviderOpenAI {
		opts.BaseURL = s.Creds.OpenAIBaseURL
	}
	p, err := llm.New(ctx, s.Provider, opts)
	if err != nil {
		return nil, err
	}
	retry := llm.DefaultRetryConfig()
	retry.MaxRetries = s.Retries
	return llm.Instrumented(llm.WithRetry(p, retry)), nil
}

// openStore opens the configured conversation store. Relative history
// directories are resolved against the workspace root.
func openStore(ctx context.Context, s *settings) (memory.Store, error) {
	dir := s.HistoryDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.Workspace.Root, dir)
	}
	switch s.Store {
	case config.StoreSQLite:
		return memory.OpenSQLite(ctx, filepath.Join(dir, "codi.db"))
	default:
		return memory.NewFileStore(dir), nil
	}
}

// session bundles the agent and the resources it holds for one command.
type session struct {
	*settings
	Agent  *agent.Agent
	Logger *terminal.Logger
	store  memory.Store
}

func (s *session) Close() error {
	return s.store.Close()
}

// newSession resolves settings and builds an agent. When interactive is
// true, agent progress is reported on stderr.
func newSession(cmd *cobra.Command, interactive bool) (*session, error) {
	logger := terminal.NewLogger()
	s, err := loadSettings(cmd, logger)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return nil, exitCode(domain.ExitError)
	}

	ctx := cmd.Context()
	provider, err := newProvider(ctx, s)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return nil, exitCode(domain.ExitError)
	}
	store, err := openStore(ctx, s)
	if err != nil {
		logger.Logf(terminal.StyleError, "Opening conversation store: %v", err)
		return nil, exitCode(domain.ExitError)
	}

	collect := workspace.DefaultCollectOptions()
	if s.MaxContextBytes > 0 {
		collect.MaxTotalBytes = s.MaxContextBytes
	}
	opts := []agent.Option{
		agent.WithMemory(memory.New(store)),
		agent.WithWorkspace(s.Workspace),
		agent.WithCollectOptions(collect),
		agent.WithTemperature(s.Temperature),
		agent.WithTimeout(s.Timeout),
	}
	if interactive && !jsonOutput {
		opts = append(opts, agent.WithProgress(terminal.NewWorkflowLogger()))
	}
	return &session{
		settings: s,
		Agent:    agent.New(provider, opts...),
		Logger:   logger,
		store:    store,
	}, nil
}

// printResponse writes resp as JSON with --json, or as rendered markdown.
func printResponse(w io.Writer, resp *domain.CodeResponse) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	width := terminal.ReportWidth()
	fmt.Fprintln(w, terminal.RenderMarkdown(resp.Solution, width))
	if resp.Explanation != "" && resp.Explanation != resp.Solution {
		fmt.Fprintln(w, terminal.RenderMarkdown(resp.Explanation, width))
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintln(w, terminal.Ruler(width, "─"))
		fmt.Fprintf(w, "%sSuggestions%s\n", terminal.Color(terminal.Bold), terminal.Color(terminal.Reset))
		for _, s := range resp.Suggestions {
			fmt.Fprintln(w, terminal.WrapText("• "+s, width, "  "))
		}
	}
	return nil
}
