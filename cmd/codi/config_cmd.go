package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tognete/codi/internal/config"
	"github.com/tognete/codi/internal/llm"
	"github.com/tognete/codi/internal/terminal"
	"github.com/tognete/codi/internal/workspace"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage codi configuration",
		Long:  "View, initialize, and validate codi configuration files and environment variables.",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display resolved configuration",
		Long:  "Show the fully resolved configuration from defaults, config file, environment variables, and flags.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, terminal.NewLogger())
			if err != nil {
				return err
			}

			model := s.Model
			if model == "" {
				model = "(provider default)"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Resolved configuration:")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  %-20s %s\n", "provider:", s.Provider)
			fmt.Fprintf(out, "  %-20s %s\n", "model:", model)
			fmt.Fprintf(out, "  %-20s %s\n", "timeout:", s.Timeout)
			fmt.Fprintf(out, "  %-20s %d\n", "retries:", s.Retries)
			fmt.Fprintf(out, "  %-20s %g\n", "temperature:", s.Temperature)
			fmt.Fprintf(out, "  %-20s %s\n", "addr:", s.Addr)
			fmt.Fprintf(out, "  %-20s %s\n", "store:", s.Store)
			fmt.Fprintf(out, "  %-20s %s\n", "history_dir:", s.HistoryDir)
			fmt.Fprintf(out, "  %-20s %s\n", "workspace:", s.Workspace.Root)
			fmt.Fprintf(out, "  %-20s %d\n", "max_context_bytes:", s.MaxContextBytes)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Credentials:")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  %-20s %s\n", llm.APIKeyEnv(s.Provider)+":", presence(s.Creds.APIKeyFor(s.Provider)))
			fmt.Fprintf(out, "  %-20s %s\n", "SLACK_BOT_TOKEN:", presence(s.Creds.SlackBotToken))
			fmt.Fprintf(out, "  %-20s %s\n", "SLACK_APP_TOKEN:", presence(s.Creds.SlackAppToken))
			fmt.Fprintf(out, "  %-20s %s\n", "GITHUB_TOKEN:", presence(s.Creds.GitHubToken))
			if s.Creds.GitHubRepo != "" {
				fmt.Fprintf(out, "  %-20s %s\n", "GITHUB_REPO:", s.Creds.GitHubRepo)
			} else {
				fmt.Fprintf(out, "  %-20s %s\n", "GITHUB_REPO:", "(not set)")
			}
			return nil
		},
	}
}

func presence(v string) string {
	if v == "" {
		return "(not set)"
	}
	return "set"
}

const starterConfig = `# codi configuration file

# Model provider: openai, anthropic, gemini (default: openai)
# provider: openai

# Model name (default: provider default)
# model: gpt-4o

# Timeout per model call, Go duration format (default: 2m)
# timeout: 2m

# Retry transient model errors N times (default: 3)
# retries: 3

# Chat sampling temperature, 0 to 2 (default: 0.7)
# temperature: 0.7

# Listen address for codi serve (default: :8000)
# addr: ":8000"

# Conversation store: file, sqlite (default: file)
# store: file

# Where conversations are kept, relative to the workspace root
# history_dir: .codi/conversations

# Workspace directory, relative to this file
# workspace: ""

# Maximum bytes of source files sent with a task (default: 200000)
# max_context_bytes: 200000
`

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate a starter .codi.yaml file",
		Long:  "Create a commented .codi.yaml configuration file in the git repository root, or the current directory outside a repository.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			// Write to git repo root (same location runtime loading uses)
			if root, err := workspace.RepoRoot(dir); err == nil {
				dir = root
			}
			configPath := filepath.Join(dir, config.ConfigFileName)

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists; remove it first or edit it directly", configPath)
			}
			if err := os.WriteFile(configPath, []byte(starterConfig), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", configPath, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s with default settings (commented out).\n", configPath)
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and environment variables",
		Long:  "Load and validate the config file and environment variables, reporting any warnings or errors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := terminal.NewLoggerTo(cmd.ErrOrStderr())
			ctx := cmd.Context()
			var errs []string
			var warnings []string

			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			if workspacePath != "" {
				dir = workspacePath
			} else if root, err := workspace.RepoRoot(dir); err == nil {
				dir = root
			}

			// Don't early-return so env var issues are also reported
			cfg := &config.Config{}
			result, err := config.LoadFromDirWithWarnings(dir)
			if err != nil {
				errs = append(errs, fmt.Sprintf("config file: %v", err))
			} else {
				cfg = result.Config
				warnings = append(warnings, result.Warnings...)
			}

			envState, err := config.LoadEnvState(ctx)
			if err != nil {
				errs = append(errs, err.Error())
			}
			creds, err := config.LoadCredentials(ctx)
			if err != nil {
				errs = append(errs, err.Error())
			}

			resolved := config.Resolve(cfg, envState, config.FlagState{}, config.Defaults)
			if err := resolved.Validate(); err != nil {
				errs = append(errs, err.Error())
			}
			if creds.APIKeyFor(resolved.Provider) == "" {
				warnings = append(warnings, fmt.Sprintf("%s is not set; %s requests will fail", llm.APIKeyEnv(resolved.Provider), resolved.Provider))
			}
			if (creds.SlackBotToken == "") != (creds.SlackAppToken == "") {
				warnings = append(warnings, "only one of SLACK_BOT_TOKEN and SLACK_APP_TOKEN is set; the Slack bot needs both")
			}

			for _, w := range warnings {
				logger.Logf(terminal.StyleWarning, "Config: %s", w)
			}
			for _, e := range errs {
				logger.Logf(terminal.StyleError, "%s", e)
			}

			if len(errs) > 0 {
				return fmt.Errorf("configuration has %d error(s)", len(errs))
			}
			if len(warnings) > 0 {
				logger.Log("Configuration is valid (with warnings).", terminal.StyleSuccess)
			} else {
				logger.Log("Configuration is valid.", terminal.StyleSuccess)
			}
			return nil
		},
	}
}
