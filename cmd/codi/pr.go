package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tognete/codi/internal/config"
	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/github"
	"github.com/tognete/codi/internal/terminal"
)

func newPRCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pr",
		Short: "Work with GitHub pull requests",
	}
	cmd.AddCommand(newPRCreateCmd())
	return cmd
}

func newPRCreateCmd() *cobra.Command {
	var (
		branch   string
		title    string
		body     string
		bodyFile string
	)
	cmd := &cobra.Command{
		Use:   "create <files...>",
		Short: "Open a pull request with the given files",
		Long: `Create a branch from the default branch of GITHUB_REPO, commit the given
files to it in one commit, and open a pull request. Paths are stored
relative to the workspace root.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := terminal.NewLogger()
			if body != "" && bodyFile != "" {
				logger.Log("--body and --body-file are mutually exclusive", terminal.StyleError)
				return exitCode(domain.ExitError)
			}
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					logger.Logf(terminal.StyleError, "Reading body file: %v", err)
					return exitCode(domain.ExitError)
				}
				body = string(data)
			}

			s, err := loadSettings(cmd, logger)
			if err != nil {
				logger.Logf(terminal.StyleError, "%v", err)
				return exitCode(domain.ExitError)
			}
			changes, err := readChanges(s.Workspace.Root, args)
			if err != nil {
				logger.Logf(terminal.StyleError, "%v", err)
				return exitCode(domain.ExitError)
			}

			ctx := cmd.Context()
			client, err := newGitHubClient(ctx, s.Creds)
			if err != nil {
				logger.Logf(terminal.StyleError, "%v (set GITHUB_TOKEN and GITHUB_REPO)", err)
				return exitCode(domain.ExitError)
			}

			stop := terminal.NewPhaseSpinner(fmt.Sprintf("Opening pull request on %s", client.Repo())).Start(ctx)
			url, err := client.CreatePullRequest(ctx, branch, title, body, changes)
			stop()
			if err != nil {
				logger.Logf(terminal.StyleError, "%v", err)
				return exitCode(domain.ExitTaskFailed)
			}
			logger.Logf(terminal.StyleSuccess, "Created pull request %s", url)
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "Branch to create (required)")
	cmd.Flags().StringVar(&title, "title", "", "Pull request title and commit headline (required)")
	cmd.Flags().StringVar(&body, "body", "", "Pull request description")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read the pull request description from a file")
	_ = cmd.MarkFlagRequired("branch")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

// readChanges reads files into a map keyed by their slash path relative to root.
func readChanges(root string, files []string) (map[string]string, error) {
	changes := make(map[string]string, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%s is outside the workspace %s", f, root)
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		changes[filepath.ToSlash(rel)] = string(data)
	}
	return changes, nil
}

// newGitHubClient connects to GITHUB_REPO with GITHUB_TOKEN.
func newGitHubClient(ctx context.Context, creds config.Credentials) (*github.Client, error) {
	return github.New(ctx, github.Options{
		Token:   creds.GitHubToken,
		Repo:    creds.GitHubRepo,
		BaseURL: creds.GitHubAPIURL,
	})
}
