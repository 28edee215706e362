package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tognete/codi/internal/agent"
	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/git"
	"github.com/tognete/codi/internal/github"
	"github.com/tognete/codi/internal/terminal"
	"github.com/tognete/codi/internal/workspace"
)

// remoteSource selects files from GITHUB_REPO instead of the workspace.
type remoteSource struct {
	enabled bool
	ref     string
}

func (r *remoteSource) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&r.enabled, "remote", false,
		"Read <path> from GITHUB_REPO instead of the workspace")
	cmd.Flags().StringVar(&r.ref, "ref", "",
		"Branch, tag, or commit to read with --remote (default branch if empty)")
}

func newAnalyzeCmd() *cobra.Command {
	var (
		description string
		remote      remoteSource
	)
	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Analyze a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPathTask(cmd, domain.TaskAnalyze, description, args[0], remote)
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "Analyze this code",
		"What to look for")
	remote.addFlags(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the response as JSON")
	return cmd
}

func newReviewCmd() *cobra.Command {
	var (
		description string
		diffBase    string
		fetch       bool
		remote      remoteSource
	)
	cmd := &cobra.Command{
		Use:   "review [path]",
		Short: "Review a file, a directory, or the changes since a base ref",
		Long: `Review code. With a path, the files under it are reviewed. With --diff,
the files changed since the base ref are reviewed along with the diff.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case diffBase != "" && len(args) > 0:
				return fmt.Errorf("review takes a path or --diff, not both")
			case diffBase != "" && remote.enabled:
				return fmt.Errorf("--remote reviews a path, not --diff")
			case diffBase != "":
				return runDiffReview(cmd, description, diffBase, fetch)
			case len(args) == 1:
				return runPathTask(cmd, domain.TaskReview, description, args[0], remote)
			default:
				return fmt.Errorf("review requires a path or --diff <base>")
			}
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "Review this code",
		"What to focus on")
	cmd.Flags().StringVar(&diffBase, "diff", "",
		"Review the changes since this base ref")
	cmd.Flags().BoolVar(&fetch, "fetch", true,
		"Fetch the base ref from origin before diffing")
	remote.addFlags(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the response as JSON")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var (
		language     string
		requirements []string
		outDir       string
	)
	cmd := &cobra.Command{
		Use:   "generate <prompt...>",
		Short: "Generate code from a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := &domain.Task{
				Type:         domain.TaskGenerate,
				Description:  strings.Join(args, " "),
				Context:      domain.CodeContext{Files: map[string]string{}, Language: language},
				Requirements: requirements,
			}
			sess, err := newSession(cmd, true)
			if err != nil {
				return err
			}
			defer sess.Close()

			resp, err := processTask(cmd.Context(), sess, task)
			if err != nil {
				return err
			}
			if outDir != "" {
				written, err := writeChanges(outDir, resp.CodeChanges)
				if err != nil {
					sess.Logger.Logf(terminal.StyleError, "%v", err)
					return exitCode(domain.ExitError)
				}
				for _, p := range written {
					sess.Logger.Logf(terminal.StyleSuccess, "Wrote %s", p)
				}
				if len(written) == 0 {
					sess.Logger.Log("No file changes in the response", terminal.StyleWarning)
				}
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&language, "lang", "", "Preferred language")
	cmd.Flags().StringArrayVar(&requirements, "require", nil, "Specific requirement (repeatable)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write generated files into this directory")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the response as JSON")
	return cmd
}

// runPathTask runs an analyze or review task over the files at path.
func runPathTask(cmd *cobra.Command, taskType domain.TaskType, description, path string, remote remoteSource) error {
	sess, err := newSession(cmd, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	var codeCtx domain.CodeContext
	if remote.enabled {
		client, err := newGitHubClient(cmd.Context(), sess.Creds)
		if err != nil {
			sess.Logger.Logf(terminal.StyleError, "%v (set GITHUB_TOKEN and GITHUB_REPO)", err)
			return exitCode(domain.ExitError)
		}
		codeCtx, err = remoteContext(cmd.Context(), client, path, remote.ref)
		if err != nil {
			sess.Logger.Logf(terminal.StyleError, "%v", err)
			return exitCode(domain.ExitError)
		}
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		codeCtx, err = sess.Agent.WorkspaceContext(abs)
		if err != nil {
			sess.Logger.Logf(terminal.StyleError, "%v", err)
			return exitCode(domain.ExitError)
		}
	}
	if codeCtx.IsEmpty() {
		sess.Logger.Logf(terminal.StyleWarning, "No source files found under %s", path)
		return exitCode(domain.ExitError)
	}
	codeCtx.CurrentFile = filepath.ToSlash(path)
	if len(codeCtx.Files) == 1 {
		codeCtx.Language = workspace.LanguageFor(codeCtx.Paths()[0])
	}

	resp, err := processTask(cmd.Context(), sess, &domain.Task{Type: taskType, Description: description, Context: codeCtx})
	if err != nil {
		return err
	}
	return printResponse(cmd.OutOrStdout(), resp)
}

// remoteContext reads the text files under path in the client's repository.
func remoteContext(ctx context.Context, client *github.Client, path, ref string) (domain.CodeContext, error) {
	files, err := client.GetRepositoryFiles(ctx, strings.Trim(filepath.ToSlash(path), "/"), ref)
	if err != nil {
		return domain.CodeContext{}, fmt.Errorf("reading %s from %s: %w", path, client.Repo(), err)
	}
	return domain.CodeContext{Files: files, ProjectRoot: client.Repo()}, nil
}

// runDiffReview reviews the files changed between baseRef and the working tree.
func runDiffReview(cmd *cobra.Command, description, baseRef string, fetch bool) error {
	sess, err := newSession(cmd, true)
	if err != nil {
		return err
	}
	defer sess.Close()
	ctx := cmd.Context()
	// Diff paths are relative to the top of the repository.
	root, err := git.GetRoot(sess.Workspace.Root)
	if err != nil {
		sess.Logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	if fetch {
		result := git.FetchRemoteRef(ctx, baseRef, root)
		if result.FetchAttempted && !result.RefResolved {
			sess.Logger.Logf(terminal.StyleWarning, "Could not fetch %s from origin, using local ref", baseRef)
		}
		baseRef = result.ResolvedRef
	}

	diff, err := git.GetDiff(ctx, baseRef, root)
	if err != nil {
		sess.Logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}
	paths, err := git.ChangedFiles(diff)
	if err != nil {
		sess.Logger.Logf(terminal.StyleError, "Parsing diff: %v", err)
		return exitCode(domain.ExitError)
	}
	if len(paths) == 0 {
		sess.Logger.Logf(terminal.StyleSuccess, "No changes since %s", baseRef)
		return nil
	}
	sess.Logger.Logf(terminal.StyleInfo, "Reviewing %d changed files since %s", len(paths), baseRef)

	files := make(map[string]string, len(paths)+1)
	for _, p := range paths {
		c, err := sess.Agent.WorkspaceContext(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			sess.Logger.Logf(terminal.StyleDim, "Skipping %s: %v", p, err)
			continue
		}
		for k, v := range c.Files {
			files[k] = v
		}
	}
	files["changes.diff"] = diff

	task := &domain.Task{
		Type:        domain.TaskReview,
		Description: fmt.Sprintf("%s\n\nReview the changes since %s shown in changes.diff.", description, baseRef),
		Context:     domain.CodeContext{Files: files, ProjectRoot: root},
	}
	resp, err := processTask(ctx, sess, task)
	if err != nil {
		return err
	}
	return printResponse(cmd.OutOrStdout(), resp)
}

// processTask runs task tagged as a CLI request, mapping failures to exit codes.
func processTask(ctx context.Context, sess *session, task *domain.Task) (*domain.CodeResponse, error) {
	resp, err := sess.Agent.ProcessTask(agent.WithSource(ctx, domain.SourceCLI), task)
	if err != nil {
		if ctx.Err() != nil {
			return nil, exitCode(domain.ExitInterrupted)
		}
		sess.Logger.Logf(terminal.StyleError, "%v", err)
		return nil, exitCode(domain.ExitTaskFailed)
	}
	return resp, nil
}

// writeChanges writes each code change under dir and returns the written
// paths in order. Paths that escape dir are rejected.
func writeChanges(dir string, changes map[string]string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	resp := domain.CodeResponse{CodeChanges: changes}
	written := make([]string, 0, len(changes))
	for _, p := range resp.ChangedPaths() {
		rel := filepath.Clean(filepath.FromSlash(p))
		if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return written, fmt.Errorf("refusing to write %s outside %s", p, dir)
		}
		if d := filepath.Dir(rel); d != "." {
			if err := root.MkdirAll(d, 0755); err != nil {
				return written, fmt.Errorf("creating %s: %w", d, err)
			}
		}
		if err := root.WriteFile(rel, []byte(changes[p]), 0644); err != nil {
			return written, fmt.Errorf("writing %s: %w", p, err)
		}
		written = append(written, filepath.Join(dir, rel))
	}
	return written, nil
}
