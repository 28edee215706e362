// Package git wraps the git plumbing used to review local changes.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/waigani/diffparser"
)

var commitSHAPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

// GetRoot returns the top-level directory of the repository containing dir.
func GetRoot(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// GetDiff returns the unified diff of the working tree against baseRef.
func GetDiff(ctx context.Context, baseRef, workDir string) (string, error) {
	if baseRef == "" {
		return "", errors.New("base ref cannot be empty")
	}
	if strings.HasPrefix(baseRef, "-") {
		return "", fmt.Errorf("invalid base ref %q: must not start with -", baseRef)
	}
	cmd := exec.CommandContext(ctx, "git", "diff", "--no-color", "--no-ext-diff", baseRef, "--")
	cmd.Dir = workDir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("git diff %s: %s", baseRef, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git diff %s: %w", baseRef, err)
	}
	return string(out), nil
}

// ChangedFiles returns the new-side paths of files added or modified by diff.
// Deleted files are omitted.
func ChangedFiles(diff string) ([]string, error) {
	if strings.TrimSpace(diff) == "" {
		return nil, nil
	}
	parsed, err := diffparser.Parse(diff)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	var paths []string
	for _, f := range parsed.Files {
		if f.Mode == diffparser.DELETED || f.NewName == "" {
			continue
		}
		paths = append(paths, f.NewName)
	}
	return paths, nil
}

// FetchResult describes how a base ref was resolved.
type FetchResult struct {
	// ResolvedRef is the ref to diff against.
	ResolvedRef string
	// RefResolved is false when a fetch was needed but failed and ResolvedRef
	// falls back to the local ref, which may be stale.
	RefResolved bool
	// FetchAttempted reports whether git fetch was run.
	FetchAttempted bool
}

// FetchRemoteRef fetches baseRef from origin and returns origin/<baseRef>.
// Refs that are already remote, relative to HEAD, or commit SHAs are returned
// unchanged without fetching.
func FetchRemoteRef(ctx context.Context, baseRef, workDir string) FetchResult {
	if strings.HasPrefix(baseRef, "origin/") || strings.HasPrefix(baseRef, "-") || IsRelativeRef(baseRef) {
		return FetchResult{ResolvedRef: baseRef, RefResolved: true}
	}

	cmd := exec.CommandContext(ctx, "git", "fetch", "--quiet", "origin", baseRef)
	cmd.Dir = workDir
	if err := cmd.Run(); err != nil {
		return FetchResult{ResolvedRef: baseRef, FetchAttempted: true}
	}
	return FetchResult{ResolvedRef: "origin/" + baseRef, RefResolved: true, FetchAttempted: true}
}

// IsRelativeRef reports whether ref is resolved relative to the local
// checkout (HEAD, ancestry or reflog syntax, or a commit SHA).
func IsRelativeRef(ref string) bool {
	return ref == "HEAD" ||
		strings.ContainsAny(ref, "~^") ||
		strings.Contains(ref, "@{") ||
		IsLikelyCommitSHA(ref)
}

// IsLikelyCommitSHA reports whether ref looks like an abbreviated or full commit SHA.
func IsLikelyCommitSHA(ref string) bool {
	return commitSHAPattern.MatchString(ref)
}
