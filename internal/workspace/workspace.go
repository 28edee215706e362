// Package workspace locates the project codi works in and reads its files.
package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Workspace is the project directory the agent operates on.
type Workspace struct {
	Root   string
	Name   string
	Branch string
}

// searchBases returns the directories checked for a checkout named after GITHUB_REPO.
func searchBases(cwd, home string) []string {
	bases := []string{cwd}
	if home != "" {
		bases = append(bases,
			filepath.Join(home, "devel"),
			filepath.Join(home, "dev"),
			filepath.Join(home, "projects"),
			filepath.Join(home, "code"),
			home,
		)
	}
	return bases
}

// Detect resolves the workspace. When githubRepo ("owner/name" or "name") is
// set, a git checkout with that name under cwd or a common source directory
// in home wins. Otherwise the git repository enclosing cwd is used, falling
// back to cwd itself.
func Detect(cwd, home, githubRepo string) *Workspace {
	if githubRepo != "" {
		name := githubRepo
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		if name != "" {
			for _, base := range searchBases(cwd, home) {
				candidate := filepath.Join(base, name)
				if isDir(candidate) && isDir(filepath.Join(candidate, ".git")) {
					return Open(candidate)
				}
			}
		}
	}

	if root, err := RepoRoot(cwd); err == nil {
		return Open(root)
	}
	return Open(cwd)
}

// Open describes the workspace at root, reading its current branch when root
// is a git repository.
func Open(root string) *Workspace {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	ws := &Workspace{Root: root, Name: filepath.Base(root)}
	if repo, err := git.PlainOpen(root); err == nil {
		if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
			ws.Branch = head.Name().Short()
		}
	}
	return ws
}

// RepoRoot returns the top level of the git repository containing dir.
func RepoRoot(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	root := wt.Filesystem.Root()
	if root == "" {
		return "", errors.New("repository has no worktree")
	}
	return root, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
