package github

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/go-github/v84/github"
)

// GetFileContent returns the decoded content of path at ref. An empty ref
// reads the default branch.
func (c *Client) GetFileContent(ctx context.Context, path, ref string) (string, error) {
	file, _, _, err := c.rest.Repositories.GetContents(ctx, c.owner, c.name, path, contentOpts(ref))
	if err != nil {
		return "", fmt.Errorf("error reading file %s: %w", path, classifyError(err))
	}
	if file == nil {
		return "", fmt.Errorf("error reading file %s: is a directory", path)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("error reading file %s: %w", path, err)
	}
	return content, nil
}

// GetRepositoryFiles returns every text file under path at ref, keyed by
// repository path. Binary files are skipped.
func (c *Client) GetRepositoryFiles(ctx context.Context, path, ref string) (map[string]string, error) {
	files := make(map[string]string)
	pending := []string{path}
	for len(pending) > 0 {
		dir := pending[0]
		pending = pending[1:]

		file, entries, _, err := c.rest.Repositories.GetContents(ctx, c.owner, c.name, dir, contentOpts(ref))
		if err != nil {
			return nil, fmt.Errorf("listing %q: %w", dir, classifyError(err))
		}
		if file != nil {
			// path named a single file
			entries = []*github.RepositoryContent{file}
		}

		for _, entry := range entries {
			switch entry.GetType() {
			case "dir":
				pending = append(pending, entry.GetPath())
			case "file":
				content, err := c.fileText(ctx, entry, ref)
				if err != nil {
					return nil, err
				}
				if content != nil {
					files[entry.GetPath()] = *content
				}
			}
		}
	}
	return files, nil
}

// fileText returns the entry's text, fetching it when the directory listing
// did not include it. It returns nil for binary files.
func (c *Client) fileText(ctx context.Context, entry *github.RepositoryContent, ref string) (*string, error) {
	if entry.Content == nil {
		file, _, _, err := c.rest.Repositories.GetContents(ctx, c.owner, c.name, entry.GetPath(), contentOpts(ref))
		if err != nil {
			return nil, fmt.Errorf("error reading file %s: %w", entry.GetPath(), classifyError(err))
		}
		if file == nil {
			return nil, nil
		}
		entry = file
	}
	content, err := entry.GetContent()
	if err != nil || !utf8.ValidString(content) || strings.ContainsRune(content, 0) {
		return nil, nil
	}
	return &content, nil
}

func contentOpts(ref string) *github.RepositoryContentGetOptions {
	if ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: ref}
}
