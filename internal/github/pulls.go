package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"

	"github.com/tognete/codi/internal/domain"
)

// repoHead is the repository node and default branch tip.
type repoHead struct {
	ID            githubv4.ID
	DefaultBranch string
	HeadOID       githubv4.GitObjectID
}

func (c *Client) defaultHead(ctx context.Context) (*repoHead, error) {
	var q struct {
		Repository struct {
			ID               githubv4.ID
			DefaultBranchRef struct {
				Name   string
				Target struct {
					Oid githubv4.GitObjectID
				}
			}
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	vars := map[string]any{
		"owner": githubv4.String(c.owner),
		"name":  githubv4.String(c.name),
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("querying default branch: %w", err)
	}
	if q.Repository.DefaultBranchRef.Name == "" {
		return nil, errors.New("repository has no default branch")
	}
	return &repoHead{
		ID:            q.Repository.ID,
		DefaultBranch: q.Repository.DefaultBranchRef.Name,
		HeadOID:       q.Repository.DefaultBranchRef.Target.Oid,
	}, nil
}

// CreatePullRequest creates branch from the default branch, commits changes
// (path to full content) to it in a single commit, and opens a pull request.
// It returns the pull request's HTML URL.
func (c *Client) CreatePullRequest(ctx context.Context, branch, title, body string, changes map[string]string) (string, error) {
	url, err := c.createPullRequest(ctx, branch, title, body, changes)
	if err != nil {
		return "", fmt.Errorf("error creating pull request: %w", err)
	}
	return url, nil
}

func (c *Client) createPullRequest(ctx context.Context, branch, title, body string, changes map[string]string) (string, error) {
	if branch == "" || title == "" {
		return "", errors.New("branch and title are required")
	}
	if len(changes) == 0 {
		return "", errors.New("no file changes")
	}

	head, err := c.defaultHead(ctx)
	if err != nil {
		return "", err
	}

	var createRef struct {
		CreateRef struct {
			Ref struct {
				Name string
			}
		} `graphql:"createRef(input: $input)"`
	}
	refInput := githubv4.CreateRefInput{
		RepositoryID: head.ID,
		Name:         githubv4.String("refs/heads/" + branch),
		Oid:          head.HeadOID,
	}
	if err := c.gql.Mutate(ctx, &createRef, refInput, nil); err != nil {
		return "", fmt.Errorf("creating branch %s: %w", branch, err)
	}

	additions := make([]githubv4.FileAddition, 0, len(changes))
	for _, path := range slices.Sorted(maps.Keys(changes)) {
		additions = append(additions, githubv4.FileAddition{
			Path:     githubv4.String(path),
			Contents: githubv4.Base64String(base64.StdEncoding.EncodeToString([]byte(changes[path]))),
		})
	}
	var commit struct {
		CreateCommitOnBranch struct {
			Commit struct {
				Oid githubv4.GitObjectID
			}
		} `graphql:"createCommitOnBranch(input: $input)"`
	}
	commitInput := githubv4.CreateCommitOnBranchInput{
		Branch: githubv4.CommittableBranch{
			RepositoryNameWithOwner: githubv4.NewString(githubv4.String(c.Repo())),
			BranchName:              githubv4.NewString(githubv4.String(branch)),
		},
		Message:         githubv4.CommitMessage{Headline: githubv4.String(title)},
		ExpectedHeadOid: head.HeadOID,
		FileChanges:     &githubv4.FileChanges{Additions: &additions},
	}
	if err := c.gql.Mutate(ctx, &commit, commitInput, nil); err != nil {
		return "", fmt.Errorf("committing to %s: %w", branch, err)
	}

	pr, _, err := c.rest.PullRequests.Create(ctx, c.owner, c.name, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(branch),
		Base:  github.Ptr(head.DefaultBranch),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return "", classifyError(err)
	}
	return pr.GetHTMLURL(), nil
}

// PullRequest is a pull request and the code it touches.
type PullRequest struct {
	Number  int
	Title   string
	Body    string
	HeadRef string
	HeadSHA string
	// Context holds the head content of every added or modified file. Files
	// whose content cannot be read fall back to their patch.
	Context domain.CodeContext
}

// GetPullRequest loads a pull request and its changed files.
func (c *Client) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	pr, _, err := c.rest.PullRequests.Get(ctx, c.owner, c.name, number)
	if err != nil {
		return nil, fmt.Errorf("getting pull request #%d: %w", number, classifyError(err))
	}
	out := &PullRequest{
		Number:  number,
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		HeadRef: pr.GetHead().GetRef(),
		HeadSHA: pr.GetHead().GetSHA(),
	}
	out.Context, err = c.PullRequestContext(ctx, number, out.HeadSHA)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PullRequestContext returns the files changed by pull request number as
// they are at headSHA.
func (c *Client) PullRequestContext(ctx context.Context, number int, headSHA string) (domain.CodeContext, error) {
	files := make(map[string]string)
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := c.rest.PullRequests.ListFiles(ctx, c.owner, c.name, number, opts)
		if err != nil {
			return domain.CodeContext{}, fmt.Errorf("listing files of pull request #%d: %w", number, classifyError(err))
		}
		for _, f := range page {
			if f.GetStatus() == "removed" {
				continue
			}
			content, err := c.GetFileContent(ctx, f.GetFilename(), headSHA)
			if err != nil {
				if f.GetPatch() == "" {
					continue
				}
				content = f.GetPatch()
			}
			files[f.GetFilename()] = content
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return domain.CodeContext{Files: files}, nil
}

// Comment posts body as a comment on issue or pull request number.
func (c *Client) Comment(ctx context.Context, number int, body string) error {
	_, _, err := c.rest.Issues.CreateComment(ctx, c.owner, c.name, number, &github.IssueComment{Body: github.Ptr(body)})
	if err != nil {
		return fmt.Errorf("commenting on #%d: %w", number, classifyError(err))
	}
	return nil
}
