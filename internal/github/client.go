// Package github talks to the GitHub REST and GraphQL APIs on behalf of the
// agent: reading repository files, opening pull requests with generated
// changes, and answering @codi mentions in pull request comments.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

var (
	// ErrNoToken indicates no GitHub token was configured.
	ErrNoToken = errors.New("GITHUB_TOKEN is not set")
	// ErrInvalidRepo indicates a repository name not in owner/name form.
	ErrInvalidRepo = errors.New("repository must be in owner/name form")
	// ErrAuthFailed indicates GitHub rejected the token.
	ErrAuthFailed = errors.New("GitHub authentication failed")
)

// ParseRepo splits "owner/name".
func ParseRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(repo), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepo, repo)
	}
	return owner, name, nil
}

// Options configures a Client.
type Options struct {
	Token string
	// Repo is the repository in owner/name form.
	Repo string
	// BaseURL overrides the REST API endpoint (GitHub Enterprise, tests).
	BaseURL string
	// GraphQLURL overrides the GraphQL endpoint.
	GraphQLURL string
}

// Client is bound to a single repository.
type Client struct {
	owner string
	name  string
	rest  *github.Client
	gql   *githubv4.Client
}

// New creates a Client authenticated with a static token.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, ErrNoToken
	}
	owner, name, err := ParseRepo(opts.Repo)
	if err != nil {
		return nil, err
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))

	rest := github.NewClient(httpClient)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", opts.BaseURL, err)
		}
		rest.BaseURL = u
	}

	var gql *githubv4.Client
	if opts.GraphQLURL != "" {
		gql = githubv4.NewEnterpriseClient(opts.GraphQLURL, httpClient)
	} else {
		gql = githubv4.NewClient(httpClient)
	}

	return &Client{owner: owner, name: name, rest: rest, gql: gql}, nil
}

// Repo returns the bound repository as owner/name.
func (c *Client) Repo() string {
	return c.owner + "/" + c.name
}

// classifyError maps authentication failures to ErrAuthFailed.
func classifyError(err error) error {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrAuthFailed, respErr.Message)
	}
	return err
}
