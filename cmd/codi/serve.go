package main

import (
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/github"
	"github.com/tognete/codi/internal/mcpserver"
	"github.com/tognete/codi/internal/server"
	"github.com/tognete/codi/internal/slackbot"
	"github.com/tognete/codi/internal/terminal"
)

var serveAddr string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP task endpoint",
		Long: `Serve POST /task, GET /health, and GET /metrics. When GITHUB_TOKEN and
GITHUB_REPO are set, POST /github/webhook answers @codi mentions in pull
request comments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := newSession(cmd, false)
			if err != nil {
				return err
			}
			defer sess.Close()
			ctx := cmd.Context()
			log := clog.FromContext(ctx)

			opts := server.Options{Addr: sess.Addr}
			var hook *github.WebhookHandler
			if sess.Creds.GitHubToken != "" && sess.Creds.GitHubRepo != "" {
				gh, err := newGitHubClient(ctx, sess.Creds)
				if err != nil {
					return err
				}
				hook = github.NewWebhookHandler(gh, sess.Agent, sess.Creds.GitHubWebhookSecret)
				opts.Webhook = hook
				log.Info("GitHub webhook enabled", "repo", gh.Repo())
				if sess.Creds.GitHubWebhookSecret == "" {
					log.Warn("GITHUB_WEBHOOK_SECRET is not set, webhook signatures are not checked")
				}
			}

			srv := server.New(sess.Agent, opts)
			err = srv.Run(ctx)
			if hook != nil {
				hook.Wait()
			}
			return err
		},
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "",
		"Listen address (default: :8000, env: CODI_ADDR)")
	return cmd
}

func newSlackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slack",
		Short: "Run the Slack bot",
		Long:  "Answer app mentions in Slack over Socket Mode. Requires SLACK_BOT_TOKEN and SLACK_APP_TOKEN.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := newSession(cmd, false)
			if err != nil {
				return err
			}
			defer sess.Close()

			bot, err := slackbot.New(sess.Agent, slackbot.Options{
				BotToken: sess.Creds.SlackBotToken,
				AppToken: sess.Creds.SlackAppToken,
			})
			if err != nil {
				sess.Logger.Logf(terminal.StyleError, "%v", err)
				return exitCode(domain.ExitError)
			}
			return bot.Run(cmd.Context())
		},
	}
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve codi tools over MCP on stdio",
		Long:  "Run a Model Context Protocol server on stdin and stdout exposing analyze_code, review_code, generate_code, and chat.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := newSession(cmd, false)
			if err != nil {
				return err
			}
			defer sess.Close()
			return mcpserver.Serve(mcpserver.New(sess.Agent, version))
		},
	}
}
