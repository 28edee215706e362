package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/memory"
	"github.com/tognete/codi/internal/slackbot"
	"github.com/tognete/codi/internal/terminal"
)

const chatHelp = `Commands:
  /help          Show this help
  /clear         Start a new conversation
  /save          Save the conversation and print its id
  /load <id>     Resume a saved conversation
  /history       List saved conversations
  /exit, /quit   Leave the chat`

var chatTips = []string{
	"Chat with me as you would with a senior software developer",
	"Ask me to analyze, review, or generate code and I'll use the workspace files",
	"Type /help for commands, Ctrl+D to exit",
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with codi in the terminal",
		Long:  "Start an interactive chat. Replies are rendered as markdown and the input history is kept in ~/.codi/history.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := newSession(cmd, true)
			if err != nil {
				return err
			}
			defer sess.Close()
			return runREPL(cmd.Context(), sess)
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the terminal chat and the Slack bot together",
		Long:  "Run the terminal chat and, when SLACK_BOT_TOKEN and SLACK_APP_TOKEN are set, the Slack bot. Both share one conversation.",
		Args:  cobra.NoArgs,
		RunE:  runInteractive,
	}
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	sess, err := newSession(cmd, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	g, ctx := errgroup.WithContext(cmd.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if sess.Creds.SlackBotToken != "" && sess.Creds.SlackAppToken != "" {
		bot, err := slackbot.New(sess.Agent, slackbot.Options{
			BotToken: sess.Creds.SlackBotToken,
			AppToken: sess.Creds.SlackAppToken,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return bot.Run(ctx) })
	} else {
		sess.Logger.Log("Slack tokens not set, starting the chat only", terminal.StyleDim)
	}

	g.Go(func() error {
		// Leaving the chat stops the bot too.
		defer cancel()
		return runREPL(ctx, sess)
	})
	return g.Wait()
}

// lineReader is the subset of *readline.Instance the chat loop uses.
type lineReader interface {
	Readline() (string, error)
	Close() error
}

// chatter is the agent surface used by the chat loop.
type chatter interface {
	Chat(ctx context.Context, message string, source domain.Source) (string, error)
	Memory() *memory.Memory
}

// repl is the terminal chat loop.
type repl struct {
	agent  chatter
	in     lineReader
	out    io.Writer
	logger *terminal.Logger
	md     *terminal.Markdown
}

func runREPL(ctx context.Context, sess *session) error {
	home, _ := os.UserHomeDir()
	historyFile := ""
	if home != "" {
		dir := filepath.Join(home, ".codi")
		if err := os.MkdirAll(dir, 0755); err == nil {
			historyFile = filepath.Join(dir, "history")
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          terminal.Color(terminal.Green) + "You> " + terminal.Color(terminal.Reset),
		HistoryFile:     historyFile,
		HistoryLimit:    1000,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}

	r := &repl{
		agent:  sess.Agent,
		in:     rl,
		out:    os.Stdout,
		logger: sess.Logger,
		md:     terminal.NewMarkdown(terminal.ReportWidth(), !terminal.IsStdoutTTY()),
	}
	r.logger.Logf(terminal.StyleInfo, "Codi ready in %s%s%s",
		terminal.Color(terminal.Bold), sess.Workspace.Root, terminal.Color(terminal.Reset))
	for _, tip := range chatTips {
		r.logger.Log(tip, terminal.StyleDim)
	}
	return r.run(ctx)
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("/help"),
		readline.PcItem("/clear"),
		readline.PcItem("/save"),
		readline.PcItem("/load"),
		readline.PcItem("/history"),
		readline.PcItem("/exit"),
		readline.PcItem("/quit"),
	)
}

// run reads lines until EOF, /exit, or ctx is cancelled.
func (r *repl) run(ctx context.Context) error {
	var once sync.Once
	closeInput := func() { once.Do(func() { _ = r.in.Close() }) }
	stop := context.AfterFunc(ctx, closeInput)
	defer stop()
	defer closeInput()

	for {
		line, err := r.in.Readline()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				fmt.Fprintln(r.out, "Use /exit to leave or Ctrl+D")
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if quit := r.command(ctx, input); quit {
				fmt.Fprintln(r.out, "Goodbye!")
				return nil
			}
			continue
		}

		reply, err := r.agent.Chat(ctx, input, domain.SourceCLI)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Logf(terminal.StyleError, "%v", err)
			continue
		}
		fmt.Fprintf(r.out, "\n%s\n\n", r.md.Render(reply))
	}
}

// command handles a slash command and reports whether the chat should end.
func (r *repl) command(ctx context.Context, input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	mem := r.agent.Memory()

	switch name {
	case "/exit", "/quit":
		return true
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/clear":
		mem.Clear()
		r.logger.Log("Started a new conversation", terminal.StyleSuccess)
	case "/save":
		if err := mem.Save(ctx); err != nil {
			r.logger.Logf(terminal.StyleError, "Saving conversation: %v", err)
			return false
		}
		if c := mem.Snapshot(); c != nil {
			r.logger.Logf(terminal.StyleSuccess, "Saved conversation %s", c.ID)
		} else {
			r.logger.Log("Nothing to save yet", terminal.StyleDim)
		}
	case "/load":
		if arg == "" {
			r.logger.Log("Usage: /load <conversation id>", terminal.StyleWarning)
			return false
		}
		if err := mem.Load(ctx, arg); err != nil {
			if errors.Is(err, memory.ErrNotFound) {
				r.logger.Logf(terminal.StyleError, "No saved conversation %q", arg)
			} else {
				r.logger.Logf(terminal.StyleError, "Loading conversation: %v", err)
			}
			return false
		}
		r.logger.Logf(terminal.StyleSuccess, "Resumed conversation %s", arg)
	case "/history":
		ids, err := mem.List(ctx)
		if err != nil {
			r.logger.Logf(terminal.StyleError, "%v", err)
			return false
		}
		if len(ids) == 0 {
			r.logger.Log("No saved conversations", terminal.StyleDim)
			return false
		}
		current := ""
		if c := mem.Snapshot(); c != nil {
			current = c.ID
		}
		for _, id := range ids {
			if id == current {
				fmt.Fprintf(r.out, "  %s (current)\n", id)
			} else {
				fmt.Fprintf(r.out, "  %s\n", id)
			}
		}
	default:
		clog.FromContext(ctx).Debug("unknown chat command", "command", name)
		r.logger.Logf(terminal.StyleWarning, "Unknown command %s. Type /help for commands.", name)
	}
	return false
}
