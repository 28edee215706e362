// Package slackbot answers app mentions in Slack through Socket Mode.
package slackbot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/metrics"
)

// ErrMissingToken is returned when the bot or app token is not configured.
var ErrMissingToken = errors.New("SLACK_BOT_TOKEN and SLACK_APP_TOKEN are required")

// DefaultMaxConcurrent bounds how many mentions are answered at once.
const DefaultMaxConcurrent = 4

const usageHint = "Mention me with an instruction, for example: `@codi review internal/server`."

// Chatter answers a chat message. It is satisfied by *agent.Agent.
type Chatter interface {
	Chat(ctx context.Context, message string, source domain.Source) (string, error)
}

// Options configures a Bot.
type Options struct {
	BotToken string
	AppToken string
	// MaxConcurrent bounds in-flight mentions. Zero uses DefaultMaxConcurrent.
	MaxConcurrent int
	// APIURL overrides the Slack Web API endpoint. Used by tests.
	APIURL string
}

// Bot relays app mentions to a Chatter and posts the replies.
type Bot struct {
	api     *slack.Client
	socket  *socketmode.Client
	chatter Chatter
	sem     chan struct{}
	wg      sync.WaitGroup
}

// New creates a Bot. It does not connect until Run.
func New(chatter Chatter, opts Options) (*Bot, error) {
	if opts.BotToken == "" || opts.AppToken == "" {
		return nil, ErrMissingToken
	}
	apiOpts := []slack.Option{slack.OptionAppLevelToken(opts.AppToken)}
	if opts.APIURL != "" {
		apiOpts = append(apiOpts, slack.OptionAPIURL(opts.APIURL))
	}
	api := slack.New(opts.BotToken, apiOpts...)

	n := opts.MaxConcurrent
	if n <= 0 {
		n = DefaultMaxConcurrent
	}
	return &Bot{
		api:     api,
		socket:  socketmode.New(api),
		chatter: chatter,
		sem:     make(chan struct{}, n),
	}, nil
}

// Run listens for events until ctx is cancelled, then waits for in-flight
// mentions to finish.
func (b *Bot) Run(ctx context.Context) error {
	log := clog.FromContext(ctx)
	errc := make(chan error, 1)
	go func() { errc <- b.socket.RunContext(ctx) }()
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("slack socket mode: %w", err)
		case evt := <-b.socket.Events:
			switch evt.Type {
			case socketmode.EventTypeConnecting:
				log.Info("connecting to Slack")
			case socketmode.EventTypeConnected:
				log.Info("Slack interface ready")
			case socketmode.EventTypeConnectionError:
				log.Warn("Slack connection error", "data", evt.Data)
			case socketmode.EventTypeEventsAPI:
				if evt.Request != nil {
					b.socket.Ack(*evt.Request)
				}
				b.dispatch(ctx, evt)
			}
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, evt socketmode.Event) {
	apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok || apiEvent.Type != slackevents.CallbackEvent {
		return
	}
	mention, ok := apiEvent.InnerEvent.Data.(*slackevents.AppMentionEvent)
	if !ok {
		return
	}
	b.Go(ctx, Mention{
		Channel:  mention.Channel,
		ThreadTS: mention.ThreadTimeStamp,
		User:     mention.User,
		Text:     mention.Text,
	})
}

// Mention is an app mention to answer.
type Mention struct {
	Channel  string
	ThreadTS string
	User     string
	Text     string
}

// Go answers m in the background once a concurrency slot is free. It never
// blocks the caller, so the event loop keeps acknowledging envelopes while
// every slot is busy. m is dropped if ctx is cancelled before a slot frees.
func (b *Bot) Go(ctx context.Context, m Mention) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if ctx.Err() != nil {
			return
		}
		select {
		case b.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-b.sem }()
		b.Handle(ctx, m)
	}()
}

// Wait blocks until all mentions started with Go are answered.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// Handle answers a single mention synchronously.
func (b *Bot) Handle(ctx context.Context, m Mention) {
	log := clog.FromContext(ctx).With("channel", m.Channel, "user", m.User)
	instruction := StripMention(m.Text)
	log.Info("[Message through Slack]", "text", instruction)

	text := usageHint
	var err error
	if instruction != "" {
		text, err = b.chatter.Chat(ctx, instruction, domain.SourceSlack)
		if err != nil {
			log.With("error", err).Error("chat failed")
			text = fmt.Sprintf("I encountered a technical issue while processing your request: %v. Let me know if you'd like me to try a different approach.", err)
		}
	}
	metrics.RecordSlackEvent(err)

	opts := []slack.MsgOption{slack.MsgOptionText(truncate(text, maxSectionRunes), false), slack.MsgOptionBlocks(FormatBlocks(text, nil, nil)...)}
	if m.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(m.ThreadTS))
	}
	if _, _, err := b.api.PostMessageContext(ctx, m.Channel, opts...); err != nil {
		log.With("error", err).Error("posting reply")
	}
}
