package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"

	"github.com/tognete/codi/internal/agent"
	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/metrics"
)

// Mention is the handle that addresses the bot in pull request comments.
const Mention = "@codi"

var mentionPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(Mention) + `\b`)

// DefaultWebhookTimeout bounds the work done for a single mention.
const DefaultWebhookTimeout = 5 * time.Minute

// TaskRunner runs coding tasks. It is satisfied by *agent.Agent.
type TaskRunner interface {
	ProcessTask(ctx context.Context, task *domain.Task) (*domain.CodeResponse, error)
}

// WebhookHandler answers @codi mentions in pull request comments.
//
// Deliveries are acknowledged with 202 immediately; the task runs in the
// background and its result is posted as a comment.
type WebhookHandler struct {
	client  *Client
	runner  TaskRunner
	secret  []byte
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewWebhookHandler creates a handler. An empty secret disables signature
// validation.
func NewWebhookHandler(client *Client, runner TaskRunner, secret string) *WebhookHandler {
	return &WebhookHandler{
		client:  client,
		runner:  runner,
		secret:  []byte(secret),
		timeout: DefaultWebhookTimeout,
	}
}

// Wait blocks until all in-flight mentions are handled.
func (h *WebhookHandler) Wait() {
	h.wg.Wait()
}

// ServeHTTP implements http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		writeStatus(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "unparseable event")
		return
	}

	switch e := event.(type) {
	case *github.PingEvent:
		writeStatus(w, http.StatusOK, "pong")
	case *github.IssueCommentEvent:
		instruction, ok := h.mentionFor(e)
		if !ok {
			writeStatus(w, http.StatusAccepted, "ignored")
			return
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
			defer cancel()
			h.handleMention(ctx, e.GetIssue().GetNumber(), instruction)
		}()
		writeStatus(w, http.StatusAccepted, "accepted")
	default:
		writeStatus(w, http.StatusAccepted, "ignored")
	}
}

// mentionFor returns the instruction of a new pull request comment that
// mentions the bot.
func (h *WebhookHandler) mentionFor(e *github.IssueCommentEvent) (string, bool) {
	if e.GetAction() != "created" || !e.GetIssue().IsPullRequest() {
		return "", false
	}
	if e.GetComment().GetUser().GetType() == "Bot" {
		return "", false
	}
	if !strings.EqualFold(e.GetRepo().GetFullName(), h.client.Repo()) {
		return "", false
	}
	return ParseMention(e.GetComment().GetBody())
}

// ParseMention returns the text following the first @codi mention in body.
// A bare mention asks for a review.
func ParseMention(body string) (string, bool) {
	loc := mentionPattern.FindStringIndex(body)
	if loc == nil {
		return "", false
	}
	instruction := strings.TrimSpace(body[loc[1]:])
	if instruction == "" {
		instruction = "review this pull request"
	}
	return instruction, true
}

func (h *WebhookHandler) handleMention(ctx context.Context, number int, instruction string) {
	log := clog.FromContext(ctx).With("pr", number)
	log.Info("handling mention", "instruction", instruction)

	reply, err := h.respond(ctx, number, instruction)
	metrics.RecordWebhookMention(err)
	if err != nil {
		log.With("error", err).Warn("mention failed")
		reply = fmt.Sprintf("I encountered a technical issue while processing your request: %v. Let me know if you'd like me to try a different approach.", err)
	}
	if err := h.client.Comment(ctx, number, reply); err != nil {
		log.With("error", err).Error("posting reply")
	}
}

func (h *WebhookHandler) respond(ctx context.Context, number int, instruction string) (string, error) {
	pr, err := h.client.GetPullRequest(ctx, number)
	if err != nil {
		return "", err
	}

	task := &domain.Task{
		Type:        MentionTaskType(instruction),
		Description: fmt.Sprintf("%s\n\nPull request #%d: %s\n%s", instruction, pr.Number, pr.Title, pr.Body),
		Context:     pr.Context,
	}
	resp, err := h.runner.ProcessTask(agent.WithSource(ctx, domain.SourceGitHub), task)
	if err != nil {
		return "", err
	}
	return FormatComment(resp), nil
}

// MentionTaskType classifies a pull request mention. Every mention is about
// the pull request itself, so anything that is not a request to generate
// code, or to analyze without asking for a review, is a review.
func MentionTaskType(instruction string) domain.TaskType {
	taskType, ok := agent.IdentifyTaskType(instruction)
	switch {
	case !ok:
		return domain.TaskReview
	case taskType == domain.TaskAnalyze && strings.Contains(strings.ToLower(instruction), "review"):
		return domain.TaskReview
	}
	return taskType
}

// FormatComment renders a task response as a pull request comment.
func FormatComment(resp *domain.CodeResponse) string {
	var b strings.Builder
	b.WriteString(resp.Solution)
	if len(resp.Suggestions) > 0 && !strings.Contains(resp.Solution, "## Prioritized Suggestions") {
		b.WriteString("\n\n**Suggestions:**\n")
		for _, s := range resp.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
