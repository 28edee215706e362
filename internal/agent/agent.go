package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/llm"
	"github.com/tognete/codi/internal/memory"
	"github.com/tognete/codi/internal/metrics"
	"github.com/tognete/codi/internal/workspace"
)

// RecentMessageLimit is how many prior messages are sent with each chat turn.
const RecentMessageLimit = 10

const (
	chatTemperature = 0.7
	taskTemperature = 0.2
)

// Agent answers chat messages and runs coding tasks. It is safe for
// concurrent use; the only shared state is its memory.
type Agent struct {
	provider    llm.Provider
	memory      *memory.Memory
	workspace   *workspace.Workspace
	progress    Progress
	personality Personality
	collect     workspace.CollectOptions
	temperature float64
	timeout     time.Duration
	heartbeat   time.Duration

	// turns counts chat turns in flight; progress is reset only by the first.
	turns atomic.Int32
}

// Option configures an Agent.
type Option func(*Agent)

// WithMemory sets the conversation memory. Without it history is kept in
// process only.
func WithMemory(m *memory.Memory) Option {
	return func(a *Agent) { a.memory = m }
}

// WithWorkspace binds the agent to a project directory.
func WithWorkspace(ws *workspace.Workspace) Option {
	return func(a *Agent) { a.workspace = ws }
}

// WithProgress sets the workflow progress reporter.
func WithProgress(p Progress) Option {
	return func(a *Agent) {
		if p != nil {
			a.progress = p
		}
	}
}

// WithPersonality overrides the Codi persona.
func WithPersonality(p Personality) Option {
	return func(a *Agent) { a.personality = p }
}

// WithCollectOptions bounds how much workspace source is sent as task context.
func WithCollectOptions(opts workspace.CollectOptions) Option {
	return func(a *Agent) { a.collect = opts }
}

// WithTemperature sets the chat sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = t }
}

// WithTimeout bounds each provider call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) { a.timeout = d }
}

// WithHeartbeatInterval changes how often progress heartbeats are reported.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.heartbeat = d
		}
	}
}

// New creates an Agent that completes prompts with provider.
func New(provider llm.Provider, opts ...Option) *Agent {
	a := &Agent{
		provider:    provider,
		progress:    nopProgress{},
		personality: DefaultPersonality(),
		collect:     workspace.DefaultCollectOptions(),
		temperature: chatTemperature,
		heartbeat:   HeartbeatInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.memory == nil {
		a.memory = memory.New(nil)
	}
	return a
}

// Memory returns the agent's conversation memory.
func (a *Agent) Memory() *memory.Memory { return a.memory }

// Workspace returns the bound workspace, which may be nil.
func (a *Agent) Workspace() *workspace.Workspace { return a.workspace }

// Provider returns the completion provider.
func (a *Agent) Provider() llm.Provider { return a.provider }

// Chat answers a free-form message from source. Provider failures are
// reported in the reply text; the error is non-nil only when ctx is done.
func (a *Agent) Chat(ctx context.Context, message string, source domain.Source) (string, error) {
	if a.turns.Add(1) == 1 {
		a.progress.Reset()
	}
	defer a.turns.Add(-1)
	a.progress.Step("Starting new conversation", "", fmt.Sprintf("Message: %s...", truncate(message, 100)))

	if a.memory.EnsureStarted(a.workspaceRoot(), a.conversationSeed()) {
		a.progress.Step("Initializing conversation context", "", "")
	}
	a.memory.Add(domain.NewMessage(domain.RoleUser, message).WithSource(source))

	reply, err := a.chat(WithSource(ctx, source), message, source)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		reply = fmt.Sprintf("I encountered a technical issue: %v. I'll adjust my approach to resolve this.", err)
		a.memory.Add(domain.NewMessage(domain.RoleAssistant, reply).WithSource(source))
		a.progress.Result(false, err.Error())
	}
	a.persist(ctx)
	return reply, nil
}

func (a *Agent) chat(ctx context.Context, message string, source domain.Source) (string, error) {
	a.progress.Step("Preparing conversation context", "", "")
	convContext := a.memory.Context()
	recent := a.memory.Recent(RecentMessageLimit)

	a.progress.Step("Building conversation history", "", "")
	req := llm.Request{
		System:      []string{personalityPrompt(a.personality, a.workspace)},
		Messages:    recent,
		Temperature: a.temperature,
	}
	if a.workspace != nil {
		req.System = append(req.System, workspacePrompt(a.workspace))
	}
	if len(convContext) > 0 {
		req.System = append(req.System, contextPrompt(convContext))
	}

	a.progress.Step("Thinking about response", a.provider.Name(), "Analyzing request and planning actions")
	resp, err := a.complete(ctx, "Thinking", req)
	if err != nil {
		return "", err
	}
	assistant := resp.Text
	a.memory.Add(domain.NewMessage(domain.RoleAssistant, assistant).WithSource(source))

	if taskType, ok := IdentifyTaskType(message); ok {
		a.progress.Step(fmt.Sprintf("Identified task type: %s", taskType), "", "")
		task := &domain.Task{
			Type:        taskType,
			Description: message,
			Context:     a.workspaceContext(ctx),
		}
		taskResp, err := a.ProcessTask(ctx, task)
		if err != nil {
			return "", err
		}
		a.memory.UpdateContext(map[string]string{"active_task": string(taskType)})
		a.progress.Step("Task completed", "", "Combined conversation and task responses")
		return assistant + "\n\n" + taskResp.Solution, nil
	}

	if IsFileOperation(message) {
		a.progress.Step("File operation requested", "File System", "Scanning repository...")
		report, err := a.repositoryReport()
		if err != nil {
			a.progress.Result(false, fmt.Sprintf("File operation failed: %v", err))
			return fmt.Sprintf("%s\n\nI encountered an error while checking the files: %v", assistant, err), nil
		}
		a.progress.Result(true, "File operation completed")
		return assistant + "\n\n" + report, nil
	}

	a.progress.Step("Response ready", "", "Conversation complete")
	return assistant, nil
}

// ProcessTask runs a structured coding task.
func (a *Agent) ProcessTask(ctx context.Context, task *domain.Task) (*domain.CodeResponse, error) {
	if IsGreeting(task.Description) {
		return &domain.CodeResponse{
			Solution:    greetingReply(a.workspace),
			Explanation: "Greeting message",
		}, nil
	}

	var (
		resp *domain.CodeResponse
		err  error
	)
	switch task.Type {
	case domain.TaskAnalyze:
		resp, err = a.analyze(ctx, task)
	case domain.TaskGenerate:
		resp, err = a.generate(ctx, task)
	case domain.TaskReview:
		resp, err = a.review(ctx, task)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnknownTaskType, task.Type)
	}
	metrics.RecordTask(string(task.Type), string(SourceFrom(ctx)), err)
	return resp, err
}

func (a *Agent) analyze(ctx context.Context, task *domain.Task) (*domain.CodeResponse, error) {
	a.progress.Step("Analyzing code", a.provider.Name(), fmt.Sprintf("%d files", len(task.Context.Files)))
	resp, err := a.complete(ctx, "Working", llm.Request{
		System:      []string{analysisSystem},
		Messages:    []domain.Message{domain.NewMessage(domain.RoleUser, analysisPrompt(task))},
		Temperature: taskTemperature,
	})
	if err != nil {
		a.progress.Result(false, err.Error())
		return nil, fmt.Errorf("error during code analysis: %w", err)
	}
	a.progress.Result(true, "Analysis complete")
	return &domain.CodeResponse{
		Solution:    resp.Text,
		Explanation: "Code analysis completed successfully",
		Suggestions: ExtractSuggestions(resp.Text),
	}, nil
}

func (a *Agent) generate(ctx context.Context, task *domain.Task) (*domain.CodeResponse, error) {
	prompt := domain.NewMessage(domain.RoleUser, generationPrompt(task))

	a.progress.Step("Generating code", a.provider.Name(), truncate(task.Description, 100))
	code, err := a.complete(ctx, "Working", llm.Request{
		System:      []string{generationSystem},
		Messages:    []domain.Message{prompt},
		Temperature: taskTemperature,
	})
	if err != nil {
		a.progress.Result(false, err.Error())
		return nil, fmt.Errorf("error during code generation: %w", err)
	}

	a.progress.Step("Explaining generated code", a.provider.Name(), "")
	explanation, err := a.complete(ctx, "Working", llm.Request{
		System: []string{explanationSystem},
		Messages: []domain.Message{
			prompt,
			domain.NewMessage(domain.RoleAssistant, code.Text),
			domain.NewMessage(domain.RoleUser, explanationRequest),
		},
		Temperature: taskTemperature,
	})
	if err != nil {
		a.progress.Result(false, err.Error())
		return nil, fmt.Errorf("error during code generation: %w", err)
	}
	a.progress.Result(true, "Code generated")

	return &domain.CodeResponse{
		Solution:    code.Text,
		Explanation: explanation.Text,
		Suggestions: ExtractSuggestions(explanation.Text),
		CodeChanges: ParseCodeChanges(code.Text),
	}, nil
}

func (a *Agent) review(ctx context.Context, task *domain.Task) (*domain.CodeResponse, error) {
	prompt := domain.NewMessage(domain.RoleUser, reviewPrompt(task))

	a.progress.Step("Reviewing code", a.provider.Name(), fmt.Sprintf("%d files", len(task.Context.Files)))
	review, err := a.complete(ctx, "Working", llm.Request{
		System:      []string{reviewSystem},
		Messages:    []domain.Message{prompt},
		Temperature: taskTemperature,
	})
	if err != nil {
		a.progress.Result(false, err.Error())
		return nil, fmt.Errorf("error during code review: %w", err)
	}

	a.progress.Step("Suggesting improvements", a.provider.Name(), "")
	improvements, err := a.complete(ctx, "Working", llm.Request{
		System: []string{improvementsSystem},
		Messages: []domain.Message{
			prompt,
			domain.NewMessage(domain.RoleAssistant, review.Text),
			domain.NewMessage(domain.RoleUser, improvementsRequest),
		},
		Temperature: taskTemperature,
	})
	if err != nil {
		a.progress.Result(false, err.Error())
		return nil, fmt.Errorf("error during code review: %w", err)
	}
	a.progress.Result(true, "Review complete")

	suggestions := PrioritizeSuggestions(ExtractSuggestions(review.Text + "\n" + improvements.Text))
	return &domain.CodeResponse{
		Solution:    reviewSummary(review.Text, improvements.Text, suggestions),
		Explanation: "Code review completed with detailed analysis and suggestions",
		Suggestions: suggestions,
		CodeChanges: ParseCodeChanges(improvements.Text),
	}, nil
}

// complete sends req to the provider, reporting heartbeats labelled label
// until it returns.
func (a *Agent) complete(ctx context.Context, label string, req llm.Request) (*llm.Response, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	stop := heartbeat(a.progress, a.heartbeat, label)
	defer stop()
	return a.provider.Complete(ctx, req)
}

// WorkspaceContext collects the workspace source files for a task.
// path defaults to the workspace root; relative paths are resolved against it.
func (a *Agent) WorkspaceContext(path string) (domain.CodeContext, error) {
	if a.workspace == nil {
		return domain.CodeContext{Files: map[string]string{}}, nil
	}
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(a.workspace.Root, path)
	}
	files, err := workspace.CollectFiles(a.workspace.Root, path, a.collect)
	if err != nil {
		return domain.CodeContext{}, err
	}
	return domain.CodeContext{Files: files, ProjectRoot: a.workspace.Root}, nil
}

// workspaceContext is WorkspaceContext for the whole workspace; unreadable
// trees yield an empty context.
func (a *Agent) workspaceContext(ctx context.Context) domain.CodeContext {
	c, err := a.WorkspaceContext("")
	if err != nil {
		clog.FromContext(ctx).With("error", err).Warn("collecting workspace files")
		return domain.CodeContext{Files: map[string]string{}, ProjectRoot: a.workspaceRoot()}
	}
	return c
}

func (a *Agent) repositoryReport() (string, error) {
	if a.workspace == nil {
		return "I don't have a workspace path configured. Please make sure you're in a valid project directory.", nil
	}
	stats, err := workspace.ComputeStats(a.workspace.Root)
	if err != nil {
		return "", err
	}
	a.progress.Result(true, fmt.Sprintf("Found %d files in %d directories", stats.Files, stats.Directories))
	return stats.Report(), nil
}

func (a *Agent) persist(ctx context.Context) {
	if err := a.memory.Save(ctx); err != nil && !errors.Is(err, context.Canceled) {
		clog.FromContext(ctx).With("error", err).Warn("saving conversation")
	}
}

// conversationSeed is the initial context of a new conversation.
func (a *Agent) conversationSeed() map[string]string {
	if a.workspace == nil {
		return nil
	}
	return map[string]string{
		"workspace_path": a.workspace.Root,
		"project_name":   a.workspace.Name,
	}
}

func (a *Agent) workspaceRoot() string {
	if a.workspace == nil {
		return ""
	}
	return a.workspace.Root
}

type sourceKey struct{}

// WithSource tags ctx with the front end a task came from, for metrics.
func WithSource(ctx context.Context, src domain.Source) context.Context {
	return context.WithValue(ctx, sourceKey{}, src)
}

// SourceFrom returns the front end ctx was tagged with, defaulting to SourceAPI.
func SourceFrom(ctx context.Context) domain.Source {
	if s, ok := ctx.Value(sourceKey{}).(domain.Source); ok {
		return s
	}
	return domain.SourceAPI
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
