package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/llm"
	"github.com/tognete/codi/internal/memory"
	"github.com/tognete/codi/internal/workspace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProvider returns scripted replies in order and records every request.
type fakeProvider struct {
	mu       sync.Mutex
	replies  []string
	err      error
	delay    time.Duration
	requests []llm.Request
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return &llm.Response{Text: "ok"}, nil
	}
	text := f.replies[0]
	f.replies = f.replies[1:]
	return &llm.Response{Text: text}, nil
}

func (f *fakeProvider) calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

type recordingProgress struct {
	mu      sync.Mutex
	steps   []string
	working []string
	results []string
	resets  int
}

func (r *recordingProgress) Step(action, tool, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, action)
}

func (r *recordingProgress) Working(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.working = append(r.working, msg)
}

func (r *recordingProgress) Result(ok bool, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, msg)
}

func (r *recordingProgress) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

func (r *recordingProgress) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...), append([]string(nil), r.working...)
}

func testWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "util.py"), []byte("x = 1\n"), 0o644))
	return &workspace.Workspace{Root: root, Name: "demo"}
}

func TestIdentifyTaskType(t *testing.T) {
	tests := []struct {
		message string
		want    domain.TaskType
		ok      bool
	}{
		{"Please review PR 42", domain.TaskReview, true},
		{"can you review pull request #7", domain.TaskReview, true},
		{"check PR please", domain.TaskReview, true},
		{"analyze the server package", domain.TaskAnalyze, true},
		{"Review this function", domain.TaskAnalyze, true},
		{"look at main.go", domain.TaskAnalyze, true},
		{"Write a CSV parser", domain.TaskGenerate, true},
		{"implement retries", domain.TaskGenerate, true},
		{"what time is it", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got, ok := IdentifyTaskType(tt.message)
			if ok != tt.ok || got != tt.want {
				t.Errorf("IdentifyTaskType(%q) = %q, %v; want %q, %v", tt.message, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestIsGreeting(t *testing.T) {
	for _, s := range []string{"hi", " Hello ", "TEST"} {
		if !IsGreeting(s) {
			t.Errorf("IsGreeting(%q) = false", s)
		}
	}
	if IsGreeting("hi there") {
		t.Error("IsGreeting(\"hi there\") = true")
	}
}

func TestExtractSuggestions(t *testing.T) {
	text := "Overview\n  You should add tests.  \nLooks fine.\nConsider caching.\nI RECOMMEND logging"
	want := []string{"You should add tests.", "Consider caching.", "I RECOMMEND logging"}
	if diff := cmp.Diff(want, ExtractSuggestions(text)); diff != "" {
		t.Errorf("ExtractSuggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestPrioritizeSuggestions(t *testing.T) {
	in := []string{"Consider renaming", "You should fix the security hole", "Could add docs", "Bug: should close file"}
	want := []string{
		"🚨 You should fix the security hole",
		"🚨 Bug: should close file",
		"💡 Consider renaming",
		"💡 Could add docs",
	}
	if diff := cmp.Diff(want, PrioritizeSuggestions(in)); diff != "" {
		t.Errorf("PrioritizeSuggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCodeChanges(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "fence info is a path",
			text: "Here:\n```cmd/main.go\npackage main\n\nfunc main() {}\n```\ndone",
			want: map[string]string{"cmd/main.go": "package main\n\nfunc main() {}"},
		},
		{
			name: "file marker then language fence",
			text: "File: app.py\n```python\nprint(1)\n```",
			want: map[string]string{"app.py": "print(1)"},
		},
		{
			name: "filename marker",
			text: "filename: a.txt\nhello\nfilename: b.txt\nworld",
			want: map[string]string{"a.txt": "hello", "b.txt": "world"},
		},
		{
			name: "language only fence is ignored",
			text: "```go\nfunc x() {}\n```",
			want: map[string]string{},
		},
		{
			name: "empty file dropped",
			text: "File: empty.go\n```",
			want: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseCodeChanges(tt.text)); diff != "" {
				t.Errorf("ParseCodeChanges mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProcessTask_GreetingSkipsProvider(t *testing.T) {
	p := &fakeProvider{}
	a := New(p, WithWorkspace(&workspace.Workspace{Root: "/tmp/demo", Name: "demo"}))

	resp, err := a.ProcessTask(context.Background(), &domain.Task{Type: domain.TaskAnalyze, Description: "Hello"})
	require.NoError(t, err)
	assert.Contains(t, resp.Solution, "working in the demo project")
	assert.Equal(t, "Greeting message", resp.Explanation)
	assert.Empty(t, p.calls())
}

func TestProcessTask_UnknownType(t *testing.T) {
	a := New(&fakeProvider{})
	_, err := a.ProcessTask(context.Background(), &domain.Task{Type: "refactor", Description: "tidy"})
	require.ErrorIs(t, err, domain.ErrUnknownTaskType)
}

func TestProcessTask_Analyze(t *testing.T) {
	p := &fakeProvider{replies: []string{"Structure is fine.\nYou should add error handling."}}
	a := New(p)

	resp, err := a.ProcessTask(context.Background(), &domain.Task{
		Type:        domain.TaskAnalyze,
		Description: "find bugs",
		Context:     domain.CodeContext{Files: map[string]string{"main.go": "package main"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Code analysis completed successfully", resp.Explanation)
	assert.Equal(t, []string{"You should add error handling."}, resp.Suggestions)

	calls := p.calls()
	require.Len(t, calls, 1)
	assert.InDelta(t, 0.2, calls[0].Temperature, 1e-9)
	assert.Equal(t, []string{analysisSystem}, calls[0].System)
	prompt := calls[0].Messages[0].Content
	assert.Contains(t, prompt, "File: main.go\n```\npackage main\n```")
	assert.True(t, strings.HasSuffix(prompt, "Task description: find bugs"))
}

func TestProcessTask_Generate(t *testing.T) {
	code := "```hello.go\npackage hello\n```"
	p := &fakeProvider{replies: []string{code, "It prints. Consider adding tests."}}
	a := New(p)

	resp, err := a.ProcessTask(context.Background(), &domain.Task{
		Type:         domain.TaskGenerate,
		Description:  "hello package",
		Context:      domain.CodeContext{Language: "go"},
		Requirements: []string{"no deps"},
	})
	require.NoError(t, err)
	assert.Equal(t, code, resp.Solution)
	assert.Equal(t, map[string]string{"hello.go": "package hello"}, resp.CodeChanges)
	assert.Equal(t, []string{"It prints. Consider adding tests."}, resp.Suggestions)

	calls := p.calls()
	require.Len(t, calls, 2)
	first := calls[0].Messages[0].Content
	assert.Contains(t, first, "Preferred language: go")
	assert.Contains(t, first, "Specific requirements:\n- no deps")
	followUp := calls[1].Messages
	require.Len(t, followUp, 3)
	assert.Equal(t, domain.RoleAssistant, followUp[1].Role)
	assert.Equal(t, code, followUp[1].Content)
	assert.Equal(t, explanationRequest, followUp[2].Content)
}

func TestProcessTask_Review(t *testing.T) {
	p := &fakeProvider{replies: []string{
		"Naming could be clearer.\nThere is a security issue you should fix.",
		"File: main.go\n```\npackage main\n```",
	}}
	a := New(p)

	resp, err := a.ProcessTask(context.Background(), &domain.Task{
		Type:        domain.TaskReview,
		Description: "review",
		Context:     domain.CodeContext{Files: map[string]string{"main.go": "package main"}},
	})
	require.NoError(t, err)
	want := []string{"🚨 There is a security issue you should fix.", "💡 Naming could be clearer."}
	assert.Equal(t, want, resp.Suggestions)
	assert.True(t, strings.HasPrefix(resp.Solution, "# Code Review Summary\n\n## General Review\n"))
	assert.True(t, strings.HasSuffix(resp.Solution, "## Prioritized Suggestions\n\n"+want[0]+"\n"+want[1]))
	assert.Equal(t, map[string]string{"main.go": "package main"}, resp.CodeChanges)
}

func TestProcessTask_ProviderErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	a := New(&fakeProvider{err: boom})
	_, err := a.ProcessTask(context.Background(), &domain.Task{Type: domain.TaskReview, Description: "x"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "error during code review")
}

func TestChat_BuildsPromptAndStoresReply(t *testing.T) {
	ws := testWorkspace(t)
	p := &fakeProvider{replies: []string{"Sure."}}
	mem := memory.New(nil)
	a := New(p, WithWorkspace(ws), WithMemory(mem))

	reply, err := a.Chat(context.Background(), "what do you think about naming?", domain.SourceSlack)
	require.NoError(t, err)
	assert.Equal(t, "Sure.", reply)

	calls := p.calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].System, 3)
	assert.Contains(t, calls[0].System[0], "You are Codi, an AI Senior Software Developer")
	assert.Contains(t, calls[0].System[0], "- Project: demo")
	assert.Contains(t, calls[0].System[1], "located at "+ws.Root)
	assert.Equal(t, contextPrompt(map[string]string{"project_name": "demo", "workspace_path": ws.Root}), calls[0].System[2])
	assert.InDelta(t, 0.7, calls[0].Temperature, 1e-9)

	msgs := mem.Recent(10)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "slack", msgs[0].Metadata[domain.MetadataSource])
	assert.Equal(t, "Sure.", msgs[1].Content)
}

func TestChat_LimitsHistory(t *testing.T) {
	p := &fakeProvider{}
	a := New(p)
	for range 8 {
		_, err := a.Chat(context.Background(), "hmm", domain.SourceCLI)
		require.NoError(t, err)
	}
	calls := p.calls()
	assert.Len(t, calls[len(calls)-1].Messages, RecentMessageLimit)
}

func TestChat_IncludesConversationContext(t *testing.T) {
	p := &fakeProvider{}
	mem := memory.New(nil)
	mem.Start("")
	mem.UpdateContext(map[string]string{"current_file": "main.go"})
	a := New(p, WithMemory(mem))

	_, err := a.Chat(context.Background(), "hmm", domain.SourceCLI)
	require.NoError(t, err)
	system := p.calls()[0].System
	assert.Equal(t, `Current conversation context: {"current_file":"main.go"}`, system[len(system)-1])
}

func TestChat_SeedsWorkspaceContextOnNewConversation(t *testing.T) {
	ws := testWorkspace(t)
	mem := memory.New(nil)
	a := New(&fakeProvider{}, WithWorkspace(ws), WithMemory(mem))

	_, err := a.Chat(context.Background(), "hmm", domain.SourceCLI)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"workspace_path": ws.Root, "project_name": "demo"}, mem.Context())
	assert.Equal(t, ws.Root, mem.Snapshot().WorkspacePath)

	mem.Clear()
	_, err = a.Chat(context.Background(), "again", domain.SourceCLI)
	require.NoError(t, err)
	assert.Equal(t, "demo", mem.Context()["project_name"])
}

func TestChat_ConcurrentTurnsShareOneConversation(t *testing.T) {
	p := &fakeProvider{delay: 50 * time.Millisecond}
	mem := memory.New(nil)
	progress := &recordingProgress{}
	a := New(p, WithMemory(mem), WithProgress(progress))

	var wg sync.WaitGroup
	for _, src := range []domain.Source{domain.SourceCLI, domain.SourceSlack} {
		wg.Go(func() {
			_, err := a.Chat(context.Background(), "hello from "+string(src), src)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Len(t, mem.Recent(10), 4)
	progress.mu.Lock()
	defer progress.mu.Unlock()
	assert.Equal(t, 1, progress.resets)
}

func TestChat_TaskAppendsSolution(t *testing.T) {
	ws := testWorkspace(t)
	p := &fakeProvider{replies: []string{"Let me look.", "Analysis body"}}
	a := New(p, WithWorkspace(ws))

	reply, err := a.Chat(context.Background(), "analyze this project", domain.SourceCLI)
	require.NoError(t, err)
	assert.Equal(t, "Let me look.\n\nAnalysis body", reply)

	calls := p.calls()
	require.Len(t, calls, 2)
	prompt := calls[1].Messages[0].Content
	assert.Contains(t, prompt, "File: main.go")
	assert.Contains(t, prompt, "File: "+filepath.Join("pkg", "util.py"))
	assert.Equal(t, "analyze", a.Memory().Context()["active_task"])
}

func TestChat_FileOperationAppendsStats(t *testing.T) {
	ws := testWorkspace(t)
	a := New(&fakeProvider{replies: []string{"Counting."}}, WithWorkspace(ws))

	reply, err := a.Chat(context.Background(), "how many files are there?", domain.SourceCLI)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "Counting.\n\nRepository Statistics:\n- Total files: 2\n"))
}

func TestChat_ProviderErrorBecomesApology(t *testing.T) {
	a := New(&fakeProvider{err: errors.New("rate limited")})

	reply, err := a.Chat(context.Background(), "hmm", domain.SourceCLI)
	require.NoError(t, err)
	want := "I encountered a technical issue: rate limited. I'll adjust my approach to resolve this."
	assert.Equal(t, want, reply)
	msgs := a.Memory().Recent(10)
	assert.Equal(t, want, msgs[len(msgs)-1].Content)
}

func TestChat_CancelledContextReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := New(&fakeProvider{delay: time.Second})

	_, err := a.Chat(ctx, "hmm", domain.SourceCLI)
	require.ErrorIs(t, err, context.Canceled)
}

func TestChat_PersistsConversation(t *testing.T) {
	store := memory.NewFileStore(t.TempDir())
	a := New(&fakeProvider{}, WithMemory(memory.New(store)))

	_, err := a.Chat(context.Background(), "hmm", domain.SourceCLI)
	require.NoError(t, err)
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestChat_ReportsHeartbeats(t *testing.T) {
	progress := &recordingProgress{}
	a := New(&fakeProvider{delay: 60 * time.Millisecond},
		WithProgress(progress),
		WithHeartbeatInterval(10*time.Millisecond))

	_, err := a.Chat(context.Background(), "hmm", domain.SourceCLI)
	require.NoError(t, err)

	steps, working := progress.snapshot()
	assert.Equal(t, "Starting new conversation", steps[0])
	assert.Contains(t, steps, "Thinking about response")
	assert.Equal(t, "Response ready", steps[len(steps)-1])
	require.NotEmpty(t, working)
	assert.True(t, strings.HasPrefix(working[0], "Thinking for "))
}

func TestChat_TimeoutBoundsProviderCall(t *testing.T) {
	a := New(&fakeProvider{delay: time.Second}, WithTimeout(10*time.Millisecond))

	reply, err := a.Chat(context.Background(), "hmm", domain.SourceCLI)
	require.NoError(t, err)
	assert.Contains(t, reply, "context deadline exceeded")
}

func TestWorkspaceContext_ResolvesRelativePaths(t *testing.T) {
	ws := testWorkspace(t)
	a := New(&fakeProvider{}, WithWorkspace(ws))

	got, err := a.WorkspaceContext("pkg")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pkg/util.py": "x = 1\n"}, got.Files)
	assert.Equal(t, ws.Root, got.ProjectRoot)

	all, err := a.WorkspaceContext("")
	require.NoError(t, err)
	assert.Len(t, all.Files, 2)

	_, err = a.WorkspaceContext("missing")
	require.Error(t, err)
}

func TestSourceFrom(t *testing.T) {
	assert.Equal(t, domain.SourceAPI, SourceFrom(context.Background()))
	assert.Equal(t, domain.SourceSlack, SourceFrom(WithSource(context.Background(), domain.SourceSlack)))
}
