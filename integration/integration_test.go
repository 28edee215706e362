// Package integration provides end-to-end tests for the codi binary against a
// mock model server.
//
// The tests build the binary, point it at an OpenAI-compatible httptest
// server through OPENAI_BASE_URL, and assert on output, written files, and
// exit codes.
package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// testEnv holds paths and state for integration test execution.
type testEnv struct {
	codiBin string     // Path to built codi binary
	repoDir string     // Temporary git repo for test execution
	home    string     // HOME for the child process
	model   *mockModel // Canned model answers
	server  *httptest.Server
}

// mockModel answers chat completion requests with a fixed reply and keeps
// the prompts it received.
type mockModel struct {
	mu      sync.Mutex
	reply   string
	status  int
	prompts []string
}

func (m *mockModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &req)

	m.mu.Lock()
	for _, msg := range req.Messages {
		m.prompts = append(m.prompts, msg.Content)
	}
	reply, status := m.reply, m.status
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"message":"mock failure","type":"invalid_request_error"}}`)
		return
	}
	resp := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"model":   "gpt-4o",
		"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}, "finish_reason": "stop"}},
		"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (m *mockModel) respond(reply string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply, m.status = reply, status
}

func (m *mockModel) allPrompts() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.prompts, "\n")
}

// setupTestEnv builds the codi binary and creates a temporary git repo with a diff.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rootDir := findRepoRoot(t)
	codiBin := filepath.Join(t.TempDir(), "codi")
	build := exec.Command("go", "build", "-o", codiBin, "./cmd/codi")
	build.Dir = rootDir
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("failed to build codi: %v\n%s", err, out)
	}

	model := &mockModel{reply: "Looks fine."}
	srv := httptest.NewServer(model)
	t.Cleanup(srv.Close)

	return &testEnv{
		codiBin: codiBin,
		repoDir: createTestRepo(t),
		home:    t.TempDir(),
		model:   model,
		server:  srv,
	}
}

// environ returns the child environment: the parent's minus any codi, model,
// Slack, and GitHub settings, plus the mock model endpoint.
func (e *testEnv) environ(extra ...string) []string {
	var env []string
	for _, v := range os.Environ() {
		name, _, _ := strings.Cut(v, "=")
		switch {
		case strings.HasPrefix(name, "CODI_"),
			strings.HasSuffix(name, "_API_KEY"),
			strings.HasPrefix(name, "SLACK_"),
			strings.HasPrefix(name, "GITHUB_"),
			name == "OPENAI_BASE_URL", name == "HOME":
			continue
		}
		env = append(env, v)
	}
	env = append(env,
		"HOME="+e.home,
		"OPENAI_API_KEY=sk-test",
		"OPENAI_BASE_URL="+e.server.URL+"/v1",
	)
	return append(env, extra...)
}

// run executes codi with the given args and returns stdout, stderr, and exit code.
func (e *testEnv) run(args ...string) (stdout, stderr string, exitCode int) {
	return e.runWithEnv(nil, args...)
}

func (e *testEnv) runWithEnv(extra []string, args ...string) (stdout, stderr string, exitCode int) {
	cmd := exec.Command(e.codiBin, args...)
	cmd.Dir = e.repoDir
	cmd.Env = e.environ(extra...)

	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	exitCode = 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return outBuf.String(), errBuf.String(), exitCode
}

// findRepoRoot walks up to find the go.mod file.
func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root (no go.mod)")
		}
		dir = parent
	}
}

// createTestRepo creates a temporary git repo with a diff against HEAD~1.
func createTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	git("init")
	git("config", "user.email", "test@test.com")
	git("config", "user.name", "Test")

	write("main.go", "package main\n\nfunc main() {}\n")
	git("add", ".")
	git("commit", "-m", "initial")

	write("main.go", "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hello\")\n}\n")
	git("add", ".")
	git("commit", "-m", "add print")

	return dir
}

// --- Tests ---

func TestVersion(t *testing.T) {
	env := setupTestEnv(t)
	stdout, _, exitCode := env.run("--version")
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}
	if !strings.Contains(stdout, "codi ") {
		t.Errorf("expected 'codi ' in output, got: %s", stdout)
	}
}

func TestHelp(t *testing.T) {
	env := setupTestEnv(t)
	stdout, _, exitCode := env.run("--help")
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}
	for _, want := range []string{"analyze", "review", "generate", "serve", "slack", "mcp", "--provider", "--workspace"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestConfigSubcommands(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("config show", func(t *testing.T) {
		stdout, _, exitCode := env.run("config", "show")
		if exitCode != 0 {
			t.Errorf("exit code = %d, want 0", exitCode)
		}
		if !strings.Contains(stdout, "provider:") {
			t.Errorf("config show missing 'provider:', got: %s", stdout)
		}
	})

	t.Run("config validate", func(t *testing.T) {
		_, stderr, exitCode := env.run("config", "validate")
		if exitCode != 0 {
			t.Errorf("exit code = %d, want 0\nstderr: %s", exitCode, stderr)
		}
	})

	t.Run("config init", func(t *testing.T) {
		_, _, exitCode := env.run("config", "init")
		if exitCode != 0 {
			t.Errorf("exit code = %d, want 0", exitCode)
		}
		configPath := filepath.Join(env.repoDir, ".codi.yaml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			t.Error("config init did not create .codi.yaml")
		}
	})
}

func TestAnalyze(t *testing.T) {
	env := setupTestEnv(t)
	env.model.respond("The program prints a greeting.\n\nConsider adding tests for main.", 0)

	stdout, stderr, exitCode := env.run("analyze", "main.go", "--json")
	if exitCode != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", exitCode, stderr)
	}

	var resp struct {
		Solution string `json:"solution"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if !strings.Contains(resp.Solution, "prints a greeting") {
		t.Errorf("solution = %q", resp.Solution)
	}
	if !strings.Contains(env.model.allPrompts(), `fmt.Println("hello")`) {
		t.Error("the file contents were not sent to the model")
	}
}

func TestReviewDiff(t *testing.T) {
	env := setupTestEnv(t)
	env.model.respond("## Prioritized Suggestions\n1. Check the Println error.", 0)

	stdout, stderr, exitCode := env.run("review", "--diff", "HEAD~1", "--fetch=false")
	if exitCode != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", exitCode, stderr)
	}
	if !strings.Contains(stdout, "Println") {
		t.Errorf("output should contain the review, got:\n%s", stdout)
	}
	prompts := env.model.allPrompts()
	if !strings.Contains(prompts, "changes.diff") || !strings.Contains(prompts, "+import \"fmt\"") {
		t.Errorf("the diff was not sent to the model:\n%s", prompts)
	}
}

func TestReview_RequiresTarget(t *testing.T) {
	env := setupTestEnv(t)
	_, _, exitCode := env.run("review")
	if exitCode == 0 {
		t.Error("review without a path or --diff should fail")
	}
}

func TestGenerate_WritesFiles(t *testing.T) {
	env := setupTestEnv(t)
	env.model.respond("Here is the helper.\n\n```util/strings.go\npackage util\n\nfunc Reverse(s string) string { return s }\n```\n", 0)

	outDir := filepath.Join(env.repoDir, "out")
	_, stderr, exitCode := env.run("generate", "a", "string", "helper", "--lang", "go", "-o", outDir)
	if exitCode != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", exitCode, stderr)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "util", "strings.go"))
	if err != nil {
		t.Fatalf("generated file not written: %v", err)
	}
	if !strings.Contains(string(data), "func Reverse") {
		t.Errorf("generated file = %q", data)
	}
}

func TestModelFailure_ExitsTaskFailed(t *testing.T) {
	env := setupTestEnv(t)
	env.model.respond("", http.StatusBadRequest)

	_, stderr, exitCode := env.run("analyze", "main.go", "--retries", "0")
	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1\nstderr: %s", exitCode, stderr)
	}
}

func TestMissingAPIKey_ExitsError(t *testing.T) {
	env := setupTestEnv(t)

	_, stderr, exitCode := env.runWithEnv([]string{"CODI_PROVIDER=anthropic"}, "analyze", "main.go")
	if exitCode != 2 {
		t.Errorf("exit code = %d, want 2", exitCode)
	}
	if !strings.Contains(stderr, "ANTHROPIC_API_KEY") {
		t.Errorf("stderr should name the missing variable, got: %s", stderr)
	}
}

func TestStats(t *testing.T) {
	env := setupTestEnv(t)
	stdout, _, exitCode := env.run("stats")
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}
	for _, want := range []string{"Total files: 1", ".go"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stats output missing %q, got:\n%s", want, stdout)
		}
	}
}

func TestInvalidConfig_ExitsError(t *testing.T) {
	env := setupTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.repoDir, ".codi.yaml"), []byte("provider: bogus\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, exitCode := env.run("config", "validate")
	if exitCode == 0 {
		t.Error("config validate should fail for an unknown provider")
	}
}
