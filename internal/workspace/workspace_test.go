package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	mkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func initRepo(t *testing.T, dir string) {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	writeFile(t, filepath.Join(dir, "README.md"), "hello")
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestDetect_GitHubRepoInHomeDirectory(t *testing.T) {
	home := t.TempDir()
	cwd := t.TempDir()
	checkout := filepath.Join(home, "projects", "codi")
	mkdirAll(t, filepath.Join(checkout, ".git"))

	ws := Detect(cwd, home, "tognete/codi")
	if ws.Root != checkout {
		t.Errorf("Root = %q, want %q", ws.Root, checkout)
	}
	if ws.Name != "codi" {
		t.Errorf("Name = %q, want codi", ws.Name)
	}
}

func TestDetect_GitHubRepoRequiresGitDir(t *testing.T) {
	home := t.TempDir()
	cwd := t.TempDir()
	mkdirAll(t, filepath.Join(home, "code", "codi"))

	ws := Detect(cwd, home, "codi")
	if ws.Root != cwd {
		t.Errorf("Root = %q, want cwd %q", ws.Root, cwd)
	}
}

func TestDetect_EnclosingRepository(t *testing.T) {
	repoDir := t.TempDir()
	initRepo(t, repoDir)
	nested := filepath.Join(repoDir, "internal", "pkg")
	mkdirAll(t, nested)

	ws := Detect(nested, "", "")
	if ws.Root != repoDir {
		t.Errorf("Root = %q, want %q", ws.Root, repoDir)
	}
	if ws.Branch != "master" {
		t.Errorf("Branch = %q, want master", ws.Branch)
	}
}

func TestDetect_FallsBackToCwd(t *testing.T) {
	cwd := t.TempDir()
	ws := Detect(cwd, "", "")
	if ws.Root != cwd || ws.Branch != "" {
		t.Errorf("Detect() = %+v, want root %q and no branch", ws, cwd)
	}
}

func TestCollectFiles_Directory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main")
	writeFile(t, filepath.Join(root, "src", "app.py"), "print('hi')")
	writeFile(t, filepath.Join(root, "notes.txt"), "not code")
	writeFile(t, filepath.Join(root, "node_modules", "lib.js"), "ignored")
	writeFile(t, filepath.Join(root, ".hidden", "x.go"), "ignored")
	writeFile(t, filepath.Join(root, "bin.go"), "pack\x00age")

	files, err := CollectFiles(root, "", CollectOptions{})
	if err != nil {
		t.Fatalf("CollectFiles() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", keys(files))
	}
	if files["main.go"] != "package main" || files["src/app.py"] != "print('hi')" {
		t.Errorf("unexpected files: %v", keys(files))
	}
}

func TestCollectFiles_SingleFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "docs", "notes.txt")
	writeFile(t, path, "plain text")

	files, err := CollectFiles(root, path, CollectOptions{})
	if err != nil {
		t.Fatalf("CollectFiles() error = %v", err)
	}
	if files["docs/notes.txt"] != "plain text" {
		t.Errorf("files = %v", files)
	}
}

func TestCollectFiles_TotalLimit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), strings.Repeat("a", 60))
	writeFile(t, filepath.Join(root, "b.go"), strings.Repeat("b", 60))

	files, err := CollectFiles(root, "", CollectOptions{MaxTotalBytes: 100})
	if err != nil {
		t.Fatalf("CollectFiles() error = %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected the limit to stop after one file, got %v", keys(files))
	}
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"ascii", "package main\n", false},
		{"utf8", "// café\n", false},
		{"nul byte", "pack\x00age", true},
		{"invalid utf8", "\xff\xfe\xfd", true},
		{"rune across sample boundary", strings.Repeat("a", binarySniffLen-1) + "é", false},
		{"four byte rune across sample boundary", strings.Repeat("a", binarySniffLen-2) + "😀", false},
		{"invalid byte before boundary", strings.Repeat("a", binarySniffLen-1) + "\xff" + "tail", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBinary([]byte(tt.data)); got != tt.want {
				t.Errorf("IsBinary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollectFiles_KeepsRuneAtSampleBoundary(t *testing.T) {
	root := t.TempDir()
	content := strings.Repeat("a", binarySniffLen-1) + "é"
	writeFile(t, filepath.Join(root, "main.go"), content)

	files, err := CollectFiles(root, "", CollectOptions{})
	if err != nil {
		t.Fatalf("CollectFiles() error = %v", err)
	}
	if files["main.go"] != content {
		t.Errorf("expected main.go in context, got %v", keys(files))
	}

	single, err := CollectFiles(root, filepath.Join(root, "main.go"), CollectOptions{})
	if err != nil {
		t.Fatalf("CollectFiles(single file) error = %v", err)
	}
	if len(single) != 1 {
		t.Errorf("expected the single file, got %v", keys(single))
	}
}

func TestCollectFiles_Missing(t *testing.T) {
	if _, err := CollectFiles("", filepath.Join(t.TempDir(), "nope"), CollectOptions{}); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestComputeStats(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "")
	writeFile(t, filepath.Join(root, "b.go"), "")
	writeFile(t, filepath.Join(root, "pkg", "c.py"), "")
	writeFile(t, filepath.Join(root, "Makefile"), "")
	writeFile(t, filepath.Join(root, ".env"), "")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "")
	writeFile(t, filepath.Join(root, "venv", "x.py"), "")

	stats, err := ComputeStats(root)
	if err != nil {
		t.Fatalf("ComputeStats() error = %v", err)
	}
	if stats.Files != 5 {
		t.Errorf("Files = %d, want 5", stats.Files)
	}
	if stats.Directories != 1 {
		t.Errorf("Directories = %d, want 1", stats.Directories)
	}
	want := []ExtCount{{".go", 2}, {".py", 1}, {NoExtension, 1}}
	if len(stats.ByExtension) != len(want) {
		t.Fatalf("ByExtension = %v", stats.ByExtension)
	}
	for i := range want {
		if stats.ByExtension[i] != want[i] {
			t.Errorf("ByExtension[%d] = %v, want %v", i, stats.ByExtension[i], want[i])
		}
	}

	report := stats.Report()
	for _, line := range []string{"Repository Statistics:", "- Total files: 5", "- .go: 2 files"} {
		if !strings.Contains(report, line) {
			t.Errorf("report missing %q:\n%s", line, report)
		}
	}
}

func TestLanguageFor(t *testing.T) {
	tests := map[string]string{
		"main.go":   "go",
		"App.TSX":   "typescript",
		"lib.rs":    "rust",
		"README.md": "",
	}
	for path, want := range tests {
		if got := LanguageFor(path); got != want {
			t.Errorf("LanguageFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
