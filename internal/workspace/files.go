package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

// SourceExtensions are the file extensions collected as code context.
var SourceExtensions = []string{
	".py", ".js", ".ts", ".jsx", ".tsx", ".java", ".cpp", ".h",
	".go", ".rs", ".rb", ".c", ".cs", ".kt", ".swift", ".php",
}

var errContextFull = errors.New("context limit reached")

// skipDirs are never descended into.
var skipDirs = []string{"node_modules", "venv", "__pycache__", "vendor"}

// CollectOptions bounds how much of the tree CollectFiles reads.
type CollectOptions struct {
	// MaxFileBytes skips files larger than this. Zero means no limit.
	MaxFileBytes int64
	// MaxTotalBytes stops collecting once this many bytes are read. Zero means no limit.
	MaxTotalBytes int
	// Extensions overrides SourceExtensions when non-empty.
	Extensions []string
}

// DefaultCollectOptions returns limits suitable for a single prompt.
func DefaultCollectOptions() CollectOptions {
	return CollectOptions{MaxFileBytes: 100_000, MaxTotalBytes: 200_000}
}

// CollectFiles reads the source files under path, keyed by their path
// relative to root. path may name a single file, which is read regardless of
// its extension.
func CollectFiles(root, path string, opts CollectOptions) (map[string]string, error) {
	if path == "" {
		path = root
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	files := make(map[string]string)
	if !info.IsDir() {
		content, err := readText(path, opts.MaxFileBytes)
		if err != nil {
			return nil, err
		}
		files[relPath(root, path)] = content
		return files, nil
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = SourceExtensions
	}

	total := 0
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped
			if d != nil && d.IsDir() && p != path {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != path && skipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !slices.Contains(exts, strings.ToLower(filepath.Ext(d.Name()))) {
			return nil
		}
		content, err := readText(p, opts.MaxFileBytes)
		if err != nil {
			return nil
		}
		if opts.MaxTotalBytes > 0 && total+len(content) > opts.MaxTotalBytes {
			return errContextFull
		}
		total += len(content)
		files[relPath(root, p)] = content
		return nil
	})
	if err != nil && !errors.Is(err, errContextFull) {
		return nil, err
	}
	return files, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || slices.Contains(skipDirs, name)
}

func relPath(root, p string) string {
	if root == "" {
		return filepath.ToSlash(p)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// readText reads a file as text, rejecting binary content and oversized files.
func readText(path string, maxBytes int64) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return "", fmt.Errorf("%s is larger than %d bytes", path, maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if IsBinary(data) {
		return "", fmt.Errorf("%s is not a text file", path)
	}
	return string(data), nil
}

const binarySniffLen = 8000

// IsBinary reports whether data looks like binary content.
func IsBinary(data []byte) bool {
	sample := data
	if len(sample) > binarySniffLen {
		sample = sample[:binarySniffLen]
		// Drop a rune cut off by the sample boundary.
		for i := len(sample) - 1; i >= 0 && i >= len(sample)-utf8.UTFMax; i-- {
			if utf8.RuneStart(sample[i]) {
				if !utf8.FullRune(sample[i:]) {
					sample = sample[:i]
				}
				break
			}
		}
	}
	return bytes.IndexByte(sample, 0) >= 0 || !utf8.Valid(sample)
}

var languages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".cpp":   "cpp",
	".h":     "cpp",
	".c":     "c",
	".rs":    "rust",
	".rb":    "ruby",
	".cs":    "csharp",
	".kt":    "kotlin",
	".swift": "swift",
	".php":   "php",
}

// LanguageFor returns the language tag for a file path, or "" if unknown.
func LanguageFor(path string) string {
	return languages[strings.ToLower(filepath.Ext(path))]
}
