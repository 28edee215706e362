package workspace

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// NoExtension labels files without an extension in Stats.
const NoExtension = "no extension"

// ExtCount is the number of files sharing an extension.
type ExtCount struct {
	Ext   string `json:"ext"`
	Count int    `json:"count"`
}

// Stats summarizes the files in a repository.
type Stats struct {
	Files       int        `json:"files"`
	Directories int        `json:"directories"`
	ByExtension []ExtCount `json:"by_extension"`
}

// ComputeStats walks root, skipping hidden and dependency directories.
func ComputeStats(root string) (*Stats, error) {
	counts := map[string]int{}
	stats := &Stats{}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return fs.SkipDir
			}
			stats.Directories++
			return nil
		}
		stats.Files++
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		ext := filepath.Ext(d.Name())
		if ext == "" {
			ext = NoExtension
		}
		counts[ext]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	for ext, n := range counts {
		stats.ByExtension = append(stats.ByExtension, ExtCount{Ext: ext, Count: n})
	}
	sort.Slice(stats.ByExtension, func(i, j int) bool {
		a, b := stats.ByExtension[i], stats.ByExtension[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Ext < b.Ext
	})
	return stats, nil
}

// Report formats the stats as the plain-text summary used in chat replies.
func (s *Stats) Report() string {
	var b strings.Builder
	b.WriteString("Repository Statistics:\n")
	fmt.Fprintf(&b, "- Total files: %d\n", s.Files)
	fmt.Fprintf(&b, "- Total directories: %d\n", s.Directories)
	b.WriteString("\nFile types:\n")
	for _, e := range s.ByExtension {
		fmt.Fprintf(&b, "- %s: %d files\n", e.Ext, e.Count)
	}
	return b.String()
}
