package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const filePrefix = "conversation_"

// FileStore keeps one JSON file per conversation in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory conversations are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(c *Conversation) string {
	short := c.ID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("%s%s_%s.json", filePrefix, c.StartedAt.Format("20060102_150405"), short)
	return filepath.Join(s.dir, name)
}

// Save writes the conversation, overwriting any earlier save of it.
func (s *FileStore) Save(_ context.Context, c *Conversation) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := os.WriteFile(s.path(c), data, 0644); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	return nil
}

// Load reads a conversation by ID or by file name.
func (s *FileStore) Load(_ context.Context, id string) (*Conversation, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	for _, name := range files {
		if name != id && !matchesID(name, id) {
			continue
		}
		c, err := readConversation(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		if name == id || c.ID == id || strings.HasPrefix(c.ID, id) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns stored conversation IDs, most recent first.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(files))
	for _, name := range files {
		c, err := readConversation(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

// files returns conversation file names sorted newest first.
func (s *FileStore) files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func matchesID(name, id string) bool {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return short != "" && strings.HasSuffix(name, "_"+short+".json")
}

func readConversation(path string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid conversation file %s: %w", filepath.Base(path), err)
	}
	return &c, nil
}
