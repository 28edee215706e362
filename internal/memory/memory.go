// Package memory keeps conversation history for the agent.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tognete/codi/internal/domain"
)

// ErrNotFound is returned when a conversation does not exist in the store.
var ErrNotFound = errors.New("conversation not found")

// Conversation is one chat session and its accumulated context.
type Conversation struct {
	ID            string            `json:"id"`
	StartedAt     time.Time         `json:"started_at"`
	WorkspacePath string            `json:"workspace_path,omitempty"`
	CurrentFile   string            `json:"current_file,omitempty"`
	ActiveTask    string            `json:"active_task,omitempty"`
	Context       map[string]string `json:"context,omitempty"`
	Messages      []domain.Message  `json:"messages"`
}

// NewConversation starts an empty conversation bound to a workspace.
func NewConversation(workspacePath string) *Conversation {
	return &Conversation{
		ID:            uuid.NewString(),
		StartedAt:     time.Now(),
		WorkspacePath: workspacePath,
		Context:       map[string]string{},
	}
}

func (c *Conversation) clone() *Conversation {
	out := *c
	out.Context = maps.Clone(c.Context)
	out.Messages = append([]domain.Message(nil), c.Messages...)
	return &out
}

// Store persists conversations.
type Store interface {
	Save(ctx context.Context, c *Conversation) error
	Load(ctx context.Context, id string) (*Conversation, error)
	// List returns conversation IDs, most recent first.
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Memory tracks the active conversation. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	store   Store
	current *Conversation
}

// New creates a Memory. A nil store keeps history in process only.
func New(store Store) *Memory {
	return &Memory{store: store}
}

// Start begins a new conversation, replacing the current one.
func (m *Memory) Start(workspacePath string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = NewConversation(workspacePath)
	return m.current.ID
}

// EnsureStarted starts a conversation bound to workspacePath, with seed as
// its initial context, unless one is already active. It reports whether a
// conversation was started.
func (m *Memory) EnsureStarted(workspacePath string, seed map[string]string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return false
	}
	m.current = NewConversation(workspacePath)
	maps.Copy(m.current.Context, seed)
	return true
}

// Active reports whether a conversation has been started.
func (m *Memory) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Add appends a message, starting a conversation if none is active.
func (m *Memory) Add(msg domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		m.current = NewConversation("")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.current.Messages = append(m.current.Messages, msg)
}

// Recent returns up to limit of the latest messages, oldest first.
func (m *Memory) Recent(limit int) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || limit <= 0 {
		return nil
	}
	msgs := m.current.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.Message(nil), msgs...)
}

// UpdateContext merges values into the conversation context.
func (m *Memory) UpdateContext(values map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		m.current = NewConversation("")
	}
	maps.Copy(m.current.Context, values)
	if v, ok := values["current_file"]; ok {
		m.current.CurrentFile = v
	}
	if v, ok := values["active_task"]; ok {
		m.current.ActiveTask = v
	}
}

// Context returns a copy of the conversation context.
func (m *Memory) Context() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return map[string]string{}
	}
	return maps.Clone(m.current.Context)
}

// Snapshot returns a copy of the current conversation, or nil.
func (m *Memory) Snapshot() *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current.clone()
}

// Clear discards the current conversation without saving it.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

// Save persists the current conversation. It is a no-op without a store.
func (m *Memory) Save(ctx context.Context) error {
	snap := m.Snapshot()
	if snap == nil || m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("saving conversation %s: %w", snap.ID, err)
	}
	return nil
}

// Load replaces the current conversation with a stored one.
func (m *Memory) Load(ctx context.Context, id string) error {
	if m.store == nil {
		return ErrNotFound
	}
	c, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Context == nil {
		c.Context = map[string]string{}
	}
	m.current = c
	return nil
}

// List returns the saved conversation IDs, most recent first. It returns
// nil without a store.
func (m *Memory) List(ctx context.Context) ([]string, error) {
	if m.store == nil {
		return nil, nil
	}
	ids, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return ids, nil
}

// Store returns the backing store, which may be nil.
func (m *Memory) Store() Store {
	return m.store
}
