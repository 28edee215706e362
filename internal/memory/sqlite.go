package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tognete/codi/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id             TEXT PRIMARY KEY,
	started_at     INTEGER NOT NULL,
	workspace_path TEXT NOT NULL DEFAULT '',
	current_file   TEXT NOT NULL DEFAULT '',
	active_task    TEXT NOT NULL DEFAULT '',
	context        TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	timestamp       INTEGER NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (conversation_id, seq)
);`

// SQLiteStore keeps conversations in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save replaces the stored copy of the conversation.
func (s *SQLiteStore) Save(ctx context.Context, c *Conversation) error {
	ctxJSON, err := json.Marshal(c.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, started_at, workspace_path, current_file, active_task, context)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace_path = excluded.workspace_path,
			current_file = excluded.current_file,
			active_task = excluded.active_task,
			context = excluded.context`,
		c.ID, c.StartedAt.UnixNano(), c.WorkspacePath, c.CurrentFile, c.ActiveTask, string(ctxJSON)); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	for i, m := range c.Messages {
		md, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, seq, role, content, timestamp, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, i, string(m.Role), m.Content, m.Timestamp.UnixNano(), string(md)); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Load reads a conversation and its messages.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Conversation, error) {
	var (
		c         Conversation
		startedAt int64
		ctxJSON   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, workspace_path, current_file, active_task, context FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &startedAt, &c.WorkspacePath, &c.CurrentFile, &c.ActiveTask, &ctxJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	c.StartedAt = time.Unix(0, startedAt)
	if err := json.Unmarshal([]byte(ctxJSON), &c.Context); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, timestamp, metadata FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m    domain.Message
			role string
			ts   int64
			md   string
		)
		if err := rows.Scan(&role, &m.Content, &ts, &md); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = domain.Role(role)
		m.Timestamp = time.Unix(0, ts)
		if err := json.Unmarshal([]byte(md), &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		c.Messages = append(c.Messages, m)
	}
	return &c, rows.Err()
}

// List returns conversation IDs, most recent first.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM conversations ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
