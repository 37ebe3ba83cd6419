// Package history persists a bounded per-user conversation log in
// SQLite. Each user keeps at most N messages; old rows are pruned on
// every write so the read path is a single capped query.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/halcyonic/aria/llm"
)

// DefaultMaxMessages caps how many turns survive per user.
const DefaultMaxMessages = 15

type Store struct {
	db  *sql.DB
	max int
}

// Open opens (or creates) the SQLite database at path, ensuring the
// parent directory exists, and prepares the schema.
func Open(path string, maxMessages int) (*Store, error) {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db at %s: %w", path, err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, max: maxMessages}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
		CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, id);
	`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// History returns up to the configured maximum of most recent messages
// for the user, oldest first. Unknown users get an empty slice.
func (s *Store) History(ctx context.Context, userID int64) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM messages
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?`, userID, s.max)
	if err != nil {
		return nil, fmt.Errorf("query history for user %d: %w", userID, err)
	}
	defer rows.Close()

	var out []llm.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, llm.Message{Role: llm.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	// Rows come newest-first; reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Append inserts the messages in order, then prunes everything but the
// newest max rows for the user. Insert and prune run in one
// transaction, so a reader never observes a partially written batch.
// Newest is decided by rowid (insertion order), not wall-clock time.
func (s *Store) Append(ctx context.Context, userID int64, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("append for user %d: no messages", userID)
	}
	for _, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("append for user %d: invalid role %q", userID, m.Role)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (user_id, role, content) VALUES (?, ?, ?)`,
			userID, string(m.Role), m.Content,
		); err != nil {
			return fmt.Errorf("insert message for user %d: %w", userID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM messages
		WHERE user_id = ?
		  AND id NOT IN (
			SELECT id FROM messages
			WHERE user_id = ?
			ORDER BY id DESC
			LIMIT ?
		  )`, userID, userID, s.max); err != nil {
		return fmt.Errorf("prune messages for user %d: %w", userID, err)
	}

	return tx.Commit()
}

// Clear deletes every message for the user. Clearing an already-empty
// history is a no-op.
func (s *Store) Clear(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("clear history for user %d: %w", userID, err)
	}
	return nil
}
