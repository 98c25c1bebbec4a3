// SQLite conversation storage.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/richinex/loom/llm"
)

// SqliteStorage implements ConversationStorage using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT,
			parts TEXT,
			tool_calls TEXT,
			tool_call_id TEXT,
			invocation_succeeded INTEGER,
			tokens INTEGER,
			PRIMARY KEY (session_id, message_index),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
		ON messages(session_id, message_index);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save saves conversation history for a session, replacing any previous
// history atomically.
func (s *SqliteStorage) Save(ctx context.Context, sessionID string, history []*llm.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id) VALUES (?)
		 ON CONFLICT(session_id) DO UPDATE SET updated_at = datetime('now')`,
		sessionID,
	); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("failed to clear previous history: %w", err)
	}

	for i, msg := range history {
		row, err := messageToRow(msg)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages
			 (message_id, session_id, message_index, role, content, parts, tool_calls, tool_call_id, invocation_succeeded, tokens)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.id, sessionID, i, row.role, row.content, row.parts, row.toolCalls, row.toolCallID, row.succeeded, row.tokens,
		); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Load loads conversation history for a session in turn order.
// Returns empty slice if session doesn't exist.
func (s *SqliteStorage) Load(ctx context.Context, sessionID string) ([]*llm.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, role, content, parts, tool_calls, tool_call_id, invocation_succeeded, tokens
		 FROM messages WHERE session_id = ? ORDER BY message_index`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	history := []*llm.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return history, nil
}

// Delete deletes conversation history for a session.
func (s *SqliteStorage) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListSessions lists all session IDs.
func (s *SqliteStorage) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM sessions ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}

// Exists checks if a session exists.
func (s *SqliteStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return count > 0, nil
}

// messageRow is the flattened SQL shape of a message.
type messageRow struct {
	id         string
	role       string
	content    sql.NullString
	parts      sql.NullString
	toolCalls  sql.NullString
	toolCallID sql.NullString
	succeeded  sql.NullBool
	tokens     sql.NullInt64
}

func messageToRow(msg *llm.Message) (messageRow, error) {
	row := messageRow{id: msg.ID, role: string(msg.Role)}

	if msg.Content != nil {
		row.content = sql.NullString{String: *msg.Content, Valid: true}
	}
	if len(msg.Parts) > 0 {
		data, err := json.Marshal(msg.Parts)
		if err != nil {
			return row, fmt.Errorf("failed to marshal parts: %w", err)
		}
		row.parts = sql.NullString{String: string(data), Valid: true}
	}
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return row, fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		row.toolCalls = sql.NullString{String: string(data), Valid: true}
	}
	if msg.ToolCallID != "" {
		row.toolCallID = sql.NullString{String: msg.ToolCallID, Valid: true}
	}
	if msg.ToolInvocationSucceeded != nil {
		row.succeeded = sql.NullBool{Bool: *msg.ToolInvocationSucceeded, Valid: true}
	}
	if msg.Tokens != nil {
		row.tokens = sql.NullInt64{Int64: int64(*msg.Tokens), Valid: true}
	}
	return row, nil
}

func scanMessage(rows *sql.Rows) (*llm.Message, error) {
	var row messageRow
	if err := rows.Scan(&row.id, &row.role, &row.content, &row.parts, &row.toolCalls, &row.toolCallID, &row.succeeded, &row.tokens); err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	msg := &llm.Message{ID: row.id, Role: llm.Role(row.role)}
	if row.content.Valid {
		content := row.content.String
		msg.Content = &content
	}
	if row.parts.Valid {
		if err := json.Unmarshal([]byte(row.parts.String), &msg.Parts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parts: %w", err)
		}
	}
	if row.toolCalls.Valid {
		if err := json.Unmarshal([]byte(row.toolCalls.String), &msg.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
		}
	}
	if row.toolCallID.Valid {
		msg.ToolCallID = row.toolCallID.String
	}
	if row.succeeded.Valid {
		succeeded := row.succeeded.Bool
		msg.ToolInvocationSucceeded = &succeeded
	}
	if row.tokens.Valid {
		tokens := uint32(row.tokens.Int64)
		msg.Tokens = &tokens
	}
	return msg, nil
}

// Verify SqliteStorage implements ConversationStorage
var _ ConversationStorage = (*SqliteStorage)(nil)
