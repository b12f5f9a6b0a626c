// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/parts"
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL DEFAULT '',
    model         TEXT NOT NULL DEFAULT '',
    system_prompt TEXT NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role            TEXT NOT NULL,
    content         TEXT NOT NULL DEFAULT '',
    payload         TEXT NOT NULL,
    created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
    ON messages(conversation_id);
`

// ErrNotFound is returned when a conversation id has no row.
var ErrNotFound = errors.New("conversation not found")

// =============================================================================
// STORE
// =============================================================================

// Store persists conversations and their messages in a sqlite database.
// Message bodies are kept as JSON payloads; the relational columns exist
// for ordering, listing, and search.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, creating parent directories
// as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; the TUI has no concurrent turns.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// SaveConversation upserts the conversation row and replaces its messages.
func (s *Store) SaveConversation(conv *model.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertConversation(tx, conv); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return err
	}
	for _, msg := range conv.Messages {
		if err := insertMessage(tx, conv.ID, msg); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMessage upserts a single message. The conversation row is created on
// demand so incremental turn persistence does not require a prior
// SaveConversation.
func (s *Store) SaveMessage(conversationID string, msg *model.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	_, err = tx.Exec(
		`INSERT INTO conversations(id, created_at, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		conversationID, now, now)
	if err != nil {
		return err
	}

	if err := insertMessage(tx, conversationID, msg); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadConversation reads a conversation and its messages in order.
func (s *Store) LoadConversation(id string) (*model.Conversation, error) {
	conv := &model.Conversation{ID: id}
	var created, updated int64
	err := s.db.QueryRow(
		`SELECT title, model, system_prompt, created_at, updated_at
		 FROM conversations WHERE id = ?`, id).
		Scan(&conv.Title, &conv.Model, &conv.SystemPrompt, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	conv.CreatedAt = time.Unix(created, 0)
	conv.UpdatedAt = time.Unix(updated, 0)

	rows, err := s.db.Query(
		`SELECT payload FROM messages WHERE conversation_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var msg model.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("corrupt message payload: %w", err)
		}
		if msg.Role == model.RoleAssistant {
			// Older records from image-only turns kept their text solely
			// in the flat content field.
			msg.Parts = parts.ReconcileFlat(msg.Parts, msg.Content)
		}
		conv.Messages = append(conv.Messages, &msg)
	}
	return conv, rows.Err()
}

// List returns conversation metadata, most recently updated first.
func (s *Store) List() ([]model.ConversationMeta, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.title, c.model, c.created_at, c.updated_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		 FROM conversations c ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMetas(rows)
}

// Search returns conversations whose title or message content matches the
// query, case-insensitively.
func (s *Store) Search(query string) ([]model.ConversationMeta, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.Query(
		`SELECT DISTINCT c.id, c.title, c.model, c.created_at, c.updated_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		 FROM conversations c
		 LEFT JOIN messages m ON m.conversation_id = c.id
		 WHERE lower(c.title) LIKE ? OR lower(m.content) LIKE ?
		 ORDER BY c.updated_at DESC`, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMetas(rows)
}

// Delete removes a conversation and its messages.
func (s *Store) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func upsertConversation(tx *sql.Tx, conv *model.Conversation) error {
	meta := conv.GetMeta()
	_, err := tx.Exec(
		`INSERT INTO conversations(id, title, model, system_prompt, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   model = excluded.model,
		   system_prompt = excluded.system_prompt,
		   updated_at = excluded.updated_at`,
		meta.ID, meta.Title, meta.Model, conv.SystemPrompt,
		meta.CreatedAt.Unix(), meta.UpdatedAt.Unix())
	return err
}

func insertMessage(tx *sql.Tx, conversationID string, msg *model.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO messages(id, conversation_id, role, content, payload, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   content = excluded.content,
		   payload = excluded.payload`,
		msg.ID, conversationID, string(msg.Role), msg.Content, string(payload),
		msg.Timestamp.Unix())
	return err
}

func scanMetas(rows *sql.Rows) ([]model.ConversationMeta, error) {
	var metas []model.ConversationMeta
	for rows.Next() {
		var m model.ConversationMeta
		var created, updated int64
		if err := rows.Scan(&m.ID, &m.Title, &m.Model, &created, &updated, &m.MessageCount); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(created, 0)
		m.UpdatedAt = time.Unix(updated, 0)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}
