package db

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"agentx/internal/models"
	"agentx/internal/selection"
	_ "modernc.org/sqlite"
)

func OpenAgentXDB() (*sql.DB, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return nil, err
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dbDir := filepath.Join(configDir, "agentx")
	if err := os.MkdirAll(dbDir, 0o700); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dbDir, "agentx.db")
	return openAt(dbPath)
}

func openAt(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS selection (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at DESC);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

const selectionKey = "selection_v2"

// SelectionStore persists the user's tool, server and model selection
// as a single JSON value in the selection table.
type SelectionStore struct {
	db *sql.DB
}

func NewSelectionStore(db *sql.DB) *SelectionStore {
	return &SelectionStore{db: db}
}

func (s *SelectionStore) Load() (selection.Saved, error) {
	var raw string
	err := s.db.QueryRow("SELECT value FROM selection WHERE key = ?", selectionKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return selection.Saved{}, nil
	}
	if err != nil {
		return selection.Saved{}, err
	}

	var saved selection.Saved
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		// Unreadable state is treated as absent rather than fatal.
		return selection.Saved{}, nil
	}
	return saved, nil
}

func (s *SelectionStore) Save(saved selection.Saved) error {
	raw, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		"INSERT INTO selection(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		selectionKey,
		string(raw),
	)
	return err
}

// ReplaceConversations swaps the cached conversation list for the one
// just fetched, so the history picker has something to show offline.
func ReplaceConversations(db *sql.DB, convs []models.Conversation) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM conversations"); err != nil {
		return err
	}
	for _, c := range convs {
		if _, err := tx.Exec(
			"INSERT INTO conversations(id, title, created_at) VALUES(?, ?, ?)",
			c.ID,
			c.Title,
			c.CreatedAt.Unix(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func CachedConversations(db *sql.DB) ([]models.Conversation, error) {
	rows, err := db.Query("SELECT id, title, created_at FROM conversations ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.Title, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return convs, nil
}
