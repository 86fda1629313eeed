package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wricardo/mcp-training/memorygame/game/service"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	deck_id TEXT NOT NULL,
	payload_json BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLitePersistence implements SessionPersistence with one row per session
type SQLitePersistence struct {
	sqlDB *sql.DB
	codec sessionCodec
}

// NewSQLitePersistence opens (and creates if needed) a SQLite session store
func NewSQLitePersistence(path string, configManager service.ConfigManager) (*SQLitePersistence, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if configManager == nil {
		return nil, fmt.Errorf("config manager is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows a single writer
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &SQLitePersistence{
		sqlDB: sqlDB,
		codec: sessionCodec{configs: configManager},
	}, nil
}

// Close releases the underlying SQLite connection
func (sp *SQLitePersistence) Close() error {
	if sp == nil || sp.sqlDB == nil {
		return nil
	}
	return sp.sqlDB.Close()
}

// Save upserts the session row
func (sp *SQLitePersistence) Save(session *service.Session) error {
	payload, err := sp.codec.encode(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	_, err = sp.sqlDB.ExecContext(context.Background(),
		`INSERT INTO sessions (id, deck_id, payload_json, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			deck_id = excluded.deck_id,
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at`,
		session.ID, session.DeckID, payload, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load reads and decodes a session row
func (sp *SQLitePersistence) Load(id string) (*service.Session, error) {
	var payload []byte
	row := sp.sqlDB.QueryRowContext(context.Background(),
		`SELECT payload_json FROM sessions WHERE id = ?`, id)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	return sp.codec.decode(id, payload)
}

// Delete removes a session row
func (sp *SQLitePersistence) Delete(id string) error {
	res, err := sp.sqlDB.ExecContext(context.Background(), `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns every stored session id
func (sp *SQLitePersistence) ListAll() ([]string, error) {
	rows, err := sp.sqlDB.QueryContext(context.Background(), `SELECT id FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessionIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		sessionIDs = append(sessionIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessionIDs, nil
}

// Exists checks whether a session row is present
func (sp *SQLitePersistence) Exists(id string) bool {
	var one int
	err := sp.sqlDB.QueryRowContext(context.Background(),
		`SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	return err == nil
}
