package db

import (
	"database/sql"
	"errors"

	"github.com/minho5235/jammin/internal/models"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// ErrUnavailable is returned by CreateSession when the store is running in
// degraded, memory-only mode. Callers treat it as "no persistence this run".
var ErrUnavailable = errors.New("storage unavailable")

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL DEFAULT 'New Conversation',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL,
    sender TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE
);`

// Store persists sessions and messages in SQLite. A Store whose database
// could not be opened stays usable: every operation becomes a no-op
// returning an empty result, so the rest of the program keeps working
// without persistence.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the SQLite file at path and provisions the
// schema. Any failure is logged once and yields a degraded Store; it is
// never fatal.
func Open(path string, logger *zap.Logger) *Store {
	sqlDB, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err == nil {
		_, err = sqlDB.Exec(schema)
	}
	if err != nil {
		if sqlDB != nil {
			sqlDB.Close()
		}
		logger.Warn("database unavailable, chat history will not be persisted",
			zap.String("path", path),
			zap.Error(err))
		return &Store{logger: logger}
	}

	// SQLite allows a single writer; the store is only driven from the
	// main flow anyway.
	sqlDB.SetMaxOpenConns(1)

	logger.Info("database ready", zap.String("path", path))
	return &Store{db: sqlDB, logger: logger}
}

// Available reports whether the store is actually persisting.
func (s *Store) Available() bool {
	return s.db != nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateSession inserts a new session and returns its generated id.
func (s *Store) CreateSession(title string) (int64, error) {
	if s.db == nil {
		return 0, ErrUnavailable
	}

	var id int64
	err := s.db.QueryRow(
		`INSERT INTO chat_sessions (title) VALUES (?) RETURNING id`,
		title,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteSession removes a session together with all its messages as one
// transaction. It reports success; on failure nothing is changed.
func (s *Store) DeleteSession(id int64) bool {
	if s.db == nil {
		return false
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Warn("delete failed", zap.Int64("session_id", id), zap.Error(err))
		return false
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chat_messages WHERE session_id = ?`, id); err != nil {
		s.logger.Warn("delete failed", zap.Int64("session_id", id), zap.Error(err))
		return false
	}
	if _, err := tx.Exec(`DELETE FROM chat_sessions WHERE id = ?`, id); err != nil {
		s.logger.Warn("delete failed", zap.Int64("session_id", id), zap.Error(err))
		return false
	}
	if err := tx.Commit(); err != nil {
		s.logger.Warn("delete failed", zap.Int64("session_id", id), zap.Error(err))
		return false
	}
	return true
}

// SaveMessage inserts a message row. A zero session id is a no-op, which
// tolerates sends that race ahead of lazy session creation.
func (s *Store) SaveMessage(sessionID int64, sender, content string) error {
	if s.db == nil || sessionID == 0 {
		return nil
	}

	_, err := s.db.Exec(
		`INSERT INTO chat_messages (session_id, sender, content) VALUES (?, ?, ?)`,
		sessionID, sender, content,
	)
	return err
}

// AllSessions returns every session, newest first.
func (s *Store) AllSessions() []models.Session {
	if s.db == nil {
		return []models.Session{}
	}

	rows, err := s.db.Query(
		`SELECT id, title, created_at FROM chat_sessions ORDER BY id DESC`)
	if err != nil {
		s.logger.Warn("session listing failed", zap.Error(err))
		return []models.Session{}
	}
	defer rows.Close()

	return scanSessions(rows, s.logger)
}

// SearchSessions returns sessions whose title or any owned message content
// contains keyword, case-insensitively, newest first.
func (s *Store) SearchSessions(keyword string) []models.Session {
	if s.db == nil {
		return []models.Session{}
	}

	rows, err := s.db.Query(`
        SELECT DISTINCT s.id, s.title, s.created_at
        FROM chat_sessions s
        LEFT JOIN chat_messages m ON m.session_id = s.id
        WHERE lower(s.title) LIKE '%' || lower(?) || '%'
           OR lower(m.content) LIKE '%' || lower(?) || '%'
        ORDER BY s.id DESC`,
		keyword, keyword)
	if err != nil {
		s.logger.Warn("session search failed", zap.String("keyword", keyword), zap.Error(err))
		return []models.Session{}
	}
	defer rows.Close()

	return scanSessions(rows, s.logger)
}

// Messages returns a session's messages in creation order.
func (s *Store) Messages(sessionID int64) []models.Message {
	if s.db == nil {
		return []models.Message{}
	}

	rows, err := s.db.Query(`
        SELECT id, session_id, sender, content, created_at
        FROM chat_messages
        WHERE session_id = ?
        ORDER BY id ASC`,
		sessionID)
	if err != nil {
		s.logger.Warn("message load failed", zap.Int64("session_id", sessionID), zap.Error(err))
		return []models.Message{}
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Sender, &msg.Content, &msg.CreatedAt); err != nil {
			s.logger.Warn("message scan failed", zap.Error(err))
			return []models.Message{}
		}
		messages = append(messages, msg)
	}
	return messages
}

// UpdateSessionTitle renames a session in place.
func (s *Store) UpdateSessionTitle(id int64, title string) error {
	if s.db == nil {
		return nil
	}

	_, err := s.db.Exec(`UPDATE chat_sessions SET title = ? WHERE id = ?`, title, id)
	return err
}

func scanSessions(rows *sql.Rows, logger *zap.Logger) []models.Session {
	sessions := make([]models.Session, 0)
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt); err != nil {
			logger.Warn("session scan failed", zap.Error(err))
			return []models.Session{}
		}
		sessions = append(sessions, sess)
	}
	return sessions
}
