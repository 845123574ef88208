// Package store persists moderation state in SQLite: warn counters, bans
// and per-chat feature toggles.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/jdelaire/openbot/internal/store/migrations"
)

// ErrAlreadyBanned is returned by AddBan for an existing ban.
var ErrAlreadyBanned = errors.New("user already banned")

// Ban is one persisted ban.
type Ban struct {
	ChatID    string
	UserID    string
	BannedBy  string
	CreatedAt time.Time
}

// Store persists moderation state in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddWarn increments the warn counter for user in chat and returns the new count.
func (s *Store) AddWarn(ctx context.Context, chatID, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO warns (chat_id, user_id, count, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT (chat_id, user_id) DO UPDATE SET count = count + 1, updated_at = excluded.updated_at
		 RETURNING count`,
		chatID, userID, s.now().UTC().UnixMilli(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("add warn: %w", err)
	}
	return count, nil
}

// Warns returns the warn count for user in chat.
func (s *Store) Warns(ctx context.Context, chatID, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM warns WHERE chat_id = ? AND user_id = ?`, chatID, userID,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get warns: %w", err)
	}
	return count, nil
}

// ResetWarns clears the warn count for user in chat.
func (s *Store) ResetWarns(ctx context.Context, chatID, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM warns WHERE chat_id = ? AND user_id = ?`, chatID, userID,
	); err != nil {
		return fmt.Errorf("reset warns: %w", err)
	}
	return nil
}

// AddBan records a ban.
func (s *Store) AddBan(ctx context.Context, b Ban) error {
	if b.ChatID == "" || b.UserID == "" {
		return fmt.Errorf("chat id and user id are required")
	}
	created := b.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bans (chat_id, user_id, banned_by, created_at) VALUES (?, ?, ?, ?)`,
		b.ChatID, b.UserID, b.BannedBy, created.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyBanned
		}
		return fmt.Errorf("add ban: %w", err)
	}
	return nil
}

// RemoveBan deletes a ban and reports whether one existed.
func (s *Store) RemoveBan(ctx context.Context, chatID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bans WHERE chat_id = ? AND user_id = ?`, chatID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("remove ban: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove ban: %w", err)
	}
	return n > 0, nil
}

// Bans lists every ban, oldest first.
func (s *Store) Bans(ctx context.Context) ([]Ban, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, user_id, banned_by, created_at FROM bans ORDER BY created_at, chat_id, user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	defer rows.Close()

	var out []Ban
	for rows.Next() {
		var b Ban
		var created int64
		if err := rows.Scan(&b.ChatID, &b.UserID, &b.BannedBy, &created); err != nil {
			return nil, fmt.Errorf("scan ban: %w", err)
		}
		b.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	return out, nil
}

// SetToggle stores value for feature in chat.
func (s *Store) SetToggle(ctx context.Context, chatID, feature, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO toggles (chat_id, feature, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (chat_id, feature) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		chatID, feature, value, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set toggle: %w", err)
	}
	return nil
}

// DeleteToggle removes feature for chat.
func (s *Store) DeleteToggle(ctx context.Context, chatID, feature string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM toggles WHERE chat_id = ? AND feature = ?`, chatID, feature,
	); err != nil {
		return fmt.Errorf("delete toggle: %w", err)
	}
	return nil
}

// Toggles returns chat id to value for every chat that has feature set.
func (s *Store) Toggles(ctx context.Context, feature string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, value FROM toggles WHERE feature = ?`, feature,
	)
	if err != nil {
		return nil, fmt.Errorf("list toggles: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var chatID, value string
		if err := rows.Scan(&chatID, &value); err != nil {
			return nil, fmt.Errorf("scan toggle: %w", err)
		}
		out[chatID] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list toggles: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
