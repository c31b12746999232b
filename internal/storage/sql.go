package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgellow/jobfront/internal/crypto"
	"github.com/dgellow/jobfront/internal/idp"
	"github.com/dgellow/jobfront/internal/log"
	"github.com/dgellow/jobfront/internal/statetoken"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// Driver names registered by the imported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// schema is portable between postgres and sqlite. Times are unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS pending_auth (
		nonce      TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		from_url   TEXT NOT NULL,
		expires_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id    TEXT NOT NULL,
		provider   TEXT NOT NULL,
		data       TEXT NOT NULL,
		first_seen BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, provider)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		provider   TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_auth_expires_at ON pending_auth (expires_at)`,
}

// SQLStorage persists state in postgres or sqlite through sqlx.
// Profiles are encrypted before they are written.
type SQLStorage struct {
	db        *sqlx.DB
	encryptor crypto.Encryptor
	now       func() time.Time
}

var _ Storage = (*SQLStorage)(nil)

type pendingRow struct {
	UserID    string `db:"user_id"`
	FromURL   string `db:"from_url"`
	ExpiresAt int64  `db:"expires_at"`
}

type profileRow struct {
	UserID    string `db:"user_id"`
	Provider  string `db:"provider"`
	Data      string `db:"data"`
	FirstSeen int64  `db:"first_seen"`
	UpdatedAt int64  `db:"updated_at"`
}

type sessionRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Provider  string `db:"provider"`
	CreatedAt int64  `db:"created_at"`
	ExpiresAt int64  `db:"expires_at"`
}

// NewPostgresStorage connects to postgres and creates the schema
func NewPostgresStorage(ctx context.Context, dsn string, encryptor crypto.Encryptor) (*SQLStorage, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	db, err := sqlx.ConnectContext(ctx, DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStorage(ctx, db, encryptor)
}

// NewSQLiteStorage opens a sqlite database file and creates the schema.
// ":memory:" opens a private in-memory database.
func NewSQLiteStorage(ctx context.Context, path string, encryptor crypto.Encryptor) (*SQLStorage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.ConnectContext(ctx, DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// sqlite serializes writers; one connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	return newSQLStorage(ctx, db, encryptor)
}

func newSQLStorage(ctx context.Context, db *sqlx.DB, encryptor crypto.Encryptor) (*SQLStorage, error) {
	if encryptor == nil {
		_ = db.Close()
		return nil, fmt.Errorf("encryptor is required")
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	log.LogInfoWithFields("sql", "SQL storage ready", map[string]any{
		"driver": db.DriverName(),
	})
	return &SQLStorage{db: db, encryptor: encryptor, now: time.Now}, nil
}

// StorePendingAuth stores a pending state under nonce
func (s *SQLStorage) StorePendingAuth(ctx context.Context, nonce string, state statetoken.PendingAuthState, expiresAt time.Time) error {
	query := s.db.Rebind(`INSERT INTO pending_auth (nonce, user_id, from_url, expires_at) VALUES (?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, nonce, state.UserID, state.FromURL, expiresAt.UnixMilli()); err != nil {
		return fmt.Errorf("store pending auth: %w", err)
	}
	return nil
}

// ConsumePendingAuth deletes and returns a pending state in a single statement
func (s *SQLStorage) ConsumePendingAuth(ctx context.Context, nonce string) (statetoken.PendingAuthState, error) {
	query := s.db.Rebind(`DELETE FROM pending_auth WHERE nonce = ? RETURNING user_id, from_url, expires_at`)

	var row pendingRow
	if err := s.db.GetContext(ctx, &row, query, nonce); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return statetoken.PendingAuthState{}, ErrPendingAuthNotFound
		}
		return statetoken.PendingAuthState{}, fmt.Errorf("consume pending auth: %w", err)
	}
	if s.now().UnixMilli() >= row.ExpiresAt {
		return statetoken.PendingAuthState{}, ErrPendingAuthNotFound
	}
	return statetoken.PendingAuthState{UserID: row.UserID, FromURL: row.FromURL}, nil
}

// UpsertProfile creates or updates a linked profile, keeping the original first_seen
func (s *SQLStorage) UpsertProfile(ctx context.Context, profile LinkedProfile) error {
	data, err := json.Marshal(profile.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	encrypted, err := s.encryptor.Encrypt(string(data))
	if err != nil {
		return fmt.Errorf("encrypt profile: %w", err)
	}

	now := s.now().UnixMilli()
	query := s.db.Rebind(`INSERT INTO profiles (user_id, provider, data, first_seen, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, profile.UserID, profile.Provider, encrypted, now, now); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// GetProfile returns the profile linked for userID and provider
func (s *SQLStorage) GetProfile(ctx context.Context, userID, provider string) (*LinkedProfile, error) {
	query := s.db.Rebind(`SELECT user_id, provider, data, first_seen, updated_at FROM profiles WHERE user_id = ? AND provider = ?`)

	var row profileRow
	if err := s.db.GetContext(ctx, &row, query, userID, provider); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	decrypted, err := s.encryptor.Decrypt(row.Data)
	if err != nil {
		return nil, fmt.Errorf("decrypt profile: %w", err)
	}
	var p idp.Profile
	if err := json.Unmarshal([]byte(decrypted), &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}

	return &LinkedProfile{
		UserID:    row.UserID,
		Provider:  row.Provider,
		Profile:   p,
		FirstSeen: time.UnixMilli(row.FirstSeen),
		UpdatedAt: time.UnixMilli(row.UpdatedAt),
	}, nil
}

// CreateSession stores a new session
func (s *SQLStorage) CreateSession(ctx context.Context, session Session) error {
	query := s.db.Rebind(`INSERT INTO sessions (id, user_id, provider, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.Provider,
		session.CreatedAt.UnixMilli(), session.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns a live session
func (s *SQLStorage) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	query := s.db.Rebind(`SELECT id, user_id, provider, created_at, expires_at FROM sessions WHERE id = ?`)

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	session := &Session{
		ID:        row.ID,
		UserID:    row.UserID,
		Provider:  row.Provider,
		CreatedAt: time.UnixMilli(row.CreatedAt),
		ExpiresAt: time.UnixMilli(row.ExpiresAt),
	}
	if session.IsExpired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// RevokeSession deletes a session
func (s *SQLStorage) RevokeSession(ctx context.Context, sessionID string) error {
	query := s.db.Rebind(`DELETE FROM sessions WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// CleanupExpired removes expired sessions and pending states
func (s *SQLStorage) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now().UnixMilli()
	total := 0
	for _, table := range []string{"sessions", "pending_auth"} {
		query := s.db.Rebind(`DELETE FROM ` + table + ` WHERE expires_at <= ?`)
		res, err := s.db.ExecContext(ctx, query, now)
		if err != nil {
			return total, fmt.Errorf("cleanup %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += int(n)
		}
	}
	return total, nil
}

// Close closes the database pool
func (s *SQLStorage) Close() error {
	return s.db.Close()
}
