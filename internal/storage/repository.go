// Package storage persists the tracker's state in SQLite and provides the
// transactional unit of work the distribution engine runs inside.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sahod/internal/core"

	_ "modernc.org/sqlite"
)

// Repository wraps the SQLite database. One instance is shared by the API
// server and the export worker.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the database at dbPath and runs
// pending migrations.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a new user and fills in its generated ID.
func (r *Repository) CreateUser(ctx context.Context, u *core.User) error {
	u.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, display_name, created_at)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		u.Email, u.PasswordHash, u.DisplayName, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (*core.User, error) {
	u := core.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, display_name, created_at
		 FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

func (r *Repository) UserByID(ctx context.Context, id int64) (*core.User, error) {
	u := core.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, display_name, created_at
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// CreateRefreshToken stores the hash of a refresh token.
func (r *Repository) CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?)`,
		userID, tokenHash, expiresAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken revokes the token and returns the owning user id. An
// unknown, expired or already-revoked token yields core.ErrNotFound.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, tokenHash string) (int64, error) {
	var userID int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ?
		 WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > ?
		 RETURNING user_id`,
		time.Now().UTC(), tokenHash, time.Now().UTC(),
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("consume refresh token: %w", err)
	}
	return userID, nil
}

// RevokeUserTokens invalidates all of a user's refresh tokens (logout).
func (r *Repository) RevokeUserTokens(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}
