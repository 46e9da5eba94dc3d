package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kataba/pkg/db"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, login, email, password_hash, created_ts, updated_ts`

type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewRepository(conn *sqlx.DB) *Repository {
	return &Repository{db: conn, now: time.Now}
}

func (r *Repository) CreateUser(ctx context.Context, login string, passwordHash string, email *string) (*WebUser, error) {
	ts := r.now().UnixMilli()
	query := r.db.Rebind(`
		INSERT INTO web_users (login, password_hash, email, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?)
		RETURNING ` + userColumns)

	var row userRow
	err := r.db.GetContext(ctx, &row, query, login, passwordHash, email, ts, ts)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create web user: %w", err)
	}
	return row.toUser(), nil
}

// GetUserByLogin returns nil, nil when no user has that login.
func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*WebUser, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM web_users WHERE login = ?`)
	var row userRow
	err := r.db.GetContext(ctx, &row, query, login)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get web user by login: %w", err)
	}
	return row.toUser(), nil
}

// GetUserByID returns nil, nil when the user does not exist.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*WebUser, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM web_users WHERE id = ?`)
	var row userRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get web user %d: %w", id, err)
	}
	return row.toUser(), nil
}
