package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/credkit/pkg/pg"
	"github.com/dmitrymomot/credkit/svc/account"
)

var _ account.UserStore = (*Store)(nil)

const userColumns = `id::text, email, password_hash, full_name, role,
	is_active, is_verified, is_suspended, created_at, updated_at`

func scanUser(row pgx.Row) (*account.User, error) {
	var u account.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role,
		&u.IsActive, &u.IsVerified, &u.IsSuspended, &u.CreatedAt, &u.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, account.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *account.User) error {
	id, ok := parseID(u.ID)
	if !ok {
		return fmt.Errorf("create user: invalid id %q", u.ID)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, role,
			is_active, is_verified, is_suspended, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, u.Email, u.PasswordHash, u.FullName, string(u.Role),
		u.IsActive, u.IsVerified, u.IsSuspended, u.CreatedAt, u.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return account.ErrUserExists
	}
	return err
}

func (s *Store) UserByID(ctx context.Context, id string) (*account.User, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, account.ErrUserNotFound
	}
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uid))
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*account.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *Store) MarkVerified(ctx context.Context, id string, at time.Time) error {
	uid, ok := parseID(id)
	if !ok {
		return account.ErrUserNotFound
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET is_verified = TRUE, updated_at = $2
		WHERE id = $1 AND NOT is_verified`, uid, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return s.missOr(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, uid, account.ErrUserNotFound, account.ErrStale)
}

func (s *Store) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	uid, ok := parseID(id)
	if !ok {
		return account.ErrUserNotFound
	}
	tag, err := s.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, uid, hash, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrUserNotFound
	}
	return nil
}

// SetStatus changes the activity flags of a user.
func (s *Store) SetStatus(ctx context.Context, id string, active, suspended bool) error {
	uid, ok := parseID(id)
	if !ok {
		return account.ErrUserNotFound
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET is_active = $2, is_suspended = $3, updated_at = now()
		WHERE id = $1`, uid, active, suspended)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes the user. Challenges, enrollments and documents go
// with it through ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	uid, ok := parseID(id)
	if !ok {
		return account.ErrUserNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrUserNotFound
	}
	return nil
}

// missOr tells a missing row from a lost conditional update.
func (s *Store) missOr(ctx context.Context, existsQuery string, arg any, missing, stale error) error {
	var exists bool
	if err := s.db.QueryRow(ctx, existsQuery, arg).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return missing
	}
	return stale
}
