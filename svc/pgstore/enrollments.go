package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/credkit/pkg/pg"
	"github.com/dmitrymomot/credkit/svc/account"
)

var _ account.EnrollmentStore = (*Store)(nil)

func (s *Store) Enrollment(ctx context.Context, userID string) (*account.Enrollment, error) {
	uid, ok := parseID(userID)
	if !ok {
		return nil, account.ErrEnrollmentNotFound
	}

	var e account.Enrollment
	err := s.db.QueryRow(ctx, `
		SELECT user_id::text, secret, enabled, created_at, enabled_at
		FROM totp_enrollments WHERE user_id = $1`, uid,
	).Scan(&e.UserID, &e.Secret, &e.Enabled, &e.CreatedAt, &e.EnabledAt)
	if pg.IsNotFoundError(err) {
		return nil, account.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SavePending upserts a disabled enrollment. The conflict update is guarded
// so an enabled enrollment is never overwritten.
func (s *Store) SavePending(ctx context.Context, e *account.Enrollment) error {
	uid, ok := parseID(e.UserID)
	if !ok {
		return account.ErrUserNotFound
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO totp_enrollments (user_id, secret, enabled, created_at, enabled_at)
		VALUES ($1, $2, FALSE, $3, NULL)
		ON CONFLICT (user_id) DO UPDATE
			SET secret = EXCLUDED.secret, created_at = EXCLUDED.created_at
			WHERE NOT totp_enrollments.enabled`,
		uid, e.Secret, e.CreatedAt,
	)
	if pg.IsForeignKeyViolationError(err) {
		return account.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("save enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrStale
	}
	return nil
}

func (s *Store) Enable(ctx context.Context, userID string, at time.Time) error {
	uid, ok := parseID(userID)
	if !ok {
		return account.ErrEnrollmentNotFound
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE totp_enrollments SET enabled = TRUE, enabled_at = $2
		WHERE user_id = $1 AND NOT enabled`, uid, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return s.missOr(ctx, `SELECT EXISTS (SELECT 1 FROM totp_enrollments WHERE user_id = $1)`, uid,
		account.ErrEnrollmentNotFound, account.ErrStale)
}

func (s *Store) DeleteEnrollment(ctx context.Context, userID string) error {
	uid, ok := parseID(userID)
	if !ok {
		return account.ErrEnrollmentNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM totp_enrollments WHERE user_id = $1`, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrEnrollmentNotFound
	}
	return nil
}
