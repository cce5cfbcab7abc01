package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/credkit/pkg/otp"
	"github.com/dmitrymomot/credkit/pkg/pg"
)

// ChallengeStore adapts Store to otp.Store.
type ChallengeStore struct {
	s *Store
}

var _ otp.Store = ChallengeStore{}

// Challenges returns the otp.Store view of s.
func (s *Store) Challenges() ChallengeStore { return ChallengeStore{s: s} }

// Issue closes every open challenge for the pair and inserts ch. The
// advisory lock serializes concurrent issues for the same pair across
// processes.
func (c ChallengeStore) Issue(ctx context.Context, ch *otp.Challenge) error {
	id, ok := parseID(ch.ID)
	if !ok {
		return errors.New("pgstore: invalid challenge id")
	}
	uid, ok := parseID(ch.UserID)
	if !ok {
		return otp.ErrChallengeNotFound
	}

	return pg.WithTx(ctx, c.s.db, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
			ch.UserID+":"+string(ch.Purpose),
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE otp_challenges SET used = TRUE
			WHERE user_id = $1 AND purpose = $2 AND NOT used AND expires_at >= $3`,
			uid, string(ch.Purpose), ch.CreatedAt,
		); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO otp_challenges (id, user_id, purpose, code_hash, expires_at, used, attempts, created_at)
			VALUES ($1, $2, $3, $4, $5, FALSE, 0, $6)`,
			id, uid, string(ch.Purpose), ch.CodeHash, ch.ExpiresAt, ch.CreatedAt,
		)
		return err
	})
}

func (c ChallengeStore) Latest(ctx context.Context, userID string, purpose otp.Purpose) (*otp.Challenge, error) {
	uid, ok := parseID(userID)
	if !ok {
		return nil, otp.ErrChallengeNotFound
	}

	var ch otp.Challenge
	var p string
	err := c.s.db.QueryRow(ctx, `
		SELECT id::text, user_id::text, purpose, code_hash, expires_at, used, attempts, created_at
		FROM otp_challenges
		WHERE user_id = $1 AND purpose = $2 AND NOT used
		ORDER BY created_at DESC
		LIMIT 1`, uid, string(purpose),
	).Scan(&ch.ID, &ch.UserID, &p, &ch.CodeHash, &ch.ExpiresAt, &ch.Used, &ch.Attempts, &ch.CreatedAt)
	if pg.IsNotFoundError(err) {
		return nil, otp.ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	ch.Purpose = otp.Purpose(p)
	return &ch, nil
}

// IncrementAttempts is one conditional update; losing the condition means
// another verifier consumed or exhausted the challenge first.
func (c ChallengeStore) IncrementAttempts(ctx context.Context, id string, limit int) (int, error) {
	cid, ok := parseID(id)
	if !ok {
		return 0, otp.ErrChallengeNotFound
	}

	var attempts int
	err := c.s.db.QueryRow(ctx, `
		UPDATE otp_challenges SET attempts = attempts + 1
		WHERE id = $1 AND NOT used AND attempts < $2
		RETURNING attempts`, cid, limit,
	).Scan(&attempts)
	if pg.IsNotFoundError(err) {
		return 0, otp.ErrStale
	}
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (c ChallengeStore) MarkUsed(ctx context.Context, id string) error {
	cid, ok := parseID(id)
	if !ok {
		return otp.ErrChallengeNotFound
	}
	tag, err := c.s.db.Exec(ctx, `UPDATE otp_challenges SET used = TRUE WHERE id = $1 AND NOT used`, cid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return otp.ErrStale
	}
	return nil
}

// DeleteByUser is normally redundant with the users cascade but keeps the
// contract for callers that discard challenges of a live user.
func (c ChallengeStore) DeleteByUser(ctx context.Context, userID string) error {
	uid, ok := parseID(userID)
	if !ok {
		return nil
	}
	_, err := c.s.db.Exec(ctx, `DELETE FROM otp_challenges WHERE user_id = $1`, uid)
	return err
}

// DeleteExpired never waits on locks held by live verifications: rows being
// updated are skipped and picked up by a later sweep.
func (c ChallengeStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := c.s.db.Exec(ctx, `
		DELETE FROM otp_challenges
		WHERE id IN (
			SELECT id FROM otp_challenges
			WHERE expires_at < $1
			FOR UPDATE SKIP LOCKED
		)`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
