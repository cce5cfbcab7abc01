package pgstore_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/credkit/pkg/logger"
	"github.com/dmitrymomot/credkit/pkg/otp"
	"github.com/dmitrymomot/credkit/pkg/pg"
	"github.com/dmitrymomot/credkit/svc/account"
	"github.com/dmitrymomot/credkit/svc/pgstore"
	"github.com/dmitrymomot/credkit/svc/resume"
)

// setupStore connects to TEST_DATABASE_URL and applies the migrations.
// Tests are skipped when the variable is unset or the server is unreachable.
func setupStore(t *testing.T) *pgstore.Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pg.Connect(ctx, pg.Config{ConnectionString: url, RetryAttempts: 1})
	if err != nil {
		t.Skipf("test database unreachable: %v", err)
	}
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pg.Config{}, logger.Discard()))
	return pgstore.New(pool)
}

func createUser(t *testing.T, s *pgstore.Store) *account.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &account.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "$argon2id$stub",
		FullName:     "Test User",
		Role:         account.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestUsers(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := createUser(t, s)

	dup := *u
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), account.ErrUserExists)

	got, err := s.UserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, account.RoleUser, got.Role)

	require.NoError(t, s.MarkVerified(ctx, u.ID, time.Now()))
	assert.ErrorIs(t, s.MarkVerified(ctx, u.ID, time.Now()), account.ErrStale)
	assert.ErrorIs(t, s.MarkVerified(ctx, uuid.NewString(), time.Now()), account.ErrUserNotFound)

	_, err = s.UserByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, account.ErrUserNotFound)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), account.ErrUserNotFound)
}

func TestEnrollments(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := createUser(t, s)

	require.NoError(t, s.SavePending(ctx, &account.Enrollment{UserID: u.ID, Secret: "one", CreatedAt: time.Now()}))
	require.NoError(t, s.SavePending(ctx, &account.Enrollment{UserID: u.ID, Secret: "two", CreatedAt: time.Now()}))
	require.NoError(t, s.Enable(ctx, u.ID, time.Now()))
	assert.ErrorIs(t, s.Enable(ctx, u.ID, time.Now()), account.ErrStale)
	assert.ErrorIs(t, s.SavePending(ctx, &account.Enrollment{UserID: u.ID, Secret: "three", CreatedAt: time.Now()}), account.ErrStale)

	e, err := s.Enrollment(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "two", e.Secret)
	assert.True(t, e.Enabled)
	assert.NotNil(t, e.EnabledAt)

	assert.ErrorIs(t, s.SavePending(ctx, &account.Enrollment{UserID: uuid.NewString(), Secret: "x", CreatedAt: time.Now()}), account.ErrUserNotFound)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.Enrollment(ctx, u.ID)
	assert.ErrorIs(t, err, account.ErrEnrollmentNotFound)
}

func TestDocuments(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := createUser(t, s)

	d := &resume.Document{
		ID:               uuid.NewString(),
		OwnerID:          u.ID,
		OriginalName:     "cv.pdf",
		StorageID:        uuid.NewString() + ".enc",
		Size:             42,
		ContentType:      "application/pdf",
		EncryptionMethod: "aes-256-gcm",
		UploadedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.CreateDocument(ctx, d))

	const n = 16
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RecordAccess(ctx, d.ID, time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.SetVisibility(ctx, d.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.AccessCount)
	assert.True(t, got.IsPublic)
	assert.NotNil(t, got.LastAccessedAt)

	docs, err := s.DocumentsByOwner(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.Document(ctx, d.ID)
	assert.ErrorIs(t, err, resume.ErrDocumentNotFound)
}

func TestChallengesConcurrentVerify(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := createUser(t, s)

	m, err := otp.NewManager(s.Challenges(), otp.Config{MaxAttempts: 3})
	require.NoError(t, err)

	_, _, err = m.Issue(ctx, u.ID, otp.PurposeRegistration)
	require.NoError(t, err)
	code, _, err := m.Issue(ctx, u.ID, otp.PurposeRegistration)
	require.NoError(t, err)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Verify(ctx, u.ID, otp.PurposeRegistration, code)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, otp.ErrNoChallenge) || errors.Is(err, otp.ErrAttemptsExhausted), "unexpected error: %v", err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, successes, 1)

	deleted, err := s.Challenges().DeleteExpired(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(2))
}


func TestChallengesDiscard(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := createUser(t, s)
	other := createUser(t, s)

	m, err := otp.NewManager(s.Challenges(), otp.Config{Pepper: "test-pepper"})
	require.NoError(t, err)

	code, _, err := m.Issue(ctx, u.ID, otp.PurposePasswordReset)
	require.NoError(t, err)
	otherCode, _, err := m.Issue(ctx, other.ID, otp.PurposePasswordReset)
	require.NoError(t, err)

	require.NoError(t, m.Discard(ctx, u.ID))
	require.NoError(t, m.Discard(ctx, "not-a-uuid"))

	assert.ErrorIs(t, m.Verify(ctx, u.ID, otp.PurposePasswordReset, code), otp.ErrNoChallenge)
	assert.NoError(t, m.Verify(ctx, other.ID, otp.PurposePasswordReset, otherCode))
}
