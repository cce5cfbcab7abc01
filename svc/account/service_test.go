package account_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/credkit/core"
	"github.com/dmitrymomot/credkit/pkg/jwt"
	"github.com/dmitrymomot/credkit/pkg/otp"
	"github.com/dmitrymomot/credkit/pkg/password"
	"github.com/dmitrymomot/credkit/pkg/secrets"
	"github.com/dmitrymomot/credkit/svc/account"
	"github.com/dmitrymomot/credkit/svc/memstore"
)

const strongPassword = "SecurePass123"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type outbox struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
	err   error
}

func (o *outbox) SendCode(_ context.Context, d account.Delivery) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent++
	o.codes[d.Email+"/"+string(d.Purpose)] = d.Code
	return o.err
}

func (o *outbox) code(t *testing.T, email string, purpose otp.Purpose) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	code, ok := o.codes[email+"/"+string(purpose)]
	require.True(t, ok, "no %s code for %s", purpose, email)
	return code
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent
}

type harness struct {
	svc        *account.Service
	store      *memstore.Store
	challenges *otp.MemoryStore
	tokens *jwt.Service
	cipher *secrets.Cipher
	outbox *outbox
	clock  *clock
}

func newHarness(t *testing.T, opts ...account.Option) *harness {
	t.Helper()

	c := &clock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	store := memstore.New()

	challengeStore := otp.NewMemoryStore(c.Now)
	challenges, err := otp.NewManager(challengeStore, otp.Config{Pepper: "test-pepper"}, otp.WithClock(c.Now))
	require.NoError(t, err)

	signing, err := jwt.NewStaticKeys("k1", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	tokens, err := jwt.New(signing, jwt.WithClock(c.Now), jwt.WithIssuer("credkit"))
	require.NoError(t, err)

	master, err := secrets.GenerateKey()
	require.NoError(t, err)
	keyring, err := secrets.NewStaticKeyring(1, master)
	require.NoError(t, err)
	cipher := secrets.NewCipher(keyring, secrets.WithContext(account.TOTPSecretContext))

	box := &outbox{codes: make(map[string]string)}

	svc, err := account.New(account.Deps{
		Users:       store,
		Enrollments: store,
		Challenges:  challenges,
		Hasher: password.MustNew(password.WithParams(password.Params{
			Time: 1, MemoryKiB: 1024, Threads: 1, SaltLen: 16, KeyLen: 32,
		})),
		Tokens:   tokens,
		Secrets:  cipher,
		Notifier: box,
	}, account.Config{}, append([]account.Option{
		account.WithClock(c.Now),
		account.WithSynchronousNotify(),
	}, opts...)...)
	require.NoError(t, err)

	return &harness{svc: svc, store: store, challenges: challengeStore, tokens: tokens, cipher: cipher, outbox: box, clock: c}
}

// registerVerified creates a verified user and returns its id.
func (h *harness) registerVerified(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()

	u, err := h.svc.Register(ctx, account.RegisterInput{Email: email, Password: strongPassword, FullName: "Test User"})
	require.NoError(t, err)

	_, err = h.svc.VerifyEmail(ctx, email, h.outbox.code(t, email, otp.PurposeRegistration))
	require.NoError(t, err)
	return u.ID
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := account.New(account.Deps{}, account.Config{})
	assert.ErrorIs(t, err, account.ErrMissingDependency)
}

func TestRegisterAndVerifyEmail(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.Register(ctx, account.RegisterInput{
		Email:    "  Jane@Example.com ",
		Password: strongPassword,
		FullName: "Jane Doe",
		Role:     account.RoleRecruiter,
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsVerified)
	assert.NotContains(t, u.PasswordHash, strongPassword)

	code := h.outbox.code(t, "jane@example.com", otp.PurposeRegistration)
	pair, err := h.svc.VerifyEmail(ctx, "JANE@example.com", code)
	require.NoError(t, err)

	claims, err := h.tokens.Verify(pair.AccessToken, jwt.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.Equal(t, "recruiter", claims.Role)

	_, err = h.svc.VerifyEmail(ctx, "jane@example.com", code)
	assert.ErrorIs(t, err, core.ErrAlreadyVerified)

	err = h.svc.ResendVerification(ctx, "jane@example.com")
	assert.ErrorIs(t, err, core.ErrAlreadyVerified)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, account.RegisterInput{Email: "dup@example.com", Password: strongPassword, FullName: "A"})
	require.NoError(t, err)

	_, err = h.svc.Register(ctx, account.RegisterInput{Email: "DUP@example.com", Password: strongPassword, FullName: "B"})
	assert.ErrorIs(t, err, core.ErrEmailTaken)
	assert.Equal(t, core.KindConflict, core.KindOf(err))
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    account.RegisterInput
		field string
	}{
		{"bad email", account.RegisterInput{Email: "nope", Password: strongPassword, FullName: "A"}, "email"},
		{"short password", account.RegisterInput{Email: "a@example.com", Password: "Ab1", FullName: "A"}, "password"},
		{"password without digit", account.RegisterInput{Email: "a@example.com", Password: "SecurePassword", FullName: "A"}, "password"},
		{"missing name", account.RegisterInput{Email: "a@example.com", Password: strongPassword, FullName: " "}, "full_name"},
		{"admin signup", account.RegisterInput{Email: "a@example.com", Password: strongPassword, FullName: "A", Role: account.RoleAdmin}, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			_, err := h.svc.Register(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, core.KindValidation, core.KindOf(err))

			var verr core.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr, tt.field)
			assert.Zero(t, h.outbox.count())
		})
	}
}

func TestVerifyEmailAttempts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, account.RegisterInput{Email: "a@example.com", Password: strongPassword, FullName: "A"})
	require.NoError(t, err)
	code := h.outbox.code(t, "a@example.com", otp.PurposeRegistration)

	_, err = h.svc.VerifyEmail(ctx, "a@example.com", "000000x")
	require.ErrorIs(t, err, core.ErrInvalidCode)
	var cerr *core.Error
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Message, "2 attempts remaining")

	for range 2 {
		_, err = h.svc.VerifyEmail(ctx, "a@example.com", "wrong")
		require.ErrorIs(t, err, core.ErrInvalidCode)
	}

	_, err = h.svc.VerifyEmail(ctx, "a@example.com", code)
	assert.ErrorIs(t, err, core.ErrAttemptsExhausted)

	_, err = h.svc.VerifyEmail(ctx, "a@example.com", code)
	assert.ErrorIs(t, err, core.ErrNoChallenge)
}

func TestVerifyEmailExpired(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, account.RegisterInput{Email: "a@example.com", Password: strongPassword, FullName: "A"})
	require.NoError(t, err)
	code := h.outbox.code(t, "a@example.com", otp.PurposeRegistration)

	h.clock.Advance(5*time.Minute + time.Second)
	_, err = h.svc.VerifyEmail(ctx, "a@example.com", code)
	assert.ErrorIs(t, err, core.ErrCodeExpired)
}

func TestVerifyEmailUnknownAddress(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.svc.VerifyEmail(context.Background(), "ghost@example.com", "123456")
	assert.ErrorIs(t, err, core.ErrNoChallenge)
}

func TestResendInvalidatesPreviousCode(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, account.RegisterInput{Email: "a@example.com", Password: strongPassword, FullName: "A"})
	require.NoError(t, err)
	first := h.outbox.code(t, "a@example.com", otp.PurposeRegistration)

	h.clock.Advance(time.Second)
	require.NoError(t, h.svc.ResendVerification(ctx, "a@example.com"))
	second := h.outbox.code(t, "a@example.com", otp.PurposeRegistration)

	if first != second {
		_, err = h.svc.VerifyEmail(ctx, "a@example.com", first)
		require.ErrorIs(t, err, core.ErrInvalidCode)
	}
	_, err = h.svc.VerifyEmail(ctx, "a@example.com", second)
	assert.NoError(t, err)

	assert.NoError(t, h.svc.ResendVerification(ctx, "ghost@example.com"))
}

func TestLogin(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := h.registerVerified(t, "a@example.com")

	res, err := h.svc.Login(ctx, "A@example.com", strongPassword)
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	assert.False(t, res.TOTPRequired)

	claims, err := h.tokens.Verify(res.Tokens.RefreshToken, jwt.KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.Subject)

	_, errWrong := h.svc.Login(ctx, "a@example.com", "WrongPass123")
	_, errUnknown := h.svc.Login(ctx, "ghost@example.com", strongPassword)
	assert.ErrorIs(t, errWrong, core.ErrInvalidCredential)
	assert.ErrorIs(t, errUnknown, core.ErrInvalidCredential)
	assert.Equal(t, core.Public(errWrong), core.Public(errUnknown))
}

func TestLoginAccountStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, account.RegisterInput{Email: "new@example.com", Password: strongPassword, FullName: "N"})
	require.NoError(t, err)
	_, err = h.svc.Login(ctx, "new@example.com", strongPassword)
	assert.ErrorIs(t, err, core.ErrEmailNotVerified)

	id := h.registerVerified(t, "a@example.com")

	require.NoError(t, h.store.SetStatus(ctx, id, true, true))
	_, err = h.svc.Login(ctx, "a@example.com", strongPassword)
	assert.ErrorIs(t, err, core.ErrAccountSuspended)

	require.NoError(t, h.store.SetStatus(ctx, id, false, false))
	_, err = h.svc.Login(ctx, "a@example.com", strongPassword)
	assert.ErrorIs(t, err, core.ErrAccountInactive)
	assert.Equal(t, core.KindForbidden, core.KindOf(err))
}

func TestLoginUpgradesOldDigest(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	id := h.registerVerified(t, "a@example.com")

	weak := password.MustNew(password.WithParams(password.Params{Time: 1, MemoryKiB: 512, Threads: 1, SaltLen: 16, KeyLen: 32}))
	old, err := weak.Hash(strongPassword)
	require.NoError(t, err)
	require.NoError(t, h.store.UpdatePassword(ctx, id, old, h.clock.Now()))

	_, err = h.svc.Login(ctx, "a@example.com", strongPassword)
	require.NoError(t, err)

	u, err := h.store.UserByID(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, old, u.PasswordHash)
	assert.Contains(t, u.PasswordHash, "m=1024")
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	id := h.registerVerified(t, "a@example.com")

	res, err := h.svc.Login(ctx, "a@example.com", strongPassword)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	pair, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.AccessToken, pair.AccessToken)

	_, err = h.svc.Refresh(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	_, err = h.svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	require.NoError(t, h.store.SetStatus(ctx, id, true, true))
	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	require.NoError(t, h.store.DeleteUser(ctx, id))
	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.registerVerified(t, "a@example.com")
	sent := h.outbox.count()

	require.NoError(t, h.svc.RequestPasswordReset(ctx, "ghost@example.com"))
	assert.Equal(t, sent, h.outbox.count())

	require.NoError(t, h.svc.RequestPasswordReset(ctx, "a@example.com"))
	code := h.outbox.code(t, "a@example.com", otp.PurposePasswordReset)

	err := h.svc.ConfirmPasswordReset(ctx, "a@example.com", code, "weak")
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	require.NoError(t, h.svc.ConfirmPasswordReset(ctx, "a@example.com", code, "NewSecure456"))

	_, err = h.svc.Login(ctx, "a@example.com", strongPassword)
	assert.ErrorIs(t, err, core.ErrInvalidCredential)
	_, err = h.svc.Login(ctx, "a@example.com", "NewSecure456")
	assert.NoError(t, err)

	err = h.svc.ConfirmPasswordReset(ctx, "a@example.com", code, "Another789x")
	assert.ErrorIs(t, err, core.ErrNoChallenge)
}

func TestMe(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.registerVerified(t, "a@example.com")

	u, err := h.svc.Me(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
	assert.True(t, u.IsVerified)
	assert.False(t, u.TOTPEnabled)

	_, err = h.svc.Me(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteAccount(t *testing.T) {
	t.Parallel()

	var hooked []string
	h := newHarness(t, account.WithDeleteHook(func(_ context.Context, userID string) error {
		hooked = append(hooked, userID)
		return nil
	}))
	ctx := context.Background()
	id := h.registerVerified(t, "a@example.com")

	err := h.svc.DeleteAccount(ctx, id, "WrongPass123")
	assert.ErrorIs(t, err, core.ErrInvalidCredential)
	assert.Empty(t, hooked)

	require.NoError(t, h.svc.DeleteAccount(ctx, id, strongPassword))
	assert.Equal(t, []string{id}, hooked)

	_, err = h.store.UserByID(ctx, id)
	assert.ErrorIs(t, err, account.ErrUserNotFound)
}

func TestDeleteAccountDiscardsChallenges(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	id := h.registerVerified(t, "a@example.com")
	h.registerVerified(t, "b@example.com")

	require.NoError(t, h.svc.RequestPasswordReset(ctx, "a@example.com"))
	require.NoError(t, h.svc.RequestPasswordReset(ctx, "b@example.com"))
	before := h.challenges.Len()

	require.NoError(t, h.svc.DeleteAccount(ctx, id, strongPassword))

	// The registration and reset challenges of the deleted user are gone.
	assert.Equal(t, before-2, h.challenges.Len())

	// Other users keep theirs.
	require.NoError(t, h.svc.ConfirmPasswordReset(ctx, "b@example.com",
		h.outbox.code(t, "b@example.com", otp.PurposePasswordReset), "NewSecure456"))
}

func TestDeleteAccountHookFailureAborts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, account.WithDeleteHook(func(context.Context, string) error {
		return errors.New("blob store down")
	}))
	ctx := context.Background()
	id := h.registerVerified(t, "a@example.com")

	err := h.svc.DeleteAccount(ctx, id, strongPassword)
	assert.Equal(t, core.KindInternal, core.KindOf(err))

	_, err = h.store.UserByID(ctx, id)
	assert.NoError(t, err)
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.outbox.err = errors.New("smtp down")

	_, err := h.svc.Register(context.Background(), account.RegisterInput{Email: "a@example.com", Password: strongPassword, FullName: "A"})
	assert.NoError(t, err)
}

func TestAsynchronousNotify(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now()}
	store := memstore.New()
	challenges, err := otp.NewManager(otp.NewMemoryStore(c.Now), otp.Config{})
	require.NoError(t, err)
	signing, err := jwt.NewStaticKeys("k1", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	tokens, err := jwt.New(signing)
	require.NoError(t, err)
	master, err := secrets.GenerateKey()
	require.NoError(t, err)
	keyring, err := secrets.NewStaticKeyring(1, master)
	require.NoError(t, err)

	box := &outbox{codes: make(map[string]string)}
	svc, err := account.New(account.Deps{
		Users:       store,
		Enrollments: store,
		Challenges:  challenges,
		Hasher:      password.MustNew(password.WithParams(password.Params{Time: 1, MemoryKiB: 1024, Threads: 1, SaltLen: 16, KeyLen: 32})),
		Tokens:      tokens,
		Secrets:     secrets.NewCipher(keyring),
		Notifier: account.NotifierFunc(func(ctx context.Context, d account.Delivery) error {
			if _, ok := ctx.Deadline(); !ok {
				return errors.New("delivery without deadline")
			}
			return box.SendCode(ctx, d)
		}),
	}, account.Config{NotifyTimeout: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = svc.Register(ctx, account.RegisterInput{Email: "a@example.com", Password: strongPassword, FullName: "A"})
	require.NoError(t, err)
	cancel()

	svc.Wait()
	assert.Len(t, box.code(t, "a@example.com", otp.PurposeRegistration), 6)
}
