package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm tags stored in the digest prefix.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// Params holds Argon2id cost parameters.
type Params struct {
	Time      uint32 `env:"PASSWORD_HASH_TIME" envDefault:"3"`        // Number of passes over memory
	MemoryKiB uint32 `env:"PASSWORD_HASH_MEMORY_KIB" envDefault:"65536"` // Memory cost in KiB
	Threads   uint8  `env:"PASSWORD_HASH_THREADS" envDefault:"2"`      // Degree of parallelism
	SaltLen   uint32 `env:"PASSWORD_HASH_SALT_LEN" envDefault:"16"`    // Random salt length in bytes
	KeyLen    uint32 `env:"PASSWORD_HASH_KEY_LEN" envDefault:"32"`     // Derived key length in bytes
}

// Config is the environment form of the Hasher settings.
type Config struct {
	Params

	// LegacyBcrypt lets accounts imported with bcrypt digests log in; their
	// digests are replaced with Argon2id on the next successful login.
	LegacyBcrypt bool `env:"PASSWORD_LEGACY_BCRYPT" envDefault:"false"`
}

// DefaultParams follows the OWASP baseline for Argon2id.
var DefaultParams = Params{
	Time:      3,
	MemoryKiB: 64 * 1024,
	Threads:   2,
	SaltLen:   16,
	KeyLen:    32,
}

func (p Params) validate() error {
	if p.Time == 0 || p.MemoryKiB < 8*uint32(p.Threads) || p.Threads == 0 || p.SaltLen < 8 || p.KeyLen < 16 {
		return ErrInvalidParameters
	}
	return nil
}

// Hasher hashes and verifies secrets. It is safe for concurrent use.
type Hasher struct {
	params       Params
	legacyBcrypt bool
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithParams overrides the Argon2id cost parameters. New rejects an invalid
// set.
func WithParams(p Params) Option {
	return func(h *Hasher) {
		h.params = p
	}
}

// WithLegacyBcrypt enables verification of bcrypt digests.
func WithLegacyBcrypt(enabled bool) Option {
	return func(h *Hasher) {
		h.legacyBcrypt = enabled
	}
}

// New creates a Hasher with DefaultParams.
func New(opts ...Option) (*Hasher, error) {
	h := &Hasher{params: DefaultParams}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.params.validate(); err != nil {
		return nil, fmt.Errorf("%w: %+v", err, h.params)
	}
	return h, nil
}

// NewFromConfig creates a Hasher from environment settings.
func NewFromConfig(cfg Config, opts ...Option) (*Hasher, error) {
	return New(append([]Option{
		WithParams(cfg.Params),
		WithLegacyBcrypt(cfg.LegacyBcrypt),
	}, opts...)...)
}

// MustNew is New that panics on invalid parameters.
func MustNew(opts ...Option) *Hasher {
	h, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return h
}

// Params returns the parameters used for new digests.
func (h *Hasher) Params() Params { return h.params }

// Hash derives a PHC-encoded Argon2id digest of secret using a random salt.
func (h *Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Join(ErrFailedToHash, ErrFailedToReadSalt, err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLen)

	return encode(h.params, salt, key), nil
}

// Verify reports whether secret matches digest.
func (h *Hasher) Verify(secret, digest string) bool {
	if secret == "" || digest == "" {
		return false
	}

	if isBcrypt(digest) {
		if !h.legacyBcrypt {
			return false
		}
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
	}

	p, salt, key, err := decode(digest)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(secret), salt, p.Time, p.MemoryKiB, p.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1
}

// NeedsRehash reports whether digest was produced with a different algorithm
// or different cost parameters than the ones currently configured.
func (h *Hasher) NeedsRehash(digest string) bool {
	if isBcrypt(digest) {
		return true
	}
	p, salt, key, err := decode(digest)
	if err != nil {
		return true
	}
	return p.Time != h.params.Time ||
		p.MemoryKiB != h.params.MemoryKiB ||
		p.Threads != h.params.Threads ||
		uint32(len(salt)) != h.params.SaltLen ||
		uint32(len(key)) != h.params.KeyLen
}

// Algorithm returns the algorithm tag of digest, or an empty string if it is
// not recognized.
func Algorithm(digest string) string {
	switch {
	case isBcrypt(digest):
		return AlgorithmBcrypt
	case strings.HasPrefix(digest, "$"+AlgorithmArgon2id+"$"):
		return AlgorithmArgon2id
	default:
		return ""
	}
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

var b64 = base64.RawStdEncoding

func encode(p Params, salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		AlgorithmArgon2id,
		argon2.Version,
		p.MemoryKiB, p.Time, p.Threads,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	)
}

func decode(digest string) (Params, []byte, []byte, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != AlgorithmArgon2id {
		return Params{}, nil, nil, ErrInvalidDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, errors.Join(ErrInvalidDigest, err)
	}
	if version != argon2.Version {
		return Params{}, nil, nil, ErrIncompatible
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); err != nil {
		return Params{}, nil, nil, errors.Join(ErrInvalidDigest, err)
	}
	if p.Time == 0 || p.Threads == 0 || p.MemoryKiB == 0 {
		return Params{}, nil, nil, ErrInvalidDigest
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, nil, ErrInvalidDigest
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, ErrInvalidDigest
	}

	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))
	return p, salt, key, nil
}
