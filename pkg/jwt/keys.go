package jwt

import "crypto/subtle"

// MinKeyLength is the minimum HS256 key size in bytes.
const MinKeyLength = 32

// KeyProvider resolves signing material. SigningKey returns the current key
// and its id; VerificationKey resolves the key a token was signed with.
type KeyProvider interface {
	SigningKey() (kid string, key []byte, err error)
	VerificationKey(kid string) ([]byte, error)
}

// StaticKeys serves a single key under a fixed id.
type StaticKeys struct {
	id  string
	key []byte
}

// NewStaticKeys returns a KeyProvider for one key.
func NewStaticKeys(kid string, key []byte) (*StaticKeys, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}
	if len(key) < MinKeyLength {
		return nil, ErrInvalidSigningKey
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return &StaticKeys{id: kid, key: cp}, nil
}

// SigningKey implements KeyProvider.
func (k *StaticKeys) SigningKey() (string, []byte, error) {
	return k.id, k.key, nil
}

// VerificationKey implements KeyProvider.
func (k *StaticKeys) VerificationKey(kid string) ([]byte, error) {
	if subtle.ConstantTimeCompare([]byte(kid), []byte(k.id)) != 1 {
		return nil, ErrUnknownKeyID
	}
	return k.key, nil
}
