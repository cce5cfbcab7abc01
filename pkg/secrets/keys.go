package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of master and derived keys.
const KeySize = 32

// Key is versioned master key material.
type Key struct {
	ID       byte
	Material []byte
}

// Keyring resolves master keys. Current is used to seal, Lookup to open.
type Keyring interface {
	Current() (Key, error)
	Lookup(id byte) (Key, error)
}

// StaticKeyring holds one current key and optionally retired ones.
type StaticKeyring struct {
	current byte
	keys    map[byte][]byte
}

// NewStaticKeyring creates a keyring whose current key is material under id.
func NewStaticKeyring(id byte, material []byte) (*StaticKeyring, error) {
	if len(material) != KeySize {
		return nil, ErrInvalidKey
	}
	k := &StaticKeyring{current: id, keys: make(map[byte][]byte, 1)}
	k.keys[id] = clone(material)
	return k, nil
}

// WithRetired adds a key that is only used for decryption.
func (k *StaticKeyring) WithRetired(id byte, material []byte) (*StaticKeyring, error) {
	if len(material) != KeySize {
		return nil, ErrInvalidKey
	}
	if id == k.current {
		return nil, errors.New("secrets: retired key id collides with current key")
	}
	k.keys[id] = clone(material)
	return k, nil
}

// Current implements Keyring.
func (k *StaticKeyring) Current() (Key, error) {
	return Key{ID: k.current, Material: k.keys[k.current]}, nil
}

// Lookup implements Keyring.
func (k *StaticKeyring) Lookup(id byte) (Key, error) {
	m, ok := k.keys[id]
	if !ok {
		return Key{}, ErrUnknownKey
	}
	return Key{ID: id, Material: m}, nil
}

// ParseKey decodes a 32-byte key given as hex, standard base64 or URL-safe
// base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	decoders := []func(string) ([]byte, error){
		hex.DecodeString,
		base64.StdEncoding.DecodeString,
		base64.URLEncoding.DecodeString,
		base64.RawStdEncoding.DecodeString,
		base64.RawURLEncoding.DecodeString,
	}
	for _, decode := range decoders {
		if b, err := decode(s); err == nil && len(b) == KeySize {
			return b, nil
		}
	}
	return nil, ErrInvalidKey
}

// GenerateKey creates a random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// deriveKey expands master into a data key bound to info. The caller clears
// the result with clearBytes.
func deriveKey(master []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, master, nil, []byte(info))
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(r, derived); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	return derived, nil
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func clone(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
