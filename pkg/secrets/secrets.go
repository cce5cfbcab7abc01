package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	envelopeVersion = 0x01
	headerSize      = 2
	nonceSize       = 12
	tagSize         = 16
	minEnvelope     = headerSize + nonceSize + tagSize

	// DefaultContext is the HKDF info used when no context is configured.
	DefaultContext = "credkit/documents/v1"

	// Method names the scheme stored alongside document records.
	Method = "aes-256-gcm"
)

// Cipher seals and opens byte payloads. It is safe for concurrent use.
type Cipher struct {
	keys Keyring
	info string
}

// CipherOption configures a Cipher.
type CipherOption func(*Cipher)

// WithContext sets the HKDF info string. Ciphertexts produced under one
// context do not open under another.
func WithContext(info string) CipherOption {
	return func(c *Cipher) {
		if info != "" {
			c.info = info
		}
	}
}

// NewCipher creates a Cipher over keys.
func NewCipher(keys Keyring, opts ...CipherOption) *Cipher {
	c := &Cipher{keys: keys, info: DefaultContext}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt seals plaintext under the current key.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	key, err := c.keys.Current()
	if err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}

	aead, err := c.aead(key)
	if err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}

	out := make([]byte, headerSize+nonceSize, headerSize+nonceSize+len(plaintext)+tagSize)
	out[0] = envelopeVersion
	out[1] = key.ID
	nonce := out[headerSize:]
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}

	return aead.Seal(out, nonce, plaintext, out[:headerSize]), nil
}

// Decrypt opens an envelope produced by Encrypt. Every failure returns an
// error wrapping ErrDecryptionFailed.
func (c *Cipher) Decrypt(envelope []byte) ([]byte, error) {
	if len(envelope) < minEnvelope {
		return nil, errors.Join(ErrDecryptionFailed, ErrInvalidCiphertext)
	}
	if envelope[0] != envelopeVersion {
		return nil, errors.Join(ErrDecryptionFailed, ErrInvalidCiphertext)
	}

	key, err := c.keys.Lookup(envelope[1])
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}

	aead, err := c.aead(key)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}

	header := envelope[:headerSize]
	nonce := envelope[headerSize : headerSize+nonceSize]
	sealed := envelope[headerSize+nonceSize:]

	plaintext, err := aead.Open(nil, nonce, sealed, header)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// EncryptString seals s and returns standard base64.
func (c *Cipher) EncryptString(s string) (string, error) {
	sealed, err := c.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func (c *Cipher) DecryptString(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", errors.Join(ErrDecryptionFailed, ErrInvalidCiphertext, err)
	}
	plain, err := c.Decrypt(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (c *Cipher) aead(key Key) (cipher.AEAD, error) {
	if len(key.Material) != KeySize {
		return nil, ErrInvalidKey
	}
	derived, err := deriveKey(key.Material, c.info)
	if err != nil {
		return nil, err
	}
	defer clearBytes(derived)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

var (
	ownerTagSanitizer = regexp.MustCompile(`[^a-z0-9-]+`)
	storageIDPattern  = regexp.MustCompile(`^[a-z0-9-]{1,36}_[0-9]+_[0-9a-f]{32}\.enc$`)
)

const maxOwnerTag = 36

// GenerateStorageID returns a blob name of the form
// <owner-tag>_<unix-hour>_<32 hex>.enc. Nothing in it comes from a file name.
func GenerateStorageID(owner string, now time.Time) (string, error) {
	tag := ownerTagSanitizer.ReplaceAllString(strings.ToLower(owner), "")
	if len(tag) > maxOwnerTag {
		tag = tag[:maxOwnerTag]
	}
	if tag == "" {
		tag = "anon"
	}

	var suffix [16]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", errors.Join(ErrFailedToGenerateID, err)
	}

	return fmt.Sprintf("%s_%d_%s.enc", tag, now.Unix()/3600, hex.EncodeToString(suffix[:])), nil
}

// ValidStorageID reports whether id has the shape GenerateStorageID produces.
func ValidStorageID(id string) bool {
	return storageIDPattern.MatchString(id)
}
