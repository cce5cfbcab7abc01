package secrets

import "errors"

var (
	ErrInvalidKey          = errors.New("secrets: key must be 32 bytes")
	ErrUnknownKey          = errors.New("secrets: unknown key id")
	ErrEncryptionFailed    = errors.New("secrets: encryption failed")
	ErrDecryptionFailed    = errors.New("secrets: decryption failed")
	ErrInvalidCiphertext   = errors.New("secrets: invalid ciphertext format")
	ErrKeyDerivationFailed = errors.New("secrets: key derivation failed")
	ErrFailedToGenerateID  = errors.New("secrets: failed to generate storage id")
)
