// Package secrets encrypts opaque byte payloads at rest with AES-256-GCM.
//
// The master key is never used directly. A per-purpose data key is derived
// from it with HKDF-SHA-256, using the cipher context (WithContext) as the
// HKDF info, so the same master key can protect resumes and TOTP secrets
// without the two ciphertext domains being interchangeable.
//
// # Envelope
//
// Every ciphertext is self-describing:
//
//	version (1 byte) | key id (1 byte) | nonce (12 bytes) | ciphertext || tag
//
// The two header bytes are authenticated as additional data. The key id lets
// a Keyring hold retired keys for decryption while new data is sealed with
// the current key. Decrypt fails closed: any tampering, truncation or wrong
// key yields ErrDecryptionFailed and never partial plaintext.
//
// # Storage identifiers
//
// GenerateStorageID builds blob names that are unrelated to any user-supplied
// file name: an owner tag, a coarse timestamp and 128 random bits.
//
// # Usage
//
//	keys, err := secrets.NewStaticKeyring(1, masterKey)
//	c := secrets.NewCipher(keys, secrets.WithContext("credkit/resume/v1"))
//	sealed, err := c.Encrypt(fileBytes)
//	plain, err := c.Decrypt(sealed)
package secrets
