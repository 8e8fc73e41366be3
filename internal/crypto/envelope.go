// Package crypto implements envelope encryption for message content at rest.
// Each message body is sealed independently with a versioned symmetric key;
// the stored blob is base64([keyVersion:1][nonce:12][tag:16][ciphertext]).
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyVersion is the only key version currently supported. Decrypting a blob
// with any other version byte is a hard failure; there is no rotation path.
const KeyVersion = 1

const (
	nonceSize  = chacha20poly1305.NonceSize
	tagSize    = chacha20poly1305.Overhead
	headerSize = 1 + nonceSize + tagSize
)

// ErrDecryption is returned when a blob is malformed, carries an unsupported
// key version, or fails authentication.
var ErrDecryption = errors.New("message decryption failed")

// Envelope seals and opens message bodies. A zero-key envelope is disabled:
// messaging keeps working and content is stored as plaintext, flagged
// unencrypted. Construct once at startup and pass by reference.
type Envelope struct {
	aead cipher.AEAD
}

// NewEnvelope builds an envelope from a 32-byte key. An empty key yields a
// disabled envelope rather than an error.
func NewEnvelope(key []byte) (*Envelope, error) {
	if len(key) == 0 {
		return &Envelope{}, nil
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("creating message cipher: %w", err)
	}
	return &Envelope{aead: aead}, nil
}

// Enabled reports whether a key is configured.
func (e *Envelope) Enabled() bool {
	return e.aead != nil
}

// Encrypt seals plaintext into a storable blob.
func (e *Envelope) Encrypt(plaintext string) (string, error) {
	if e.aead == nil {
		return "", errors.New("encryption key not configured")
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := e.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, headerSize+len(ct))
	blob = append(blob, KeyVersion)
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. All failure modes collapse into
// ErrDecryption so callers can redact uniformly.
func (e *Envelope) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: not base64", ErrDecryption)
	}
	if len(raw) < headerSize {
		return "", fmt.Errorf("%w: blob too short", ErrDecryption)
	}
	if raw[0] != KeyVersion {
		return "", fmt.Errorf("%w: unsupported key version %d", ErrDecryption, raw[0])
	}
	if e.aead == nil {
		return "", fmt.Errorf("%w: no key configured", ErrDecryption)
	}

	nonce := raw[1 : 1+nonceSize]
	tag := raw[1+nonceSize : headerSize]
	ct := raw[headerSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}
	return string(plaintext), nil
}

// IsEncrypted sniffs whether stored content looks like an envelope blob.
// Legacy rows written before encryption was enabled are plain text; the read
// path uses this to avoid decrypting them.
func IsEncrypted(content string) bool {
	if len(content) < base64.StdEncoding.EncodedLen(headerSize) {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return false
	}
	return len(raw) >= headerSize && raw[0] == KeyVersion
}
