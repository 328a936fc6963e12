package pii

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// AlgAES256GCM is the only envelope algorithm this deployment produces.
const AlgAES256GCM = "aes-256-gcm"

// ErrDecrypt indicates a malformed envelope or a key mismatch. It is
// fatal for the record being shaped; callers must not degrade it to a
// null field, that would hide an integrity problem.
var ErrDecrypt = errors.New("pii: decrypt failed")

// Decryptor opens envelopes. A nil envelope opens to nil, not an error.
type Decryptor interface {
	Open(env *Envelope) (*string, error)
}

// Cipher is the symmetric primitive backing Decryptor. Intake clients
// encrypt before submission; inside the backend Seal is only used by the
// seeder and by tests.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a hex-encoded 256-bit key.
func NewCipher(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("pii: decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("pii: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("pii: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("pii: new gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Open decrypts an envelope. A nil envelope yields a nil plaintext.
func (c *Cipher) Open(env *Envelope) (*string, error) {
	if env == nil {
		return nil, nil
	}
	if env.Alg != AlgAES256GCM {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrDecrypt, env.Alg)
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrDecrypt, err)
	}
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return nil, fmt.Errorf("%w: tag: %v", ErrDecrypt, err)
	}
	data, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrDecrypt, err)
	}
	if len(iv) != c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad iv length %d", ErrDecrypt, len(iv))
	}
	plain, err := c.aead.Open(nil, iv, append(data, tag...), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	s := string(plain)
	return &s, nil
}

// Seal encrypts plaintext into a fresh envelope.
func (c *Cipher) Seal(plaintext string) (*Envelope, error) {
	iv := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("pii: seal iv: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	tagSize := c.aead.Overhead()
	data, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return &Envelope{
		Alg:  AlgAES256GCM,
		IV:   base64.StdEncoding.EncodeToString(iv),
		Tag:  base64.StdEncoding.EncodeToString(tag),
		Data: base64.StdEncoding.EncodeToString(data),
	}, nil
}
