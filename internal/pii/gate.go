package pii

import (
	"fmt"

	"github.com/meridian-aid/meridian-aid/internal/rbac"
)

// Gate decides, from the resolved role set, whether a caller sees
// decrypted plaintext beside the ciphertext envelopes. The decision is a
// pure function of roles; it never varies per row or per field.
type Gate struct {
	dec Decryptor
}

// NewGate constructs a Gate over the decrypt primitive.
func NewGate(dec Decryptor) Gate {
	return Gate{dec: dec}
}

// CanDecrypt reports whether the role set may see plaintext PII. Only
// the admin tier qualifies; sync pull applies the same gating.
func (Gate) CanDecrypt(roles []string) bool {
	return rbac.IsAdminTier(roles)
}

// Shape returns the wire form of one record's PII. The envelope map is
// always populated, decrypted or not; plaintext is only present when
// canDecrypt is true. A decrypt failure on any field aborts the record.
func (g Gate) Shape(fields Fields, canDecrypt bool) (enc map[string]*Envelope, plain map[string]*string, err error) {
	enc = make(map[string]*Envelope, len(fields))
	for name, env := range fields {
		enc[name] = env
	}
	if !canDecrypt {
		return enc, nil, nil
	}
	plain = make(map[string]*string, len(fields))
	for name, env := range fields {
		value, err := g.dec.Open(env)
		if err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", name, err)
		}
		plain[name] = value
	}
	return enc, plain, nil
}
