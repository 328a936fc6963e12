// Package pii implements the field-level PII protection gate: the
// ciphertext envelope format, the decrypt primitive and the role-gated
// record shaping used by beneficiary and sync endpoints.
package pii

// Envelope is the structured ciphertext stored in place of plaintext
// PII. All binary members are base64 encoded; the envelope is persisted
// as JSONB and returned to clients verbatim whether or not the caller
// may decrypt.
type Envelope struct {
	Alg  string `json:"alg"`
	IV   string `json:"iv"`
	Tag  string `json:"tag"`
	Data string `json:"data"`
}

// Fields maps PII attribute names (firstName, lastName, dob, nationalId,
// phone, email, address) to their envelopes. A nil envelope means the
// attribute was never captured.
type Fields map[string]*Envelope

// AttributeNames is the fixed set of encrypted beneficiary attributes.
var AttributeNames = []string{
	"firstName",
	"lastName",
	"dob",
	"nationalId",
	"phone",
	"email",
	"address",
}
