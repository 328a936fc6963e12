package pii

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKeyHex)
	require.NoError(t, err)

	env, err := c.Seal("1993-04-12")
	require.NoError(t, err)
	assert.Equal(t, AlgAES256GCM, env.Alg)

	got, err := c.Open(env)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1993-04-12", *got)
}

func TestCipherOpenNil(t *testing.T) {
	c, err := NewCipher(testKeyHex)
	require.NoError(t, err)

	got, err := c.Open(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCipherOpenTamperedFails(t *testing.T) {
	c, err := NewCipher(testKeyHex)
	require.NoError(t, err)

	env, err := c.Seal("secret")
	require.NoError(t, err)
	env.Data = "QUJDREVGR0g=" // unrelated ciphertext

	_, err = c.Open(env)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestCipherOpenUnsupportedAlg(t *testing.T) {
	c, err := NewCipher(testKeyHex)
	require.NoError(t, err)

	env, err := c.Seal("secret")
	require.NoError(t, err)
	env.Alg = "chacha20-poly1305"

	_, err = c.Open(env)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewCipherRejectsBadKeys(t *testing.T) {
	_, err := NewCipher("zz")
	assert.Error(t, err)

	_, err = NewCipher("abcd")
	assert.Error(t, err)
}
