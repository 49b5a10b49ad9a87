package vault_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/voicebridge/internal/vbridged/vault"
)

func TestCipherRoundTrip(t *testing.T) {
	cipher, err := vault.NewCipher(testKey)
	require.NoError(t, err)

	ct, err := cipher.Encrypt("secret-token")
	require.NoError(t, err)

	pt, err := cipher.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", pt)
}

func TestCipherNonceUniqueness(t *testing.T) {
	cipher, err := vault.NewCipher(testKey)
	require.NoError(t, err)

	a, err := cipher.Encrypt("same-plaintext")
	require.NoError(t, err)
	b, err := cipher.Encrypt("same-plaintext")
	require.NoError(t, err)

	assert.False(t, bytes.Equal(a, b), "two encryptions must produce distinct ciphertexts")
}

func TestCipherRejectsTamperedCiphertext(t *testing.T) {
	cipher, err := vault.NewCipher(testKey)
	require.NoError(t, err)

	ct, err := cipher.Encrypt("secret-token")
	require.NoError(t, err)
	ct[len(ct)-1] ^= 0x01

	_, err = cipher.Decrypt(ct)
	assert.ErrorIs(t, err, vault.ErrIntegrity)
}

func TestCipherRejectsWrongKey(t *testing.T) {
	cipher, err := vault.NewCipher(testKey)
	require.NoError(t, err)
	other, err := vault.NewCipher(bytes.Repeat([]byte{0x24}, 32))
	require.NoError(t, err)

	ct, err := cipher.Encrypt("secret-token")
	require.NoError(t, err)

	_, err = other.Decrypt(ct)
	assert.ErrorIs(t, err, vault.ErrIntegrity)
}

func TestNewCipherRejectsShortKey(t *testing.T) {
	_, err := vault.NewCipher([]byte("too short"))
	assert.Error(t, err)
}
