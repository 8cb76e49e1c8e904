package secrets

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDecryptorRequiresPassphrase(t *testing.T) {
	_, err := NewDecryptor("", "salt")
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	d, err := NewDecryptor("correct horse battery staple", "channelsync")
	require.NoError(t, err)

	blob, err := d.Encrypt("shpat_0123456789abcdef")
	require.NoError(t, err)
	assert.NotContains(t, blob, "shpat_", "ciphertext must not leak the token")

	plain, err := d.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "shpat_0123456789abcdef", plain)
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	d, err := NewDecryptor("correct horse battery staple", "channelsync")
	require.NoError(t, err)

	tests := []struct {
		name string
		blob string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("tiny"))},
		{"garbage payload", base64.StdEncoding.EncodeToString(make([]byte, 64))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decrypt(tt.blob)
			assert.ErrorIs(t, err, ErrMalformedCiphertext)
		})
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	a, err := NewDecryptor("passphrase-a", "salt")
	require.NoError(t, err)
	b, err := NewDecryptor("passphrase-b", "salt")
	require.NoError(t, err)

	blob, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(blob)
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestSaltChangesDerivedKey(t *testing.T) {
	a, err := NewDecryptor("passphrase", "salt-a")
	require.NoError(t, err)
	b, err := NewDecryptor("passphrase", "salt-b")
	require.NoError(t, err)

	blob, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(blob)
	assert.Error(t, err)
}
