package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodec_EmptyPassphrase(t *testing.T) {
	codec, err := NewCodec("")
	assert.Error(t, err)
	assert.Nil(t, codec)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec("test-passphrase")
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "email address", plaintext: "lead@example.com"},
		{name: "multiline body", plaintext: "Hi there,\n\nWe noticed you don't have a website.\n\nBest"},
		{name: "unicode", plaintext: "café ☕ 日本語"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := codec.Encrypt(tt.plaintext)
			require.NoError(t, err)
			assert.NotEqual(t, tt.plaintext, encrypted)

			decrypted, err := codec.Decrypt(encrypted)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, decrypted)
		})
	}
}

func TestCodec_EmptyStringPassesThrough(t *testing.T) {
	codec, err := NewCodec("test-passphrase")
	require.NoError(t, err)

	encrypted, err := codec.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", encrypted)

	decrypted, err := codec.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", decrypted)
}

func TestCodec_NonDeterministic(t *testing.T) {
	codec, err := NewCodec("test-passphrase")
	require.NoError(t, err)

	first, err := codec.Encrypt("lead@example.com")
	require.NoError(t, err)
	second, err := codec.Encrypt("lead@example.com")
	require.NoError(t, err)

	// Fresh nonce per value
	assert.NotEqual(t, first, second)
}

func TestCodec_WrongKeyFails(t *testing.T) {
	codec, err := NewCodec("key-one")
	require.NoError(t, err)
	other, err := NewCodec("key-two")
	require.NoError(t, err)

	encrypted, err := codec.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(encrypted)
	assert.Error(t, err)
}

func TestCodec_GarbageCiphertext(t *testing.T) {
	codec, err := NewCodec("test-passphrase")
	require.NoError(t, err)

	_, err = codec.Decrypt("not base64!!!")
	assert.Error(t, err)

	_, err = codec.Decrypt("YWJj") // valid base64, too short for a nonce
	assert.Error(t, err)
}
