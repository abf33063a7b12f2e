package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "s3cret")

	plain := []byte(`{"version":1,"serial":7}`)
	encrypted, err := EncryptState(plain)
	require.NoError(t, err)

	assert.True(t, IsEncrypted(encrypted))
	assert.NotContains(t, string(encrypted), "serial")

	decrypted, err := DecryptState(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plain, decrypted)
}

func TestEncryptState_NoKeyPassesThrough(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "")

	plain := []byte(`{"version":1}`)
	out, err := EncryptState(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
	assert.False(t, IsEncrypted(out))
}

func TestDecryptState_PlaintextPassesThrough(t *testing.T) {
	plain := []byte(`{"version":1}`)
	out, err := DecryptState(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}

func TestDecryptState_WrongKey(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "first-key")
	encrypted, err := EncryptState([]byte(`{"version":1}`))
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, "other-key")
	_, err = DecryptState(encrypted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong key")
}

func TestDecryptState_MissingKey(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "only-for-encrypt")
	encrypted, err := EncryptState([]byte(`{"version":1}`))
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, "")
	_, err = DecryptState(encrypted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EncryptionKeyEnvVar)
}

func TestEncryptState_UniqueNonces(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "s3cret")

	plain := []byte(`{"version":1}`)
	first, err := EncryptState(plain)
	require.NoError(t, err)
	second, err := EncryptState(plain)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
