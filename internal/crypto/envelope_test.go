package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(testKey(t))
	require.NoError(t, err)
	require.True(t, env.Enabled())

	for _, plaintext := range []string{
		"",
		"hello",
		"multi\nline\ncontent with unicode ćšđž 👍",
		strings.Repeat("x", 8192),
	} {
		blob, err := env.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := env.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEnvelopeBlobLayout(t *testing.T) {
	env, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	blob, err := env.Encrypt("layout check")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	assert.Equal(t, byte(KeyVersion), raw[0])
	assert.GreaterOrEqual(t, len(raw), headerSize)
}

func TestEnvelopeTamperedBlobFails(t *testing.T) {
	env, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	blob, err := env.Encrypt("secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	_, err = env.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestEnvelopeUnsupportedKeyVersion(t *testing.T) {
	env, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	blob, err := env.Encrypt("secret")
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(blob)
	raw[0] = 2

	_, err = env.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestEnvelopeMalformedBlobs(t *testing.T) {
	env, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	for _, blob := range []string{"", "not base64!!", base64.StdEncoding.EncodeToString([]byte{KeyVersion, 1, 2})} {
		_, err := env.Decrypt(blob)
		assert.ErrorIs(t, err, ErrDecryption, "blob %q", blob)
	}
}

func TestEnvelopeDisabledWithoutKey(t *testing.T) {
	env, err := NewEnvelope(nil)
	require.NoError(t, err)
	assert.False(t, env.Enabled())

	_, err = env.Encrypt("anything")
	assert.Error(t, err)

	// Blobs from an encrypted deployment cannot be opened without the key.
	keyed, err := NewEnvelope(testKey(t))
	require.NoError(t, err)
	blob, err := keyed.Encrypt("anything")
	require.NoError(t, err)
	_, err = env.Decrypt(blob)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestEnvelopeWrongKeyFails(t *testing.T) {
	a, err := NewEnvelope(testKey(t))
	require.NoError(t, err)
	b, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	blob, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(blob)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestIsEncrypted(t *testing.T) {
	env, err := NewEnvelope(testKey(t))
	require.NoError(t, err)

	blob, err := env.Encrypt("sniff me")
	require.NoError(t, err)

	assert.True(t, IsEncrypted(blob))
	assert.False(t, IsEncrypted("a normal chat message"))
	assert.False(t, IsEncrypted(""))
	assert.False(t, IsEncrypted("short"))
}
