package secret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	return NewCodec("unit-test-secret", zap.NewNop())
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)

	plaintexts := []string{
		"abcd efgh ijkl mnop",
		"",
		"x",
		"exactly-16-bytes",
		"päßwörd-with-ünicode-✓",
		strings.Repeat("long", 500),
	}

	for _, p := range plaintexts {
		token, err := c.Encrypt(p)
		require.NoError(t, err)
		require.Contains(t, token, ":")

		got, err := c.Decrypt(token)
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
}

func TestCodec_FreshIVPerCall(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)

	a, err := c.Encrypt("same input")
	require.NoError(t, err)
	b, err := c.Encrypt("same input")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestCodec_LegacyPlaintextPassthrough(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)

	got, err := c.Decrypt("plainstring-without-colon")
	require.NoError(t, err)
	require.Equal(t, "plainstring-without-colon", got)
}

func TestCodec_MalformedTokens(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)

	tokens := []string{
		"",
		"a:b:c",
		"not-base64:also-not",
		"YWJjZA==:", // empty ciphertext
		":YWJjZA==", // empty iv
		"YWJjZA==:YWJjZA==", // iv is not 16 bytes
	}

	for _, token := range tokens {
		_, err := c.Decrypt(token)
		require.ErrorIs(t, err, ErrInvalidFormat, "token %q", token)
	}
}

func TestCodec_WrongKeyNeverRecoversPlaintext(t *testing.T) {
	t.Parallel()

	token, err := NewCodec("key-one", zap.NewNop()).Encrypt("hello")
	require.NoError(t, err)

	// Depending on how the garbage decodes, decryption either fails the
	// padding check or yields bytes that are not the original plaintext.
	got, err := NewCodec("key-two", zap.NewNop()).Decrypt(token)
	if err == nil {
		require.NotEqual(t, "hello", got)
	}
}
