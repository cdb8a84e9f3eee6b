package cookie

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestNewCodec(t *testing.T) {
	t.Run("accepts a 32-byte hex key", func(t *testing.T) {
		_, err := NewCodec(testKey)
		require.NoError(t, err)
	})

	t.Run("rejects a short key", func(t *testing.T) {
		_, err := NewCodec("deadbeef")
		require.Error(t, err)
	})

	t.Run("rejects non-hex input", func(t *testing.T) {
		_, err := NewCodec(strings.Repeat("zz", 32))
		require.Error(t, err)
	})
}

func TestSealOpenRoundTrip(t *testing.T) {
	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	sealed, err := codec.Seal("session-id-123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "session-id-123")

	opened, err := codec.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "session-id-123", opened)
}

func TestSealIsNonDeterministic(t *testing.T) {
	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	a, err := codec.Seal("same-value")
	require.NoError(t, err)
	b, err := codec.Seal("same-value")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenRejectsGarbage(t *testing.T) {
	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	t.Run("tampered ciphertext", func(t *testing.T) {
		sealed, err := codec.Seal("session-id")
		require.NoError(t, err)
		tampered := "A" + sealed[1:]
		if tampered == sealed {
			tampered = "B" + sealed[1:]
		}
		_, err = codec.Open(tampered)
		require.Error(t, err)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := codec.Open("!!!not-base64!!!")
		require.Error(t, err)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := codec.Open("aaaa")
		require.Error(t, err)
	})

	t.Run("sealed under a different key", func(t *testing.T) {
		other, err := NewCodec(strings.Repeat("ab", 32))
		require.NoError(t, err)
		sealed, err := other.Seal("session-id")
		require.NoError(t, err)
		_, err = codec.Open(sealed)
		require.Error(t, err)
	})
}
