package secure

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateKey_CreatesAndReuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", ".test.key")

	first, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	require.Len(t, first, KeySize)

	second, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSealer_RoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i * 7)
	}
	s, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := s.Seal("555-0100")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "555-0100")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", plain)
}

func TestSealer_NonceVaries(t *testing.T) {
	s, err := NewSealer(make([]byte, KeySize))
	require.NoError(t, err)

	a, err := s.Seal("same input")
	require.NoError(t, err)
	b, err := s.Seal("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_TamperDetected(t *testing.T) {
	s, err := NewSealer(make([]byte, KeySize))
	require.NoError(t, err)

	sealed, err := s.Seal("visiting facilities team")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0x01

	_, err = s.Open(sealed)
	require.Error(t, err)
}

func TestSealer_TooShort(t *testing.T) {
	s, err := NewSealer(make([]byte, KeySize))
	require.NoError(t, err)

	_, err = s.Open([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}
