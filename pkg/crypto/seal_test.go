package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealRoundTrip(t *testing.T) {
	s := NewSealer("passphrase")
	sealed, err := s.Seal("1//refresh-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "refresh-token")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "1//refresh-token", plain)
}

func TestSealEmpty(t *testing.T) {
	s := NewSealer("k")
	sealed, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := s.Open("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestOpenWrongKey(t *testing.T) {
	sealed, err := NewSealer("a").Seal("secret")
	require.NoError(t, err)

	_, err = NewSealer("b").Open(sealed)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = NewSealer("a").Open("not-base64!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}
