package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_SealOpen(t *testing.T) {
	sealer, err := NewSealer("master-key", "oauth-tokens")
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte(`{"access_token":"abc"}`))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "abc")

	again, err := sealer.Seal([]byte(`{"access_token":"abc"}`))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ between seals")

	plain, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"abc"}`, string(plain))
}

func TestSealer_RejectsForeignCiphertext(t *testing.T) {
	sealer, err := NewSealer("master-key", "oauth-tokens")
	require.NoError(t, err)
	other, err := NewSealer("master-key", "conversations")
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.Error(t, err)

	_, err = sealer.Open("not base64!")
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	_, err = sealer.Open("c2hvcnQ")
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	_, err = NewSealer("", "oauth-tokens")
	assert.Error(t, err)
}
