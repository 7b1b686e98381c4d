package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptRoundTrip(t *testing.T) {
	v := NewBcryptVerifier()

	hashed, err := v.Hash("correct-horse-battery-staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse-battery-staple", hashed)

	assert.NoError(t, v.Compare(hashed, "correct-horse-battery-staple"))
	assert.Error(t, v.Compare(hashed, "wrong-password-entirely"))
}

func TestBcryptHash_ProducesUniqueSalts(t *testing.T) {
	v := NewBcryptVerifier()

	first, err := v.Hash("same password")
	require.NoError(t, err)
	second, err := v.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
