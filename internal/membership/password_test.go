// internal/membership/password_test.go
package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, salt, err := hashPassword("Sara@Lib123")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEmpty(t, salt)

	ok, err := verifyPassword("Sara@Lib123", salt, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyPassword("wrong-password", salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	first, firstSalt, err := hashPassword("same-password")
	require.NoError(t, err)
	second, secondSalt, err := hashPassword("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, firstSalt, secondSalt)
	assert.NotEqual(t, first, second)
}

func TestVerifyPasswordRejectsBadEncoding(t *testing.T) {
	_, _, err := hashPassword("anything")
	require.NoError(t, err)

	_, err = verifyPassword("anything", "not base64 !!!", "also not base64 !!!")
	assert.Error(t, err)
}

func TestVerifyRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		password := rapid.StringMatching(`[ -~]{1,40}`).Draw(t, "password")

		hash, salt, err := hashPassword(password)
		require.NoError(t, err)

		ok, err := verifyPassword(password, salt, hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "UGR/1234/13", normalizeIdentifier("ugr/1234/13"))
	assert.Equal(t, "UGR/1234/13", normalizeIdentifier("  Ugr/1234/13  "))
	assert.Equal(t, "", normalizeIdentifier("   "))
}
