package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testParams = Params{Memory: 1024, Time: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher(testParams)

	hash, err := h.HashPassword("pw1")
	require.NoError(t, err)
	assert.Equal(t, HashVersionArgon2id, Version(hash))
	assert.NotContains(t, hash, "pw1")

	ok, err := h.VerifyPassword(hash, "pw1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.VerifyPassword(hash, "pw2")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := h.HashPassword("pw1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt must differ per hash")

	assert.False(t, h.NeedsRehash(hash))
}

func TestHasherRejectsEmptyPassword(t *testing.T) {
	_, err := NewHasher(testParams).HashPassword("")
	assert.Error(t, err)
}

func TestHasherMalformed(t *testing.T) {
	h := NewHasher(testParams)

	for _, hash := range []string{
		"",
		"5f4dcc3b5aa765d61d8327deb882cf99",
		"$argon2id$v=19$m=1024,t=1,p=1$only-salt",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5",
	} {
		ok, err := h.VerifyPassword(hash, "pw")
		assert.False(t, ok, hash)
		assert.Error(t, err, hash)
	}
}

func TestHasherLegacyBcrypt(t *testing.T) {
	h := NewHasher(testParams)

	legacy, err := bcrypt.GenerateFromPassword([]byte("pw1"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, HashVersionBcrypt, Version(string(legacy)))

	ok, err := h.VerifyPassword(string(legacy), "pw1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.VerifyPassword(string(legacy), "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, h.NeedsRehash(string(legacy)))
}

func TestNeedsRehashOnParamChange(t *testing.T) {
	old := NewHasher(testParams)
	hash, err := old.HashPassword("pw1")
	require.NoError(t, err)

	stronger := testParams
	stronger.Time = 2
	assert.True(t, NewHasher(stronger).NeedsRehash(hash))
}
