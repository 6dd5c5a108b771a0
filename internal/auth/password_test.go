// ABOUTME: Tests for bcrypt, Argon2id and the prefix-dispatching MultiHasher
// ABOUTME: Covers round trips, mismatches and malformed stored hashes

package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fastArgon2() Argon2Hasher {
	return Argon2Hasher{Params: Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 8, KeyLen: 16}}
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	ok, err := h.Verify(hash, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestArgon2Hasher(t *testing.T) {
	h := fastArgon2()

	hash, err := h.Hash("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := h.Verify(hash, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	// two hashes of the same password differ by salt
	again, err := h.Hash("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}

func TestArgon2RejectsMalformedHashes(t *testing.T) {
	h := Argon2Hasher{}
	for _, bad := range []string{
		"",
		"argon2id$v=19$m=1024,t=1,p=1$c2FsdA",
		"argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"argon2id$v=19$m=1024,t=1,x=1$c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"argon2id$v=19$m=1024,t=1,p=999$c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaGhhc2hoYXNoaGFzaA",
	} {
		_, err := h.Verify(bad, "pw")
		assert.Error(t, err, bad)
	}
}

func TestMultiHasherVerifiesBothFormats(t *testing.T) {
	bcryptHash, err := BcryptHasher{Cost: bcrypt.MinCost}.Hash("pw")
	require.NoError(t, err)
	argonHash, err := fastArgon2().Hash("pw")
	require.NoError(t, err)

	m := MultiHasher{Primary: fastArgon2()}
	for _, hash := range []string{bcryptHash, argonHash} {
		ok, err := m.Verify(hash, "pw")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := m.Verify("", "pw")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.Verify("plaintext", "pw")
	assert.Error(t, err)

	fresh, err := m.Hash("pw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fresh, "argon2id$"))
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher("argon2id")
	require.NoError(t, err)
	assert.IsType(t, Argon2Hasher{}, h.Primary)

	h, err = NewHasher("")
	require.NoError(t, err)
	assert.IsType(t, BcryptHasher{}, h.Primary)

	_, err = NewHasher("md5")
	assert.Error(t, err)
}

func TestDummyHashIsValidBcrypt(t *testing.T) {
	ok, err := BcryptHasher{}.Verify(dummyHash, "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}
