package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T, algorithm string) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(algorithm, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

// mutations returns every single-character substitution of s.
func mutations(s string) []string {
	out := make([]string, 0, len(s))
	for i := 0; i < len(s); i++ {
		b := []byte(s)
		if b[i] == 'x' {
			b[i] = 'y'
		} else {
			b[i] = 'x'
		}
		out = append(out, string(b))
	}
	return out
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	for _, algorithm := range []string{AlgorithmBcrypt, AlgorithmArgon2id} {
		t.Run(algorithm, func(t *testing.T) {
			h := newTestHasher(t, algorithm)
			const password = "Str0ng!Pass"

			hash, err := h.Hash(password)
			require.NoError(t, err)
			assert.NotEqual(t, password, hash)
			assert.NotContains(t, hash, password)

			assert.True(t, h.Verify(password, hash))
			for _, m := range mutations(password) {
				assert.False(t, h.Verify(m, hash), "mutation %q verified", m)
			}
		})
	}
}

func TestPasswordHasher_SaltPerCall(t *testing.T) {
	h := newTestHasher(t, AlgorithmBcrypt)

	a, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)
	b, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_DefaultCost(t *testing.T) {
	h, err := NewPasswordHasher("", 0)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmBcrypt, h.algorithm)
	assert.Equal(t, DefaultBcryptCost, h.bcryptCost)
}

func TestPasswordHasher_EmbedsWorkFactor(t *testing.T) {
	h, err := NewPasswordHasher(AlgorithmBcrypt, 5)
	require.NoError(t, err)

	hash, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, 5, cost)
}

func TestPasswordHasher_LongPasswords(t *testing.T) {
	h := newTestHasher(t, AlgorithmBcrypt)
	long := strings.Repeat("aB1!", 32) // 128 chars

	hash, err := h.Hash(long)
	require.NoError(t, err)
	assert.True(t, h.Verify(long, hash))

	// differs only after byte 72
	tail := long[:100] + "Z" + long[101:]
	assert.False(t, h.Verify(tail, hash))
}

func TestPasswordHasher_VerifyAcrossAlgorithms(t *testing.T) {
	argon := newTestHasher(t, AlgorithmArgon2id)
	bc := newTestHasher(t, AlgorithmBcrypt)

	hash, err := argon.Hash("Str0ng!Pass")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))
	assert.True(t, bc.Verify("Str0ng!Pass", hash))
}

func TestPasswordHasher_MalformedHashes(t *testing.T) {
	h := newTestHasher(t, AlgorithmBcrypt)

	for _, encoded := range []string{
		"",
		"plaintext",
		"$2a$",
		"$argon2id$",
		"$argon2id$v=19$t=3,m=65536,p=2$!!!$abc",
		"$argon2id$v=18$t=3,m=65536,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
	} {
		assert.NotPanics(t, func() {
			assert.False(t, h.Verify("Str0ng!Pass", encoded), "encoded %q", encoded)
		})
	}
}

func TestNewPasswordHasher_Invalid(t *testing.T) {
	_, err := NewPasswordHasher("md5", 0)
	assert.Error(t, err)

	_, err = NewPasswordHasher(AlgorithmBcrypt, 99)
	assert.Error(t, err)
}
