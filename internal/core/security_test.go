// AngelaMos | 2026
// security_test.go

package core

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := NewPasswordHasher()

	first, err := h.Hash("Abcd1234")
	require.NoError(t, err)
	second, err := h.Hash("Abcd1234")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "salt must differ between calls")
	assert.True(t, strings.HasPrefix(first, "$argon2id$v=19$"))
	assert.True(t, h.Verify("Abcd1234", first))
	assert.True(t, h.Verify("Abcd1234", second))
	assert.False(t, h.Verify("abcd1234", first))
}

func TestPasswordHasher_VerifyMalformedDigest(t *testing.T) {
	h := NewPasswordHasher()

	digests := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$",
		"$2b$10$short",
	}

	for _, d := range digests {
		assert.NotPanics(t, func() {
			assert.False(t, h.Verify("Abcd1234", d), "digest %q", d)
		})
	}
}

func TestPasswordHasher_RejectsExcessiveCost(t *testing.T) {
	h := NewPasswordHasher()

	digest, err := h.Hash("Abcd1234")
	require.NoError(t, err)
	parts := strings.Split(digest, "$")

	withParams := func(params string) string {
		p := append([]string(nil), parts...)
		p[3] = params
		return strings.Join(p, "$")
	}

	for _, params := range []string{
		"m=4294967295,t=1,p=4",
		"m=2097152,t=1,p=4",
		"m=65536,t=4294967295,p=4",
		"m=65536,t=17,p=4",
		"m=65536,t=1,p=65",
		"m=65536,t=1,p=300",
	} {
		assert.False(t, h.Verify("Abcd1234", withParams(params)), params)
		assert.True(t, h.NeedsRehash(withParams(params)), params)
	}

	oversized := append([]string(nil), parts...)
	oversized[5] = base64.RawStdEncoding.EncodeToString(make([]byte, 129))
	assert.False(t, h.Verify("Abcd1234", strings.Join(oversized, "$")))

	assert.True(t, h.Verify("Abcd1234", withParams("m=65536,t=1,p=4")))
}

func TestPasswordHasher_VerifyBcrypt(t *testing.T) {
	h := NewPasswordHasher()

	legacy, err := bcrypt.GenerateFromPassword([]byte("Abcd1234"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, h.Verify("Abcd1234", string(legacy)))
	assert.False(t, h.Verify("wrong", string(legacy)))
	assert.True(t, h.NeedsRehash(string(legacy)))
}

func TestPasswordHasher_NeedsRehash(t *testing.T) {
	h := NewPasswordHasher()

	current, err := h.Hash("Abcd1234")
	require.NoError(t, err)

	assert.False(t, h.NeedsRehash(current))
	assert.True(t, h.NeedsRehash("$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g"))
	assert.True(t, h.NeedsRehash("garbage"))
}

func TestPasswordHasher_VerifyTimingSafe(t *testing.T) {
	h := NewPasswordHasher()

	digest, err := h.Hash("Abcd1234")
	require.NoError(t, err)

	assert.True(t, h.VerifyTimingSafe("Abcd1234", &digest))
	assert.False(t, h.VerifyTimingSafe("Abcd1234", nil))

	empty := ""
	assert.False(t, h.VerifyTimingSafe("Abcd1234", &empty))
}

func TestIsValidUsername(t *testing.T) {
	assert.True(t, IsValidUsername("abc_123"))
	assert.False(t, IsValidUsername("abc-123"))
	assert.False(t, IsValidUsername("a b"))
	assert.False(t, IsValidUsername(""))
	assert.True(t, IsValidUsername("Ada_Lovelace"))
	assert.False(t, IsValidUsername("josé"), "non-ASCII letter")
	assert.False(t, IsValidUsername("user٣"), "non-ASCII digit")
	assert.False(t, IsValidUsername("ａｂｃ"), "fullwidth letters")
}

func TestIsStrongPassword(t *testing.T) {
	assert.True(t, IsStrongPassword("Abcd1234"))
	assert.False(t, IsStrongPassword("abcd1234"))
	assert.False(t, IsStrongPassword("ABCD1234"))
	assert.False(t, IsStrongPassword("Abcdefgh"))
}
