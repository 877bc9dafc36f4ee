package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewJWTVerifier("test-secret")

	token, err := v.Issue(Principal{UserID: 42, Role: "user"}, time.Hour)
	require.NoError(t, err)

	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, p.UserID)
	assert.Equal(t, "user", p.Role)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTVerifier("secret-a").Issue(Principal{UserID: 1, Role: "user"}, time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier("secret-b").Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token, err := v.Issue(Principal{UserID: 1, Role: "user"}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	_, err := v.Verify("not.a.jwt")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "abc", BearerToken("abc"))
	assert.Equal(t, "", BearerToken(""))
	assert.Equal(t, "", BearerToken("   "))
}
