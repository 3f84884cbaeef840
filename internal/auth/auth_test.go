package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}

	assert.NotEqual(t, "correct horse battery staple", hash, "hash must not be the plaintext")
	assert.True(t, CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, CheckPassword(hash, "correct horse battery stable"))
	assert.False(t, CheckPassword(hash, ""))
}

func TestHashPasswordSalted(t *testing.T) {
	first, err := HashPassword("samepassword")
	if err != nil {
		t.Fatal(err)
	}
	second, err := HashPassword("samepassword")
	if err != nil {
		t.Fatal(err)
	}

	assert.NotEqual(t, first, second, "bcrypt must salt each hash")
	assert.True(t, CheckPassword(first, "samepassword"))
	assert.True(t, CheckPassword(second, "samepassword"))
}

func TestCheckPasswordGarbageHash(t *testing.T) {
	assert.False(t, CheckPassword("not a bcrypt hash", "whatever"))
	assert.False(t, CheckPassword("", "whatever"))
}

func TestNewSessionToken(t *testing.T) {
	first, err := NewSessionToken()
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewSessionToken()
	if err != nil {
		t.Fatal(err)
	}

	assert.Len(t, first, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", first)
	assert.NotEqual(t, first, second)
}
