package providers

import (
	"testing"

	"cryptogram/internal/structures"

	"github.com/stretchr/testify/assert"
)

func TestIdentityProvider(t *testing.T) {
	p := NewIdentityProvider(&structures.Config{Identity: structures.IdentityConfig{UserID: " u1 ", Token: "tok"}})
	assert.Equal(t, "u1", p.UserID())
	token, ok := p.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok", token)
}

func TestIdentityProvider_Anonymous(t *testing.T) {
	p := NewIdentityProvider(&structures.Config{})
	assert.Equal(t, "local", p.UserID())
	_, ok := p.Token()
	assert.False(t, ok)
}
