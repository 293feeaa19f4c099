package providers

import (
	"strings"

	"cryptogram/internal/structures"
)

// IdentityProviderInterface supplies the acting user and the bearer token
// for the remote API. An empty token means the user is not signed in.
type IdentityProviderInterface interface {
	UserID() string
	Token() (string, bool)
}

type IdentityProvider struct {
	userID string
	token  string
}

func NewIdentityProvider(conf *structures.Config) IdentityProviderInterface {
	userID := strings.TrimSpace(conf.Identity.UserID)
	if userID == "" {
		userID = "local"
	}
	return &IdentityProvider{
		userID: userID,
		token:  strings.TrimSpace(conf.Identity.Token),
	}
}

func (p *IdentityProvider) UserID() string {
	return p.userID
}

func (p *IdentityProvider) Token() (string, bool) {
	return p.token, p.token != ""
}
