package guard

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// AnonymousIdentity is the fixed identity used when authentication is off.
const AnonymousIdentity = "anonymous"

// AuthPolicy checks basic-auth credentials against the configured store.
// Secrets are SHA-256 hashed at construction and compared in constant time.
type AuthPolicy struct {
	enabled bool
	users   map[string][32]byte
}

// NewAuthPolicy hashes the credential store.
func NewAuthPolicy(enabled bool, users map[string]string) *AuthPolicy {
	hashed := make(map[string][32]byte, len(users))
	for name, secret := range users {
		hashed[name] = sha256.Sum256([]byte(secret))
	}
	return &AuthPolicy{enabled: enabled, users: hashed}
}

func (p *AuthPolicy) Name() string { return "authentication" }

func (p *AuthPolicy) Evaluate(_ context.Context, req *Request) *Denial {
	if !p.enabled {
		req.Identity = AnonymousIdentity
		return nil
	}
	if req.HasCreds && p.check(req.Username, req.Password) {
		req.Identity = req.Username
		return nil
	}
	return &Denial{
		Status:    http.StatusUnauthorized,
		Reason:    "unauthenticated",
		Message:   "valid username and password required",
		Challenge: true,
	}
}

func (p *AuthPolicy) check(username, password string) bool {
	want, ok := p.users[username]
	if !ok {
		// Unknown users still pay for one comparison.
		var zero [32]byte
		subtle.ConstantTimeCompare(zero[:], zero[:])
		return false
	}
	got := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}
