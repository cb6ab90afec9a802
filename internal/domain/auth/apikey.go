package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned by repositories when no active key matches the
// presented hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyInfo holds the identity and permission data for a validated API key.
// Every key belongs to exactly one site; the key is how tenancy is resolved
// for authenticated requests.
type APIKeyInfo struct {
	ID      string
	SiteID  string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key grants the named scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
