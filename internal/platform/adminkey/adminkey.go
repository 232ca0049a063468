// Package adminkey gates mutating routes behind a shared-secret header.
package adminkey

import (
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// Header carries the shared secret on mutating requests.
const Header = "X-Admin-Key"

var ErrKeyRequired = errors.New("admin key is required")

// Checker holds a bcrypt hash of the configured key. The plaintext is
// discarded after construction; per-request comparison goes through bcrypt,
// which is constant-time with respect to the candidate key.
type Checker struct {
	hash []byte
}

func NewChecker(key string) (*Checker, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Checker{hash: hash}, nil
}

func (c *Checker) Allow(candidate string) bool {
	if candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.hash, []byte(candidate)) == nil
}

// Middleware rejects requests whose admin-key header does not match.
func (c *Checker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.Allow(r.Header.Get(Header)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
