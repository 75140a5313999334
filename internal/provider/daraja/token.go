package daraja

import (
	"sync"
	"time"
)

// refreshMargin is how long before expiry a cached token is already treated
// as stale, so in-flight requests never ride a token about to die.
const refreshMargin = 5 * time.Minute

// TokenCache memoizes the Daraja OAuth token. A single slot is enough: a
// refresh race costs one redundant fetch and the last write wins, both tokens
// being independently valid.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenCache() *TokenCache { return &TokenCache{} }

// Get returns the cached token, or ok=false when absent or within the
// refresh margin of expiry.
func (c *TokenCache) Get() (token string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.expiresAt.After(time.Now().Add(refreshMargin)) {
		return "", false
	}
	return c.token, true
}

func (c *TokenCache) Set(token string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = time.Now().Add(ttl)
}

// Reset clears the slot; used by tests and credential rotation.
func (c *TokenCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}
