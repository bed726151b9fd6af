package auth

import (
	"crypto/sha256"
	"strings"
	"sync"
)

// UserKeyValidator holds the trusted user keys that unlock pool-backed
// proxying and the admin API. Keys are stored as SHA-256 digests so the
// lookup does not compare secrets byte by byte.
type UserKeyValidator struct {
	mu     sync.RWMutex
	hashes map[[sha256.Size]byte]struct{}
}

// NewUserKeyValidator creates a validator for keys. Surrounding whitespace
// is trimmed and empty entries are ignored.
func NewUserKeyValidator(keys []string) *UserKeyValidator {
	v := &UserKeyValidator{}
	v.Replace(keys)
	return v
}

// IsTrusted reports whether key is one of the configured user keys.
func (v *UserKeyValidator) IsTrusted(key string) bool {
	if key == "" {
		return false
	}
	sum := sha256.Sum256([]byte(key))

	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.hashes[sum]
	return ok
}

// Len returns the number of trusted keys.
func (v *UserKeyValidator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.hashes)
}

// Replace swaps the trusted key set.
func (v *UserKeyValidator) Replace(keys []string) {
	hashes := make(map[[sha256.Size]byte]struct{}, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		hashes[sha256.Sum256([]byte(k))] = struct{}{}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.hashes = hashes
}
