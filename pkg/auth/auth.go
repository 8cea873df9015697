// Package auth guards the results server with bearer API keys.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidKey = errors.New("invalid API key")
	ErrKeyExpired = errors.New("API key expired")
)

// KeyInfo is the stored form of an API key; the key itself is never kept
type KeyInfo struct {
	Hash        string
	Description string
	CreatedAt   time.Time
	ExpiresAt   time.Time // zero means no expiry
}

// Keyring holds bcrypt hashes of the accepted API keys
type Keyring struct {
	keys map[string]*KeyInfo // prefix -> info
	mu   sync.RWMutex
}

// NewKeyring creates an empty keyring
func NewKeyring() *Keyring {
	return &Keyring{
		keys: make(map[string]*KeyInfo),
	}
}

// prefixLen characters of a key index its hash
const prefixLen = 8

// Generate creates and stores a new random API key
func (k *Keyring) Generate(description string, ttl time.Duration) (string, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	key := base64.RawURLEncoding.EncodeToString(keyBytes)
	if err := k.Add(key, description, ttl); err != nil {
		return "", err
	}
	return key, nil
}

// Add stores an externally provided key, e.g. from SHOPBENCH_API_KEY
func (k *Keyring) Add(key, description string, ttl time.Duration) error {
	if len(key) < prefixLen {
		return fmt.Errorf("API key must have at least %d characters", prefixLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash API key: %w", err)
	}

	info := &KeyInfo{
		Hash:        string(hash),
		Description: description,
		CreatedAt:   time.Now(),
	}
	if ttl > 0 {
		info.ExpiresAt = info.CreatedAt.Add(ttl)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[key[:prefixLen]] = info
	return nil
}

// Validate checks a presented key
func (k *Keyring) Validate(key string) error {
	if len(key) < prefixLen {
		return ErrInvalidKey
	}
	k.mu.RLock()
	info, ok := k.keys[key[:prefixLen]]
	k.mu.RUnlock()
	if !ok {
		return ErrInvalidKey
	}
	if !info.ExpiresAt.IsZero() && time.Now().After(info.ExpiresAt) {
		return ErrKeyExpired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(info.Hash), []byte(key)); err != nil {
		return ErrInvalidKey
	}
	return nil
}

// Revoke removes a key
func (k *Keyring) Revoke(key string) {
	if len(key) < prefixLen {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, key[:prefixLen])
}

// Len returns the number of stored keys
func (k *Keyring) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

// Middleware rejects requests without a valid "Authorization: Bearer" key.
// Paths listed in public are served without a key. An empty keyring disables
// authentication.
func Middleware(k *Keyring, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if k == nil || k.Len() == 0 || open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			key, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || key == "" {
				http.Error(w, "Missing bearer API key", http.StatusUnauthorized)
				return
			}
			if err := k.Validate(key); err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
