package auth

import (
	"strconv"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer derives session tokens from the username and a
// process-wide counter, hashed with bcrypt so they cannot be guessed.
type TokenIssuer struct {
	mu   sync.Mutex
	next uint64
	cost int
}

// NewTokenIssuer creates a TokenIssuer hashing at the given bcrypt cost
func NewTokenIssuer(cost int) *TokenIssuer {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &TokenIssuer{cost: cost}
}

// NextToken issues a fresh token for username
func (t *TokenIssuer) NextToken(username string) (string, error) {
	t.mu.Lock()
	n := t.next
	t.next++
	t.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(username+strconv.FormatUint(n, 10)), t.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
