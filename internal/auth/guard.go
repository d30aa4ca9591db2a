package auth

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWrongCurrent = errors.New("current secret does not match")
	ErrMismatch     = errors.New("confirmation does not match")
	ErrEmptySecret  = errors.New("secret must not be empty")
)

// Guard gates administrative operations behind a single shared owner
// secret. The secret is held only as a bcrypt hash; there is no
// session or lockout concept, every privileged action re-checks.
type Guard struct {
	mu         sync.RWMutex
	secretHash string
}

func NewGuard(initialSecret string) (*Guard, error) {
	hash, err := hashSecret(initialSecret)
	if err != nil {
		return nil, err
	}
	return &Guard{secretHash: hash}, nil
}

// Authenticate reports whether the supplied secret matches the owner
// secret. It never reveals why a check failed.
func (g *Guard) Authenticate(supplied string) bool {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return false
	}
	g.mu.RLock()
	hash := g.secretHash
	g.mu.RUnlock()
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(supplied)) == nil
}

// ChangeSecret replaces the owner secret after verifying the current
// one and the confirmation. The replacement happens under the write
// lock so the check and the swap are a single step.
func (g *Guard) ChangeSecret(current string, proposed string, confirmation string) error {
	if strings.TrimSpace(proposed) == "" {
		return ErrEmptySecret
	}
	if proposed != confirmation {
		return ErrMismatch
	}

	hash, err := hashSecret(proposed)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if bcrypt.CompareHashAndPassword([]byte(g.secretHash), []byte(current)) != nil {
		return ErrWrongCurrent
	}
	g.secretHash = hash
	return nil
}

func hashSecret(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", ErrEmptySecret
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
