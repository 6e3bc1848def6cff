package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"hazard-reporter/internal/common/errors"
	"hazard-reporter/internal/common/logger"
)

// MemoryProvider keeps accounts in process. It backs the CLI when no
// identity server is configured and reports itself signed out at start.
type MemoryProvider struct {
	*Broadcaster

	mu       sync.Mutex
	accounts map[string]memoryAccount
}

type memoryAccount struct {
	id       string
	password string
}

func NewMemoryProvider(log logger.Logger) *MemoryProvider {
	p := &MemoryProvider{
		Broadcaster: NewBroadcaster(log),
		accounts:    make(map[string]memoryAccount),
	}
	p.Publish(StateChange{})
	return p
}

func (p *MemoryProvider) SignIn(_ context.Context, email, password string) (Identity, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return Identity{}, err
	}
	key := strings.ToLower(strings.TrimSpace(email))

	p.mu.Lock()
	acct, ok := p.accounts[key]
	p.mu.Unlock()
	if !ok || acct.password != password {
		return Identity{}, errors.NewAuthFailedError("Invalid email or password", nil)
	}

	id := Identity{UserID: acct.id, Email: key}
	p.Publish(StateChange{Identity: &id})
	return id, nil
}

func (p *MemoryProvider) SignUp(_ context.Context, email, password string) (Identity, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return Identity{}, err
	}
	key := strings.ToLower(strings.TrimSpace(email))

	p.mu.Lock()
	if _, exists := p.accounts[key]; exists {
		p.mu.Unlock()
		return Identity{}, errors.NewSignUpFailedError("An account with this email already exists", nil)
	}
	acct := memoryAccount{id: uuid.NewString(), password: password}
	p.accounts[key] = acct
	p.mu.Unlock()

	id := Identity{UserID: acct.id, Email: key}
	p.Publish(StateChange{Identity: &id})
	return id, nil
}

func (p *MemoryProvider) SignOut(_ context.Context) error {
	p.Publish(StateChange{})
	return nil
}
