// Package auth is the identity provider behind login, sign-up and sign-out.
package auth

import (
	"context"
	"net/mail"
	"strings"
	"sync"

	"hazard-reporter/internal/common/errors"
	"hazard-reporter/internal/common/logger"
)

// Identity is a signed-in user as the provider knows it.
type Identity struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
}

// StateChange reports the provider's current user. A nil Identity means
// nobody is signed in.
type StateChange struct {
	Identity *Identity
}

// SignedIn reports whether the change carries a user.
func (c StateChange) SignedIn() bool {
	return c.Identity != nil
}

// Provider is an external identity provider. Implementations publish every
// sign-in and sign-out on Subscribe channels, including ones they observe
// on their own (token restore, remote revocation).
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignUp(ctx context.Context, email, password string) (Identity, error)
	SignOut(ctx context.Context) error
	// Subscribe returns a channel of state changes and a cancel func. The
	// most recent state, if any, is delivered first.
	Subscribe() (<-chan StateChange, func())
}

// ValidateCredentials rejects input that cannot be a valid sign-in attempt.
func ValidateCredentials(email, password string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return errors.NewInvalidCredentialsError("email is not a valid address")
	}
	if password == "" {
		e := errors.NewInvalidCredentialsError("password is empty")
		e.Message = "Please enter your password"
		return e
	}
	return nil
}

const subscriberBuffer = 16

// Broadcaster fans state changes out to subscribers and remembers the last
// one for late subscribers.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan StateChange
	nextID int
	last   *StateChange
	logger logger.Logger
}

func NewBroadcaster(log logger.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[int]chan StateChange),
		logger: log,
	}
}

func (b *Broadcaster) Subscribe() (<-chan StateChange, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan StateChange, subscriberBuffer)
	if b.last != nil {
		ch <- *b.last
	}
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish records change and delivers it to every subscriber. A subscriber
// whose buffer is full loses its oldest queued change, never the newest.
func (b *Broadcaster) Publish(change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := change
	b.last = &c
	for id, ch := range b.subs {
		select {
		case ch <- change:
			continue
		default:
		}
		select {
		case <-ch:
			b.logger.Warn("Dropping oldest auth state change for slow subscriber", map[string]interface{}{
				"subscriber": id,
			})
		default:
		}
		select {
		case ch <- change:
		default:
		}
	}
}

// Current returns the last published state and whether one was published.
func (b *Broadcaster) Current() (StateChange, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return StateChange{}, false
	}
	return *b.last, true
}
