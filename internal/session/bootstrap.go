package session

import (
	"context"
	"errors"
	"fmt"

	"receiptvault/internal/models"
)

// State is the bootstrap progression for a protected-view activation.
type State int

const (
	StateUnchecked State = iota
	StateChecking
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUnchecked:
		return "unchecked"
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrLoginRequired tells the caller to send the user to the login entry
// point. It covers both "no stored credential" and "backend rejected the
// stored credential"; the two cases are deliberately indistinguishable.
var ErrLoginRequired = errors.New("login required")

// UserFetcher resolves a bearer token into the current user.
// *api.Client satisfies it.
type UserFetcher interface {
	CurrentUser(ctx context.Context, token string) (*models.User, error)
}

// Credentials is the accessor surface the bootstrap needs from the store.
type Credentials interface {
	Token() (string, error)
	SetIdentity(email, plan string) error
	Clear() error
}

// Bootstrap establishes a valid identity before a protected view runs.
// Each activation uses a fresh Bootstrap; it is not reusable.
type Bootstrap struct {
	api   UserFetcher
	creds Credentials
	state State
	user  *models.User
}

// NewBootstrap builds a bootstrap for one protected-view activation.
func NewBootstrap(api UserFetcher, creds Credentials) *Bootstrap {
	return &Bootstrap{api: api, creds: creds, state: StateUnchecked}
}

// State reports where the activation currently is.
func (b *Bootstrap) State() State {
	return b.state
}

// User returns the resolved identity once the state is StateAuthenticated.
func (b *Bootstrap) User() *models.User {
	return b.user
}

// Activate resolves the stored credential into an identity.
//
// With no stored credential it settles on StateUnauthenticated immediately,
// issuing no network call. With one, it enters StateChecking and asks the
// backend for the current user; any failure, auth or transport alike,
// evicts the credential and settles on StateUnauthenticated. Both
// unauthenticated paths return ErrLoginRequired.
func (b *Bootstrap) Activate(ctx context.Context) (*models.User, error) {
	token, err := b.creds.Token()
	if err != nil {
		return nil, fmt.Errorf("read stored credential: %w", err)
	}
	if token == "" {
		b.state = StateUnauthenticated
		return nil, ErrLoginRequired
	}

	b.state = StateChecking
	user, err := b.api.CurrentUser(ctx, token)
	if err != nil {
		if clearErr := b.creds.Clear(); clearErr != nil {
			return nil, fmt.Errorf("clear rejected credential: %w", clearErr)
		}
		b.state = StateUnauthenticated
		return nil, fmt.Errorf("%w: %v", ErrLoginRequired, err)
	}

	if err := b.creds.SetIdentity(user.Email, user.SubscriptionPlan); err != nil {
		return nil, fmt.Errorf("record identity: %w", err)
	}
	b.state = StateAuthenticated
	b.user = user
	return user, nil
}
