package subscription

import (
	"context"
	"fmt"
	"net/url"

	"receiptvault/internal/api"
)

// Outcome classifies one checkout-completion activation.
type Outcome int

const (
	// OutcomeSkipped: the view was reached without a checkout-session
	// identifier, so no sync was attempted. Not an error.
	OutcomeSkipped Outcome = iota
	// OutcomeAuthRequired: a session identifier was present but no
	// credential is stored. Non-blocking; the payment itself succeeded.
	OutcomeAuthRequired
	// OutcomeSynced: the backend confirmed the subscription state.
	OutcomeSynced
	// OutcomeFailed: the sync call failed. Non-blocking; the user may
	// still proceed to the dashboard.
	OutcomeFailed
)

// Result is what one Complete run produced. Message is the user-visible
// inline text for the non-success outcomes.
type Result struct {
	Outcome Outcome
	Plan    string
	Message string
}

// SyncAPI is the single backend call the syncer needs. *api.Client
// satisfies it.
type SyncAPI interface {
	SyncSubscription(ctx context.Context, token string) (*api.SyncResult, error)
}

// TokenSource yields the stored bearer credential, "" when logged out.
type TokenSource interface {
	Token() (string, error)
}

// Syncer runs the post-checkout reconciliation sequence.
type Syncer struct {
	api      SyncAPI
	creds    TokenSource
	notifier *Notifier
}

// NewSyncer wires a syncer to its collaborators. notifier may be shared
// with any number of subscribed views.
func NewSyncer(api SyncAPI, creds TokenSource, notifier *Notifier) *Syncer {
	return &Syncer{api: api, creds: creds, notifier: notifier}
}

// SessionIDFromURL extracts the checkout-session identifier from a checkout
// return URL. "" means the view was reached without a completed checkout.
func SessionIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("session_id")
}

// Complete runs the checkout-completion sequence for one activation.
//
// Without a session identifier the sync is skipped entirely: no call, no
// broadcast, default success message. Otherwise exactly one sync attempt is
// made and exactly one notification is broadcast regardless of outcome, so
// subscribed views re-check plan state even after a failure. Every error is
// reported in Result.Message, never returned: sync failures must not block
// navigation to the dashboard.
func (s *Syncer) Complete(ctx context.Context, returnURL string) Result {
	sessionID := SessionIDFromURL(returnURL)
	if sessionID == "" {
		return Result{Outcome: OutcomeSkipped}
	}

	defer s.notifier.Publish()

	token, err := s.creds.Token()
	if err != nil || token == "" {
		return Result{
			Outcome: OutcomeAuthRequired,
			Message: "Payment received, but you are signed out. Sign in to see your updated plan.",
		}
	}

	result, err := s.api.SyncSubscription(ctx, token)
	if err != nil {
		return Result{
			Outcome: OutcomeFailed,
			Message: fmt.Sprintf("Payment received, but confirming your plan failed (%v). It will update shortly.", err),
		}
	}

	return Result{Outcome: OutcomeSynced, Plan: result.Plan}
}
