package server

import (
	"context"
	"errors"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

var ErrSubscriptionClosed = errors.New("wearing subscription closed")

// WearingSubscription delivers one session's now-wearing reports to the
// change handler until it is closed.
type WearingSubscription struct {
	sessionID uuid.UUID
	handler   *WearableChangeHandler
	registry  *SubscriptionRegistry
	limiter   *rate.Limiter
	closed    *atomic.Bool
}

func (s *WearingSubscription) SessionID() uuid.UUID {
	return s.sessionID
}

// Notify handles a now-wearing report synchronously. Reports beyond the
// session's rate wait for a token until ctx is done.
func (s *WearingSubscription) Notify(ctx context.Context, nowWearing []WornItem) (WearingOutcome, error) {
	if s.closed.Load() {
		return WearingIgnored, ErrSubscriptionClosed
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return WearingIgnored, err
	}
	if s.closed.Load() {
		return WearingIgnored, ErrSubscriptionClosed
	}
	return s.handler.OnWearableChange(ctx, s.sessionID, nowWearing), nil
}

// Close unsubscribes. It is safe to call more than once.
func (s *WearingSubscription) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.registry.remove(s)
	}
}

func (s *WearingSubscription) Closed() bool {
	return s.closed.Load()
}

// SubscriptionRegistry owns the wearing subscriptions of live sessions.
type SubscriptionRegistry struct {
	sync.Mutex
	handler       *WearableChangeHandler
	limit         rate.Limit
	burst         int
	subscriptions map[uuid.UUID]*WearingSubscription
}

// NewSubscriptionRegistry paces each session's reports to ratePerSec with the
// given burst. A ratePerSec of 0 leaves sessions unpaced.
func NewSubscriptionRegistry(handler *WearableChangeHandler, ratePerSec float64, burst int) *SubscriptionRegistry {
	limit := rate.Limit(ratePerSec)
	if ratePerSec <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &SubscriptionRegistry{
		handler:       handler,
		limit:         limit,
		burst:         burst,
		subscriptions: make(map[uuid.UUID]*WearingSubscription),
	}
}

// Subscribe returns the session's subscription. An existing subscription for
// the session is closed and replaced.
func (r *SubscriptionRegistry) Subscribe(sessionID uuid.UUID) *WearingSubscription {
	sub := &WearingSubscription{
		sessionID: sessionID,
		handler:   r.handler,
		registry:  r,
		limiter:   rate.NewLimiter(r.limit, r.burst),
		closed:    atomic.NewBool(false),
	}

	r.Lock()
	old := r.subscriptions[sessionID]
	r.subscriptions[sessionID] = sub
	r.Unlock()

	if old != nil {
		old.closed.Store(true)
	}
	return sub
}

func (r *SubscriptionRegistry) Get(sessionID uuid.UUID) (*WearingSubscription, bool) {
	r.Lock()
	defer r.Unlock()
	sub, ok := r.subscriptions[sessionID]
	return sub, ok
}

// Unsubscribe closes the session's subscription, if any.
func (r *SubscriptionRegistry) Unsubscribe(sessionID uuid.UUID) {
	if sub, ok := r.Get(sessionID); ok {
		sub.Close()
	}
}

func (r *SubscriptionRegistry) Count() int {
	r.Lock()
	defer r.Unlock()
	return len(r.subscriptions)
}

func (r *SubscriptionRegistry) remove(sub *WearingSubscription) {
	r.Lock()
	defer r.Unlock()
	if r.subscriptions[sub.sessionID] == sub {
		delete(r.subscriptions, sub.sessionID)
	}
}
