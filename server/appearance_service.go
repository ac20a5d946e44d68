package server

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

type profileInvalidator interface {
	Invalidate(userID uuid.UUID)
}

// AppearanceService wires the appearance components for one node.
type AppearanceService struct {
	logger  *zap.Logger
	config  *AppearanceConfig
	metrics Metrics

	profiles      ProfileLookup
	store         AppearanceStore
	presences     *LocalPresenceRegistry
	binder        *AssetBinder
	resolver      *AppearanceResolver
	handler       *WearableChangeHandler
	subscriptions *SubscriptionRegistry
}

// NewAppearanceService builds the service. notifier may be nil.
func NewAppearanceService(logger *zap.Logger, config *AppearanceConfig, metrics Metrics, defaults *AppearanceDefaults, profiles ProfileLookup, store AppearanceStore, presences *LocalPresenceRegistry, notifier AppearanceNotifier) *AppearanceService {
	binder := NewAssetBinder(logger, metrics, defaults)
	resolver := NewAppearanceResolver(logger, metrics, profiles, store, binder)
	handler := NewWearableChangeHandler(logger, metrics, presences, profiles, store, resolver, binder, notifier)

	return &AppearanceService{
		logger:  logger,
		config:  config,
		metrics: metrics,

		profiles:      profiles,
		store:         store,
		presences:     presences,
		binder:        binder,
		resolver:      resolver,
		handler:       handler,
		subscriptions: NewSubscriptionRegistry(handler, config.WearingRatePerSec, config.WearingBurst),
	}
}

// ResolveAppearance returns the participant's appearance. found is false when
// the appearance is a fabricated default rather than the participant's record.
func (s *AppearanceService) ResolveAppearance(ctx context.Context, userID uuid.UUID) (found bool, appearance *Appearance) {
	appearance, found = s.resolver.Resolve(ctx, userID)
	return found, appearance
}

// SessionStart registers the session's presence with the participant's
// resolved appearance and subscribes it to wearing reports.
func (s *AppearanceService) SessionStart(ctx context.Context, sessionID, userID uuid.UUID) *WearingSubscription {
	appearance, found := s.resolver.Resolve(ctx, userID)
	if !found && s.config.PersistDefaults {
		if err := s.store.StoreAppearance(ctx, userID, appearance); err != nil {
			s.logger.Warn("Failed to store default appearance", zap.String("uid", userID.String()), zap.Error(err))
			s.metrics.AppearanceStoreError()
		}
	}
	s.presences.Add(NewPresence(sessionID, userID, appearance))
	return s.subscriptions.Subscribe(sessionID)
}

// SessionEnd unsubscribes the session and drops its presence. The profile is
// forgotten once the participant has no presence left on this node.
func (s *AppearanceService) SessionEnd(sessionID uuid.UUID) {
	s.subscriptions.Unsubscribe(sessionID)
	presence, ok := s.presences.Remove(sessionID)
	if !ok {
		return
	}
	if len(s.presences.ListByUser(presence.UserID)) > 0 {
		return
	}
	if inv, ok := s.profiles.(profileInvalidator); ok {
		inv.Invalidate(presence.UserID)
	}
}

// NowWearing delivers a now-wearing report through the session's subscription.
// Sessions without one are ignored.
func (s *AppearanceService) NowWearing(ctx context.Context, sessionID uuid.UUID, nowWearing []WornItem) WearingOutcome {
	sub, ok := s.subscriptions.Get(sessionID)
	if !ok {
		s.logger.Info("Session is not subscribed, ignoring wearing event", zap.String("sid", sessionID.String()))
		s.metrics.WearingIgnored()
		return WearingIgnored
	}
	outcome, err := sub.Notify(ctx, nowWearing)
	if err != nil {
		s.logger.Debug("Wearing event not delivered", zap.String("sid", sessionID.String()), zap.Error(err))
		s.metrics.WearingIgnored()
		return WearingIgnored
	}
	return outcome
}

// UpdateDatabase persists appearance as the participant's record.
func (s *AppearanceService) UpdateDatabase(ctx context.Context, userID uuid.UUID, appearance *Appearance) error {
	if appearance == nil {
		return fmt.Errorf("appearance is nil")
	}
	a := appearance.Clone()
	a.UserID = userID
	return s.store.StoreAppearance(ctx, userID, a)
}

func (s *AppearanceService) Presences() *LocalPresenceRegistry {
	return s.presences
}

func (s *AppearanceService) Subscriptions() *SubscriptionRegistry {
	return s.subscriptions
}
