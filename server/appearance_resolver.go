package server

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// AppearanceResolver produces the best known appearance of a participant.
type AppearanceResolver struct {
	logger   *zap.Logger
	metrics  Metrics
	profiles ProfileLookup
	store    AppearanceStore
	binder   *AssetBinder
}

func NewAppearanceResolver(logger *zap.Logger, metrics Metrics, profiles ProfileLookup, store AppearanceStore, binder *AssetBinder) *AppearanceResolver {
	return &AppearanceResolver{
		logger:   logger,
		metrics:  metrics,
		profiles: profiles,
		store:    store,
		binder:   binder,
	}
}

// Resolve returns the participant's persisted appearance bound to their
// inventory, or a fresh default appearance with found=false. It never
// persists anything; storing a default is the caller's decision.
func (r *AppearanceResolver) Resolve(ctx context.Context, userID uuid.UUID) (appearance *Appearance, found bool) {
	logger := r.logger.With(zap.String("uid", userID.String()))

	if appearance, ok := r.resolvePersisted(ctx, logger, userID); ok {
		logger.Info("Appearance found", zap.Stringer("appearance", appearance))
		r.metrics.AppearanceResolved(true)
		return appearance, true
	}

	logger.Info("Appearance not found, creating default")
	r.metrics.AppearanceResolved(false)
	return r.binder.Defaults().NewAppearance(userID), false
}

func (r *AppearanceResolver) resolvePersisted(ctx context.Context, logger *zap.Logger, userID uuid.UUID) (*Appearance, bool) {
	profile, ok := r.profiles.GetUserDetails(ctx, userID)
	if !ok {
		logger.Debug("No profile for participant")
		return nil, false
	}
	if _, ok := profileInventory(profile); !ok {
		logger.Debug("Profile has no inventory")
		return nil, false
	}

	appearance, err := r.store.LoadAppearance(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrAppearanceNotFound) {
			logger.Warn("Failed to load appearance", zap.Error(err))
			r.metrics.AppearanceStoreError()
		}
		return nil, false
	}
	if appearance == nil {
		return nil, false
	}
	appearance.UserID = userID

	return r.binder.Bind(profile, appearance), true
}
