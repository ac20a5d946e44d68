package server

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// WornItem is one entry of a client's now-wearing report. Type is the raw
// protocol slot index and may be out of range.
type WornItem struct {
	Type   int       `json:"type"`
	ItemID uuid.UUID `json:"item_id"`
}

type WearingOutcome int

const (
	// WearingIgnored: the session has no live presence.
	WearingIgnored WearingOutcome = iota
	// WearingAborted: the participant has no profile or inventory.
	WearingAborted
	// WearingApplied: the appearance was updated, persisted and published.
	WearingApplied
)

func (o WearingOutcome) String() string {
	switch o {
	case WearingIgnored:
		return "ignored"
	case WearingAborted:
		return "aborted"
	case WearingApplied:
		return "applied"
	}
	return "unknown"
}

// AppearanceNotifier is told about every published appearance.
type AppearanceNotifier interface {
	AppearancePublished(presence *Presence, appearance *Appearance)
}

// WearableChangeHandler applies now-wearing reports to a participant's
// appearance. Reports for the same participant are applied one at a time in
// lock order; reports for different participants run concurrently.
type WearableChangeHandler struct {
	logger    *zap.Logger
	metrics   Metrics
	presences PresenceLookup
	profiles  ProfileLookup
	store     AppearanceStore
	resolver  *AppearanceResolver
	binder    *AssetBinder
	notifier  AppearanceNotifier

	userLocks *keyedMutex
}

func NewWearableChangeHandler(logger *zap.Logger, metrics Metrics, presences PresenceLookup, profiles ProfileLookup, store AppearanceStore, resolver *AppearanceResolver, binder *AssetBinder, notifier AppearanceNotifier) *WearableChangeHandler {
	return &WearableChangeHandler{
		logger:    logger,
		metrics:   metrics,
		presences: presences,
		profiles:  profiles,
		store:     store,
		resolver:  resolver,
		binder:    binder,
		notifier:  notifier,

		userLocks: newKeyedMutex(),
	}
}

func (h *WearableChangeHandler) OnWearableChange(ctx context.Context, sessionID uuid.UUID, nowWearing []WornItem) WearingOutcome {
	startTime := time.Now()
	logger := h.logger.With(zap.String("sid", sessionID.String()))

	presence, ok := h.presences.GetPresence(sessionID)
	if !ok {
		logger.Info("Session has no presence, ignoring wearing event")
		h.metrics.WearingIgnored()
		return WearingIgnored
	}
	logger = logger.With(zap.String("uid", presence.UserID.String()))

	unlock := h.userLocks.Lock(presence.UserID)
	defer unlock()

	// Items granted since the profile was cached must bind to their assets.
	if inv, ok := h.profiles.(profileInvalidator); ok {
		inv.Invalidate(presence.UserID)
	}

	appearance, found := h.resolver.Resolve(ctx, presence.UserID)
	if !found {
		if current := presence.CurrentAppearance(); current != nil {
			logger.Info("Appearance not found, falling back to presence appearance")
			appearance = current
		}
	}

	profile, ok := h.profiles.GetUserDetails(ctx, presence.UserID)
	if !ok {
		logger.Error("Profile is missing, can't set the appearance")
		h.metrics.WearingAborted()
		return WearingAborted
	}
	if _, ok := profileInventory(profile); !ok {
		logger.Error("Profile has no inventory, can't set the appearance")
		h.metrics.WearingAborted()
		return WearingAborted
	}

	if dropped := applyWornItems(appearance, nowWearing); len(dropped) > 0 {
		logger.Debug("Dropped out of range wearable slots", zap.Ints("slots", dropped))
		h.metrics.WearingSlotsDropped(int64(len(dropped)))
	}

	h.binder.Bind(profile, appearance)
	appearance.Serial++

	if err := h.store.StoreAppearance(ctx, presence.UserID, appearance); err != nil {
		logger.Warn("Failed to persist appearance", zap.Error(err))
		h.metrics.AppearanceStoreError()
	}

	presence.SetCurrentAppearance(appearance)
	if h.notifier != nil {
		h.notifier.AppearancePublished(presence, appearance)
	}

	logger.Debug("Appearance updated", zap.Stringer("appearance", appearance))
	h.metrics.WearingApplied(time.Since(startTime))
	return WearingApplied
}

// applyWornItems overwrites the item of every in-range slot and returns the
// slot indexes that were dropped.
func applyWornItems(appearance *Appearance, nowWearing []WornItem) []int {
	var dropped []int
	for _, w := range nowWearing {
		if !appearance.SetItem(w.Type, w.ItemID) {
			dropped = append(dropped, w.Type)
		}
	}
	return dropped
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*keyedLock)}
}

func (k *keyedMutex) Lock(key uuid.UUID) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
