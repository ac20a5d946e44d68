package server

import (
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// AssetStrategy resolves the asset backing the item worn in one slot. ok is
// false when the strategy cannot resolve it and the next strategy should run.
type AssetStrategy interface {
	ResolveAsset(logger *zap.Logger, inventory InventoryRoot, t WearableType, itemID uuid.UUID) (assetID uuid.UUID, ok bool)
}

// InventoryAssetStrategy looks the item up in the participant's inventory.
// An item worn in a slot other than its own type is still bound.
type InventoryAssetStrategy struct{}

func (InventoryAssetStrategy) ResolveAsset(logger *zap.Logger, inventory InventoryRoot, t WearableType, itemID uuid.UUID) (uuid.UUID, bool) {
	item, found := inventory.FindItem(itemID)
	if !found || item == nil {
		return uuid.Nil, false
	}
	if item.Type != t {
		logger.Warn("Inventory item worn in a different slot",
			zap.String("item_id", itemID.String()),
			zap.String("slot", t.String()),
			zap.String("item_type", item.Type.String()))
	}
	return item.AssetID, true
}

// DefaultAssetStrategy substitutes the default appearance's asset for the
// slot. It always succeeds.
type DefaultAssetStrategy struct {
	Defaults *AppearanceDefaults
	Metrics  Metrics
}

func (s DefaultAssetStrategy) ResolveAsset(logger *zap.Logger, _ InventoryRoot, t WearableType, itemID uuid.UUID) (uuid.UUID, bool) {
	logger.Error("Can't find inventory item, setting to default",
		zap.String("item_id", itemID.String()),
		zap.String("slot", t.String()))
	if s.Metrics != nil {
		s.Metrics.AppearanceBindFallback(t)
	}
	return s.Defaults.AssetID(t), true
}

// AssetBinder binds each worn item of an appearance to its asset.
type AssetBinder struct {
	logger     *zap.Logger
	metrics    Metrics
	defaults   *AppearanceDefaults
	strategies []AssetStrategy
}

// NewAssetBinder resolves through the inventory first and falls back to the
// defaults.
func NewAssetBinder(logger *zap.Logger, metrics Metrics, defaults *AppearanceDefaults) *AssetBinder {
	return NewAssetBinderWithStrategies(logger, metrics, defaults,
		InventoryAssetStrategy{},
		DefaultAssetStrategy{Defaults: defaults, Metrics: metrics},
	)
}

func NewAssetBinderWithStrategies(logger *zap.Logger, metrics Metrics, defaults *AppearanceDefaults, strategies ...AssetStrategy) *AssetBinder {
	return &AssetBinder{
		logger:     logger,
		metrics:    metrics,
		defaults:   defaults,
		strategies: strategies,
	}
}

func (b *AssetBinder) Defaults() *AppearanceDefaults {
	return b.defaults
}

// Bind sets the asset of every slot of appearance in slot order and returns
// it. A profile without an inventory leaves every binding as it was.
func (b *AssetBinder) Bind(profile Profile, appearance *Appearance) *Appearance {
	logger := b.logger.With(zap.String("uid", appearance.UserID.String()))

	inventory, ok := profileInventory(profile)
	if !ok {
		logger.Error("Profile has no inventory, appearance assets not bound")
		b.metrics.AppearanceBindNoInventory()
		return appearance
	}

	for i := range appearance.Wearables {
		w := &appearance.Wearables[i]
		if w.ItemID.IsNil() {
			w.AssetID = uuid.Nil
			continue
		}
		w.AssetID = b.resolveAsset(logger, inventory, WearableType(i), w.ItemID)
	}
	return appearance
}

func (b *AssetBinder) resolveAsset(logger *zap.Logger, inventory InventoryRoot, t WearableType, itemID uuid.UUID) uuid.UUID {
	for _, s := range b.strategies {
		if assetID, ok := s.ResolveAsset(logger, inventory, t, itemID); ok {
			return assetID
		}
	}
	// Unreachable with a DefaultAssetStrategy last.
	return b.defaults.AssetID(t)
}
