package server

import (
	"fmt"

	"github.com/gofrs/uuid/v5"
)

// defaultAppearance is built during package initialization, before any
// caller can read it, and is never handed out by reference.
var defaultAppearance = NewAppearanceDefaults(DefaultWearables())

// AppearanceDefaults is an immutable baseline appearance: the default worn set
// and the default visual params. The zero value is not usable; construct it
// with NewAppearanceDefaults.
type AppearanceDefaults struct {
	wearables [WearableSlotCount]Wearable
	params    [VisualParamCount]byte
}

func NewAppearanceDefaults(wearables [WearableSlotCount]Wearable) *AppearanceDefaults {
	return &AppearanceDefaults{
		wearables: wearables,
		params:    defaultVisualParams(),
	}
}

// DefaultAppearance returns a copy of the process-wide default appearance.
func DefaultAppearance() Appearance {
	return defaultAppearance.Appearance(uuid.Nil)
}

// DefaultAppearanceDefaults returns the process-wide defaults. The value is
// read-only; all accessors return copies.
func DefaultAppearanceDefaults() *AppearanceDefaults {
	return defaultAppearance
}

// DefaultWearablesAndParams returns copies of the process-wide default worn
// set and visual params.
func DefaultWearablesAndParams() ([WearableSlotCount]Wearable, [VisualParamCount]byte) {
	return defaultAppearance.WearablesAndParams()
}

// DefaultWearables is the stock default worn set: every slot empty.
func DefaultWearables() [WearableSlotCount]Wearable {
	return [WearableSlotCount]Wearable{}
}

func defaultVisualParams() [VisualParamCount]byte {
	var params [VisualParamCount]byte
	for i := range params {
		params[i] = DefaultVisualParamValue
	}
	return params
}

// Appearance returns a fresh default appearance scoped to userID.
func (d *AppearanceDefaults) Appearance(userID uuid.UUID) Appearance {
	return Appearance{
		UserID:       userID,
		Wearables:    d.wearables,
		VisualParams: d.params,
	}
}

// NewAppearance is Appearance returning a pointer the caller owns.
func (d *AppearanceDefaults) NewAppearance(userID uuid.UUID) *Appearance {
	a := d.Appearance(userID)
	return &a
}

// AssetID is the default asset for slot t, or uuid.Nil for an invalid slot.
func (d *AppearanceDefaults) AssetID(t WearableType) uuid.UUID {
	if !t.IsValid() {
		return uuid.Nil
	}
	return d.wearables[t].AssetID
}

// WearablesAndParams returns copies of the default worn set and visual params.
func (d *AppearanceDefaults) WearablesAndParams() ([WearableSlotCount]Wearable, [VisualParamCount]byte) {
	return d.wearables, d.params
}

// NewDefaultAppearance returns a participant-scoped copy of the process-wide
// default appearance.
func NewDefaultAppearance(userID uuid.UUID) *Appearance {
	return defaultAppearance.NewAppearance(userID)
}

// DefaultWearableConfig configures the worn item of one default slot.
type DefaultWearableConfig struct {
	Type    WearableType `yaml:"type" json:"type" validate:"gte=0,lt=13"`
	ItemID  string       `yaml:"item_id" json:"item_id" validate:"omitempty,uuid"`
	AssetID string       `yaml:"asset_id" json:"asset_id" validate:"omitempty,uuid"`
}

// AppearanceDefaultsFromConfig builds defaults from configured slots. Slots
// that are not configured stay empty.
func AppearanceDefaultsFromConfig(entries []DefaultWearableConfig) (*AppearanceDefaults, error) {
	wearables := DefaultWearables()
	for _, e := range entries {
		if !e.Type.IsValid() {
			return nil, fmt.Errorf("invalid default wearable type: %d", int(e.Type))
		}
		itemID, err := parseOptionalUUID(e.ItemID)
		if err != nil {
			return nil, fmt.Errorf("default %s item id: %w", e.Type, err)
		}
		assetID, err := parseOptionalUUID(e.AssetID)
		if err != nil {
			return nil, fmt.Errorf("default %s asset id: %w", e.Type, err)
		}
		wearables[e.Type] = Wearable{ItemID: itemID, AssetID: assetID}
	}
	return NewAppearanceDefaults(wearables), nil
}

func parseOptionalUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.FromString(s)
}
