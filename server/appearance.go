package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
)

const (
	WearableSlotCount       = 13
	VisualParamCount        = 218
	DefaultVisualParamValue = byte(100)
)

// WearableType is the kind of item worn in a wearable slot. The value is the
// slot's position in Appearance.Wearables.
type WearableType int

const (
	WearableShape WearableType = iota
	WearableSkin
	WearableHair
	WearableEyes
	WearableShirt
	WearablePants
	WearableShoes
	WearableSocks
	WearableJacket
	WearableGloves
	WearableUndershirt
	WearableUnderpants
	WearableSkirt
)

var wearableTypeNames = [WearableSlotCount]string{
	"shape",
	"skin",
	"hair",
	"eyes",
	"shirt",
	"pants",
	"shoes",
	"socks",
	"jacket",
	"gloves",
	"undershirt",
	"underpants",
	"skirt",
}

// WearableTypeFromIndex maps a protocol slot index to a wearable type.
// Indexes outside [0, WearableSlotCount) are rejected.
func WearableTypeFromIndex(i int) (WearableType, bool) {
	if i < 0 || i >= WearableSlotCount {
		return 0, false
	}
	return WearableType(i), true
}

func ParseWearableType(s string) (WearableType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range wearableTypeNames {
		if n == name {
			return WearableType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown wearable type: %q", s)
}

func (t WearableType) IsValid() bool {
	return t >= 0 && int(t) < WearableSlotCount
}

func (t WearableType) String() string {
	if !t.IsValid() {
		return fmt.Sprintf("wearable(%d)", int(t))
	}
	return wearableTypeNames[t]
}

func (t WearableType) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid wearable type: %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *WearableType) UnmarshalText(data []byte) error {
	v, err := ParseWearableType(string(data))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Wearable binds an inventory item to the asset that renders it.
// A nil ItemID means nothing is worn in the slot.
type Wearable struct {
	ItemID  uuid.UUID `json:"item_id"`
	AssetID uuid.UUID `json:"asset_id"`
}

func (w Wearable) IsEmpty() bool {
	return w.ItemID.IsNil()
}

// Appearance is the visual description of one participant.
type Appearance struct {
	UserID       uuid.UUID                   `json:"user_id"`
	Serial       int64                       `json:"serial"`
	Wearables    [WearableSlotCount]Wearable `json:"wearables"`
	VisualParams [VisualParamCount]byte      `json:"visual_params"`
}

// Clone returns a deep copy. Wearables and VisualParams are arrays, so a
// struct copy is sufficient.
func (a *Appearance) Clone() *Appearance {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func (a *Appearance) Wearable(t WearableType) (Wearable, bool) {
	if !t.IsValid() {
		return Wearable{}, false
	}
	return a.Wearables[t], true
}

// SetItem overwrites the item worn at index i. It reports false and leaves the
// appearance untouched when i is not a valid slot index.
func (a *Appearance) SetItem(i int, itemID uuid.UUID) bool {
	t, ok := WearableTypeFromIndex(i)
	if !ok {
		return false
	}
	a.Wearables[t].ItemID = itemID
	return true
}

func (a *Appearance) String() string {
	parts := make([]string, 0, WearableSlotCount)
	for i, w := range a.Wearables {
		if w.IsEmpty() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s/%s", WearableType(i), w.ItemID, w.AssetID))
	}
	return fmt.Sprintf("appearance{user=%s serial=%d wearables=[%s]}", a.UserID, a.Serial, strings.Join(parts, " "))
}

// appearanceJSON accepts param vectors of any length. Missing params take the
// default value, extra params are discarded.
type appearanceJSON struct {
	UserID       uuid.UUID                   `json:"user_id"`
	Serial       int64                       `json:"serial"`
	Wearables    [WearableSlotCount]Wearable `json:"wearables"`
	VisualParams []int                       `json:"visual_params"`
}

func (a Appearance) MarshalJSON() ([]byte, error) {
	params := make([]int, VisualParamCount)
	for i, p := range a.VisualParams {
		params[i] = int(p)
	}
	return json.Marshal(appearanceJSON{
		UserID:       a.UserID,
		Serial:       a.Serial,
		Wearables:    a.Wearables,
		VisualParams: params,
	})
}

func (a *Appearance) UnmarshalJSON(data []byte) error {
	var v appearanceJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	a.UserID = v.UserID
	a.Serial = v.Serial
	a.Wearables = v.Wearables
	a.VisualParams = defaultVisualParams()
	for i, p := range v.VisualParams {
		if i >= VisualParamCount {
			break
		}
		if p < 0 || p > 255 {
			return fmt.Errorf("visual param %d out of range: %d", i, p)
		}
		a.VisualParams[i] = byte(p)
	}
	return nil
}
