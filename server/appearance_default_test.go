package server

import (
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAppearance(t *testing.T) {
	a := DefaultAppearance()

	assert.Equal(t, uuid.Nil, a.UserID)
	assert.Equal(t, int64(0), a.Serial)
	for i, w := range a.Wearables {
		assert.True(t, w.IsEmpty(), "slot %s", WearableType(i))
		assert.Equal(t, uuid.Nil, w.AssetID, "slot %s", WearableType(i))
	}
	require.Len(t, a.VisualParams, 218)
	for i, p := range a.VisualParams {
		assert.Equal(t, byte(100), p, "param %d", i)
	}
}

func TestDefaultAppearanceIsStable(t *testing.T) {
	first := DefaultAppearance()
	first.VisualParams[10] = 0
	first.SetItem(int(WearableSkin), uuid.Must(uuid.NewV4()))

	assert.Equal(t, DefaultAppearance(), DefaultAppearance())
	second := DefaultAppearance()
	assert.Equal(t, DefaultVisualParamValue, second.VisualParams[10])
	assert.True(t, second.Wearables[WearableSkin].IsEmpty())
}

func TestNewDefaultAppearanceScopesUser(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	a := NewDefaultAppearance(userID)
	b := NewDefaultAppearance(userID)

	assert.Equal(t, userID, a.UserID)
	assert.NotSame(t, a, b)

	want := DefaultAppearance()
	want.UserID = userID
	assert.Equal(t, want, *a)
}

func TestAppearanceDefaultsWearablesAndParams(t *testing.T) {
	wearables, params := DefaultWearablesAndParams()
	assert.Equal(t, DefaultWearables(), wearables)

	params[0] = 0
	_, again := DefaultAppearanceDefaults().WearablesAndParams()
	assert.Equal(t, DefaultVisualParamValue, again[0])
}

func TestAppearanceDefaultsFromConfig(t *testing.T) {
	skinItem := uuid.Must(uuid.NewV4())
	skinAsset := uuid.Must(uuid.NewV4())

	defaults, err := AppearanceDefaultsFromConfig([]DefaultWearableConfig{
		{Type: WearableSkin, ItemID: skinItem.String(), AssetID: skinAsset.String()},
		{Type: WearableEyes},
	})
	require.NoError(t, err)

	assert.Equal(t, skinAsset, defaults.AssetID(WearableSkin))
	assert.Equal(t, uuid.Nil, defaults.AssetID(WearableEyes))
	assert.Equal(t, uuid.Nil, defaults.AssetID(WearableType(99)))

	a := defaults.Appearance(uuid.Nil)
	assert.Equal(t, Wearable{ItemID: skinItem, AssetID: skinAsset}, a.Wearables[WearableSkin])
	assert.True(t, a.Wearables[WearableShape].IsEmpty())
}

func TestAppearanceDefaultsFromConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		entries []DefaultWearableConfig
	}{
		{"invalid slot", []DefaultWearableConfig{{Type: WearableType(13)}}},
		{"invalid item id", []DefaultWearableConfig{{Type: WearableHair, ItemID: "not-a-uuid"}}},
		{"invalid asset id", []DefaultWearableConfig{{Type: WearableHair, AssetID: "nope"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AppearanceDefaultsFromConfig(tt.entries)
			assert.Error(t, err)
		})
	}
}
