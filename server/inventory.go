package server

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// InventoryItem is an item in a participant's inventory.
type InventoryItem struct {
	ID      uuid.UUID    `json:"id"`
	AssetID uuid.UUID    `json:"asset_id"`
	Name    string       `json:"name,omitempty"`
	Type    WearableType `json:"type"`
}

// InventoryRoot finds items in a participant's inventory.
type InventoryRoot interface {
	FindItem(itemID uuid.UUID) (*InventoryItem, bool)
}

// Profile is a cached user profile. InventoryRoot reports false when the
// profile has no inventory.
type Profile interface {
	UserID() uuid.UUID
	InventoryRoot() (InventoryRoot, bool)
}

// ProfileLookup finds the cached profile of a participant.
type ProfileLookup interface {
	GetUserDetails(ctx context.Context, userID uuid.UUID) (Profile, bool)
}

// ItemIndex is an in-memory InventoryRoot.
type ItemIndex map[uuid.UUID]*InventoryItem

func NewItemIndex(items ...*InventoryItem) ItemIndex {
	idx := make(ItemIndex, len(items))
	for _, item := range items {
		if item == nil || item.ID.IsNil() {
			continue
		}
		idx[item.ID] = item
	}
	return idx
}

func (idx ItemIndex) FindItem(itemID uuid.UUID) (*InventoryItem, bool) {
	item, ok := idx[itemID]
	return item, ok
}

// UserProfile is the Profile implementation held by the ProfileCache.
type UserProfile struct {
	userID    uuid.UUID
	inventory InventoryRoot
}

func NewUserProfile(userID uuid.UUID, inventory InventoryRoot) *UserProfile {
	return &UserProfile{
		userID:    userID,
		inventory: inventory,
	}
}

func (p *UserProfile) UserID() uuid.UUID {
	return p.userID
}

func (p *UserProfile) InventoryRoot() (InventoryRoot, bool) {
	if p == nil || p.inventory == nil {
		return nil, false
	}
	return p.inventory, true
}

func profileInventory(p Profile) (InventoryRoot, bool) {
	if p == nil {
		return nil, false
	}
	return p.InventoryRoot()
}
