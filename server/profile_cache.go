package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	StorageCollectionInventory = "Inventory"
	StorageKeyInventory        = "wearables"
)

// ProfileModule is the subset of runtime.NakamaModule used to load profiles.
type ProfileModule interface {
	StorageModule
	UsersGetId(ctx context.Context, userIDs []string, facebookIDs []string) ([]*api.User, error)
}

// InventoryStorage is the storage object listing a user's wearable items.
type InventoryStorage struct {
	Items []*InventoryItem `json:"items"`

	collection string
	key        string
	userID     string
	version    string
}

func (s *InventoryStorage) StorageMeta() StorableMetadata {
	return StorableMetadata{
		Collection:      s.collection,
		Key:             s.key,
		PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		UserID:          s.userID,
		Version:         s.version,
	}
}

func (s *InventoryStorage) SetStorageMeta(meta StorableMetadata) {
	s.userID = meta.UserID
	s.version = meta.Version
}

type profileCacheEntry struct {
	profile Profile
	expiry  time.Time
}

var _ ProfileLookup = (*ProfileCache)(nil)

// ProfileCache caches user profiles with their wearable inventory. Users
// that don't exist are not cached.
type ProfileCache struct {
	sync.RWMutex
	logger *zap.Logger
	nk     ProfileModule
	config *AppearanceConfig
	now    func() time.Time

	loadGroup singleflight.Group
	profiles  map[uuid.UUID]*profileCacheEntry
}

func NewProfileCache(logger *zap.Logger, nk ProfileModule, config *AppearanceConfig) *ProfileCache {
	return &ProfileCache{
		logger: logger,
		nk:     nk,
		config: config,
		now:    time.Now,

		profiles: make(map[uuid.UUID]*profileCacheEntry),
	}
}

func (c *ProfileCache) GetUserDetails(ctx context.Context, userID uuid.UUID) (Profile, bool) {
	if profile, ok := c.cached(userID); ok {
		return profile, true
	}

	// Shared by every waiting caller; detached from the first caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	result, err, _ := c.loadGroup.Do(userID.String(), func() (interface{}, error) {
		if profile, ok := c.cached(userID); ok {
			return profile, nil
		}
		profile, err := c.load(loadCtx, userID)
		if err != nil || profile == nil {
			return nil, err
		}
		c.store(userID, profile)
		return profile, nil
	})
	if err != nil {
		c.logger.Warn("Failed to load profile", zap.String("uid", userID.String()), zap.Error(err))
		return nil, false
	}
	if result == nil {
		return nil, false
	}
	return result.(Profile), true
}

// Invalidate drops the cached profile so the next lookup reloads it.
func (c *ProfileCache) Invalidate(userID uuid.UUID) {
	c.Lock()
	delete(c.profiles, userID)
	c.Unlock()
}

func (c *ProfileCache) cached(userID uuid.UUID) (Profile, bool) {
	c.RLock()
	entry, ok := c.profiles[userID]
	c.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expiry.IsZero() && c.now().After(entry.expiry) {
		c.evict(userID, entry)
		return nil, false
	}
	return entry.profile, true
}

// evict drops entry unless it has already been replaced.
func (c *ProfileCache) evict(userID uuid.UUID, entry *profileCacheEntry) {
	c.Lock()
	defer c.Unlock()
	if c.profiles[userID] == entry {
		delete(c.profiles, userID)
	}
}

func (c *ProfileCache) store(userID uuid.UUID, profile Profile) {
	entry := &profileCacheEntry{profile: profile}
	if ttl := c.config.GetProfileCacheTTL(); ttl > 0 {
		entry.expiry = c.now().Add(ttl)
	}
	c.Lock()
	c.profiles[userID] = entry
	c.Unlock()
}

// load returns nil without error when the user doesn't exist.
func (c *ProfileCache) load(ctx context.Context, userID uuid.UUID) (Profile, error) {
	users, err := c.nk.UsersGetId(ctx, []string{userID.String()}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	storage := &InventoryStorage{
		collection: c.config.InventoryCollection,
		key:        c.config.InventoryKey,
	}
	if err := StorableRead(ctx, c.nk, userID.String(), storage); err != nil {
		if IsNotFound(err) {
			return NewUserProfile(userID, nil), nil
		}
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	return NewUserProfile(userID, NewItemIndex(storage.Items...)), nil
}
