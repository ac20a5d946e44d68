package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	StorageCollectionAppearance = "Appearance"
	StorageKeyAppearance        = "current"
)

var ErrAppearanceNotFound = errors.New("appearance not found")

// AppearanceStore is the persisted user-record store for appearances.
type AppearanceStore interface {
	LoadAppearance(ctx context.Context, userID uuid.UUID) (*Appearance, error)
	StoreAppearance(ctx context.Context, userID uuid.UUID, appearance *Appearance) error
}

// AppearanceStorage is the storage object holding a user's appearance.
type AppearanceStorage struct {
	Appearance *Appearance `json:"appearance"`

	userID  string
	version string
}

func (s *AppearanceStorage) StorageMeta() StorableMetadata {
	return StorableMetadata{
		Collection:      StorageCollectionAppearance,
		Key:             StorageKeyAppearance,
		PermissionRead:  runtime.STORAGE_PERMISSION_PUBLIC_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		UserID:          s.userID,
		Version:         s.version,
	}
}

func (s *AppearanceStorage) SetStorageMeta(meta StorableMetadata) {
	s.userID = meta.UserID
	s.version = meta.Version
}

var _ AppearanceStore = (*StorageAppearanceStore)(nil)

// StorageAppearanceStore keeps appearances in Nakama storage. Writes are
// unconditional; the last write wins.
type StorageAppearanceStore struct {
	nk StorageModule
}

func NewStorageAppearanceStore(nk StorageModule) *StorageAppearanceStore {
	return &StorageAppearanceStore{nk: nk}
}

func (s *StorageAppearanceStore) LoadAppearance(ctx context.Context, userID uuid.UUID) (*Appearance, error) {
	storage := &AppearanceStorage{}
	if err := StorableRead(ctx, s.nk, userID.String(), storage); err != nil {
		if IsNotFound(err) {
			return nil, ErrAppearanceNotFound
		}
		return nil, fmt.Errorf("failed to load appearance: %w", err)
	}
	if storage.Appearance == nil {
		return nil, ErrAppearanceNotFound
	}
	storage.Appearance.UserID = userID
	return storage.Appearance, nil
}

func (s *StorageAppearanceStore) StoreAppearance(ctx context.Context, userID uuid.UUID, appearance *Appearance) error {
	storage := &AppearanceStorage{
		Appearance: appearance,
		userID:     userID.String(),
	}
	if err := StorableWrite(ctx, s.nk, storage); err != nil {
		return fmt.Errorf("failed to store appearance: %w", err)
	}
	return nil
}
