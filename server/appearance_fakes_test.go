package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errStorageUnavailable = errors.New("storage unavailable")

type storageObjectKey struct {
	collection string
	key        string
	userID     string
}

// testNakamaModule is an in-memory ProfileModule.
type testNakamaModule struct {
	sync.Mutex
	objects   map[storageObjectKey]*api.StorageObject
	users     map[string]*api.User
	readErr   error
	writeErr  error
	reads     int
	writes    int
	userGets  int
	versionID int
}

func newTestNakamaModule() *testNakamaModule {
	return &testNakamaModule{
		objects: make(map[storageObjectKey]*api.StorageObject),
		users:   make(map[string]*api.User),
	}
}

func (m *testNakamaModule) addUser(userID uuid.UUID) {
	m.Lock()
	defer m.Unlock()
	m.users[userID.String()] = &api.User{Id: userID.String()}
}

func (m *testNakamaModule) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	m.Lock()
	defer m.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.reads++
	if m.readErr != nil {
		return nil, m.readErr
	}
	objs := make([]*api.StorageObject, 0, len(reads))
	for _, r := range reads {
		if obj, ok := m.objects[storageObjectKey{r.Collection, r.Key, r.UserID}]; ok {
			objs = append(objs, obj)
		}
	}
	return objs, nil
}

func (m *testNakamaModule) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	m.Lock()
	defer m.Unlock()
	m.writes++
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		key := storageObjectKey{w.Collection, w.Key, w.UserID}
		existing, exists := m.objects[key]
		switch {
		case w.Version == "*" && exists:
			return nil, fmt.Errorf("storage write rejected - version check failed")
		case w.Version != "" && w.Version != "*" && (!exists || existing.Version != w.Version):
			return nil, fmt.Errorf("storage write rejected - version check failed")
		}
		m.versionID++
		version := strconv.Itoa(m.versionID)
		m.objects[key] = &api.StorageObject{
			Collection:      w.Collection,
			Key:             w.Key,
			UserId:          w.UserID,
			Value:           w.Value,
			Version:         version,
			PermissionRead:  int32(w.PermissionRead),
			PermissionWrite: int32(w.PermissionWrite),
		}
		acks = append(acks, &api.StorageObjectAck{
			Collection: w.Collection,
			Key:        w.Key,
			Version:    version,
			UserId:     w.UserID,
		})
	}
	return acks, nil
}

func (m *testNakamaModule) UsersGetId(ctx context.Context, userIDs []string, facebookIDs []string) ([]*api.User, error) {
	m.Lock()
	defer m.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.userGets++
	users := make([]*api.User, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := m.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (m *testNakamaModule) object(collection, key string, userID uuid.UUID) (*api.StorageObject, bool) {
	m.Lock()
	defer m.Unlock()
	obj, ok := m.objects[storageObjectKey{collection, key, userID.String()}]
	return obj, ok
}

// testProfiles is a fixed ProfileLookup.
type testProfiles map[uuid.UUID]Profile

func (p testProfiles) GetUserDetails(_ context.Context, userID uuid.UUID) (Profile, bool) {
	profile, ok := p[userID]
	return profile, ok
}

// testAppearanceStore is an in-memory AppearanceStore.
type testAppearanceStore struct {
	sync.Mutex
	appearances map[uuid.UUID]*Appearance
	loadErr     error
	storeErr    error
	stores      int
}

func newTestAppearanceStore() *testAppearanceStore {
	return &testAppearanceStore{appearances: make(map[uuid.UUID]*Appearance)}
}

func (s *testAppearanceStore) LoadAppearance(_ context.Context, userID uuid.UUID) (*Appearance, error) {
	s.Lock()
	defer s.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	a, ok := s.appearances[userID]
	if !ok {
		return nil, ErrAppearanceNotFound
	}
	return a.Clone(), nil
}

func (s *testAppearanceStore) StoreAppearance(_ context.Context, userID uuid.UUID, appearance *Appearance) error {
	s.Lock()
	defer s.Unlock()
	s.stores++
	if s.storeErr != nil {
		return s.storeErr
	}
	s.appearances[userID] = appearance.Clone()
	return nil
}

func (s *testAppearanceStore) get(userID uuid.UUID) (*Appearance, bool) {
	s.Lock()
	defer s.Unlock()
	a, ok := s.appearances[userID]
	return a.Clone(), ok
}

type publishedAppearance struct {
	sessionID  uuid.UUID
	appearance *Appearance
}

// testNotifier records published appearances.
type testNotifier struct {
	sync.Mutex
	published []publishedAppearance
}

func (n *testNotifier) AppearancePublished(presence *Presence, appearance *Appearance) {
	n.Lock()
	defer n.Unlock()
	n.published = append(n.published, publishedAppearance{presence.SessionID, appearance.Clone()})
}

func (n *testNotifier) count() int {
	n.Lock()
	defer n.Unlock()
	return len(n.published)
}

func (n *testNotifier) last() publishedAppearance {
	n.Lock()
	defer n.Unlock()
	return n.published[len(n.published)-1]
}

func newObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func newTestMetrics() (*LocalMetrics, tally.TestScope) {
	scope := tally.NewTestScope("", nil)
	return NewScopeMetrics(zap.NewNop(), scope), scope
}

// counterValue sums the counters named name whose tags include tags.
func counterValue(scope tally.TestScope, name string, tags ...string) int64 {
	var total int64
	for _, c := range scope.Snapshot().Counters() {
		if c.Name() != name || !hasTags(c.Tags(), tags) {
			continue
		}
		total += c.Value()
	}
	return total
}

func hasTags(have map[string]string, kv []string) bool {
	for i := 0; i+1 < len(kv); i += 2 {
		if have[kv[i]] != kv[i+1] {
			return false
		}
	}
	return true
}

func newTestUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.Must(uuid.NewV4())
}

// appearanceFixture wires the appearance components over in-memory fakes.
type appearanceFixture struct {
	logger    *zap.Logger
	logs      *observer.ObservedLogs
	metrics   *LocalMetrics
	scope     tally.TestScope
	defaults  *AppearanceDefaults
	profiles  testProfiles
	store     *testAppearanceStore
	presences *LocalPresenceRegistry
	notifier  *testNotifier
	service   *AppearanceService
}

func newAppearanceFixture(t *testing.T, config *AppearanceConfig) *appearanceFixture {
	t.Helper()
	if config == nil {
		config = NewAppearanceConfig()
	}
	logger, logs := newObservedLogger(zapcore.DebugLevel)
	metrics, scope := newTestMetrics()
	f := &appearanceFixture{
		logger:    logger,
		logs:      logs,
		metrics:   metrics,
		scope:     scope,
		defaults:  DefaultAppearanceDefaults(),
		profiles:  make(testProfiles),
		store:     newTestAppearanceStore(),
		presences: NewLocalPresenceRegistry(),
		notifier:  &testNotifier{},
	}
	f.service = NewAppearanceService(logger, config, metrics, f.defaults, f.profiles, f.store, f.presences, f.notifier)
	return f
}

// addParticipant registers a profile whose inventory holds items.
func (f *appearanceFixture) addParticipant(userID uuid.UUID, items ...*InventoryItem) {
	f.profiles[userID] = NewUserProfile(userID, NewItemIndex(items...))
}
