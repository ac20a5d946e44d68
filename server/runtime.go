package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"
)

const (
	RPCAppearanceGet     = "appearance/get"
	RPCAppearanceWearing = "appearance/wearing"

	EnvAppearanceConfig = "APPEARANCE_CONFIG"
)

// InitModule is the Nakama Go runtime entrypoint.
func InitModule(ctx context.Context, runtimeLogger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	config, err := LoadConfig(env[EnvAppearanceConfig])
	if err != nil {
		return fmt.Errorf("unable to load appearance config: %w", err)
	}
	if node, ok := ctx.Value(runtime.RUNTIME_CTX_NODE).(string); ok && node != "" {
		config.Name = node
	}

	logger, err := NewLogger(config.Logger)
	if err != nil {
		return fmt.Errorf("unable to create logger: %w", err)
	}
	logger = logger.With(zap.String("node", config.Name))

	metrics := NewLocalMetrics(logger, config.Metrics, config.Name)
	if port := config.Metrics.PrometheusPort; port > 0 {
		startMetricsServer(logger, port, metrics.Handler())
	}

	defaults, err := AppearanceDefaultsFromConfig(config.Appearance.DefaultWearables)
	if err != nil {
		return fmt.Errorf("unable to build default appearance: %w", err)
	}

	presences := NewLocalPresenceRegistry()

	var notifier AppearanceNotifier
	if config.Cluster.Enabled {
		redisClient, err := NewRedisClient(config.Cluster)
		if err != nil {
			return err
		}
		n := NewClusterAppearanceNotifier(ctx, logger, config.Cluster, config.Name, redisClient, presences)
		n.Start()
		notifier = n
	}

	service := NewAppearanceService(
		logger,
		config.Appearance,
		metrics,
		defaults,
		NewProfileCache(logger, nk, config.Appearance),
		NewStorageAppearanceStore(nk),
		presences,
		notifier,
	)

	if err := service.Register(initializer); err != nil {
		return err
	}

	runtimeLogger.Info("Appearance module loaded")
	return nil
}

// Register adds the appearance RPCs and session event handlers.
func (s *AppearanceService) Register(initializer runtime.Initializer) error {
	rpcs := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RPCAppearanceGet:     s.GetAppearanceRPC,
		RPCAppearanceWearing: s.NowWearingRPC,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return fmt.Errorf("unable to register %s rpc: %w", id, err)
		}
	}
	if err := initializer.RegisterEventSessionStart(s.sessionStartEvent); err != nil {
		return fmt.Errorf("unable to register session start event: %w", err)
	}
	if err := initializer.RegisterEventSessionEnd(s.sessionEndEvent); err != nil {
		return fmt.Errorf("unable to register session end event: %w", err)
	}
	return nil
}

func (s *AppearanceService) sessionStartEvent(ctx context.Context, _ runtime.Logger, _ *api.Event) {
	sessionID, userID, err := sessionFromContext(ctx)
	if err != nil {
		s.logger.Warn("Session start without session context", zap.Error(err))
		return
	}
	s.SessionStart(ctx, sessionID, userID)
}

func (s *AppearanceService) sessionEndEvent(ctx context.Context, _ runtime.Logger, _ *api.Event) {
	sessionID, _, err := sessionFromContext(ctx)
	if err != nil {
		s.logger.Warn("Session end without session context", zap.Error(err))
		return
	}
	s.SessionEnd(sessionID)
}

var (
	ErrNoUserInContext    = errors.New("no user ID in context")
	ErrNoSessionInContext = errors.New("no session ID in context")
)

func sessionFromContext(ctx context.Context) (sessionID, userID uuid.UUID, err error) {
	userIDStr, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID = uuid.FromStringOrNil(userIDStr); userID.IsNil() {
		return uuid.Nil, uuid.Nil, ErrNoUserInContext
	}
	sessionIDStr, _ := ctx.Value(runtime.RUNTIME_CTX_SESSION_ID).(string)
	if sessionID = uuid.FromStringOrNil(sessionIDStr); sessionID.IsNil() {
		return uuid.Nil, userID, ErrNoSessionInContext
	}
	return sessionID, userID, nil
}

func startMetricsServer(logger *zap.Logger, port int, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Starting Prometheus server for metrics requests", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Prometheus listener failed", zap.Error(err))
		}
	}()
	return server
}
