package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/broadcaster"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/codec"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/controller"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/registry"
	roomRepo "github.com/rodolfoescobarrios/inmersion-mrg/internal/repository/room"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/repository/room/inmemory"
	roomRedis "github.com/rodolfoescobarrios/inmersion-mrg/internal/repository/room/redis"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/service/room"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/transport/ws"
	"github.com/rodolfoescobarrios/inmersion-mrg/pkg/ctxlogger"
	"github.com/rodolfoescobarrios/inmersion-mrg/pkg/redisclient"
)

const (
	BackendLocal = "local"
	BackendRedis = "redis"

	shutdownTimeout = 30 * time.Second
)

type AppConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	LogLevel      string        `json:"log_level"`
	Backend       string        `json:"backend"`
	ExcludeSender bool          `json:"exclude_sender"`
	StrictRooms   bool          `json:"strict_rooms"`
	SendBuffer    int           `json:"send_buffer"`
	WSReadLimit   int64         `json:"ws_read_limit"`
	WSPingPeriod  time.Duration `json:"ws_ping_period"`
	WSPongWait    time.Duration `json:"ws_pong_wait"`
	WSWriteWait   time.Duration `json:"ws_write_wait"`
	RedisPort     int           `json:"redis_port"`
	RedisHost     string        `json:"redis_host"`
	RedisPassword string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	var errs []error
	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 0 and 65535"))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", cfg.LogLevel))
	}
	if cfg.Backend != BackendLocal && cfg.Backend != BackendRedis {
		errs = append(errs, fmt.Errorf("backend must be %q or %q", BackendLocal, BackendRedis))
	}
	if cfg.SendBuffer < 1 {
		errs = append(errs, fmt.Errorf("send buffer must be greater than 0"))
	}
	if cfg.WSReadLimit < 1 {
		errs = append(errs, fmt.Errorf("ws read limit must be greater than 0"))
	}
	if cfg.WSPingPeriod <= 0 || cfg.WSPongWait <= 0 || cfg.WSWriteWait <= 0 {
		errs = append(errs, fmt.Errorf("ws timeouts must be positive"))
	}
	if cfg.WSPingPeriod >= cfg.WSPongWait {
		errs = append(errs, fmt.Errorf("ws ping period must be shorter than pong wait"))
	}
	return errors.Join(errs...)
}

func (cfg *AppConfig) wsConfig() ws.Config {
	return ws.Config{
		ReadLimit:  cfg.WSReadLimit,
		PingPeriod: cfg.WSPingPeriod,
		PongWait:   cfg.WSPongWait,
		WriteWait:  cfg.WSWriteWait,
	}
}

type iBroadcaster interface {
	Join(ctx context.Context, roomID string, m registry.Member) error
	Leave(ctx context.Context, roomID string, m registry.Member) error
	Publish(ctx context.Context, roomID string, e codec.Event, exclude registry.Member) error
	Stats() (rooms, members int)
}

type iRoomRepo interface {
	EnsureRoom(context.Context, *roomRepo.EnsureRoomParams) (roomRepo.EnsureRoomResult, error)
	GetRoom(context.Context, string) (roomRepo.Room, error)
	GetPatientRoom(context.Context, string) (roomRepo.Room, error)
	IsRoomExists(context.Context, string) (bool, error)
}

// App is one wired server process.
type App struct {
	handler http.Handler
	closers []func() error
}

// New wires the app for cfg. With the redis backend rc is used when it is
// not nil, otherwise a client is created from cfg and closed with the app.
func New(ctx context.Context, cfg *AppConfig, rc *redis.Client, logger *slog.Logger) (*App, error) {
	a := &App{}
	reg := registry.New(logger)

	var (
		b    iBroadcaster
		repo iRoomRepo
	)
	switch cfg.Backend {
	case BackendRedis:
		if rc == nil {
			var err error
			rc, err = redisclient.NewRedisClient(ctx, &redisclient.Config{
				Port:     cfg.RedisPort,
				Host:     cfg.RedisHost,
				Password: cfg.RedisPassword,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create redis client: %w", err)
			}
			a.closers = append(a.closers, rc.Close)
		}

		relay := broadcaster.NewRelay(rc, reg, logger)
		// closers run in reverse, so the relay stops before its client
		a.closers = append(a.closers, relay.Close)
		b = relay
		repo = roomRedis.NewRepo(rc)
	default:
		b = broadcaster.NewLocal(reg, logger)
		repo = inmemory.NewRepo()
	}

	roomService := room.NewService(repo, logger)
	a.handler = controller.NewController(roomService, b, logger, controller.Config{
		ExcludeSender: cfg.ExcludeSender,
		StrictRooms:   cfg.StrictRooms,
		SendBuffer:    cfg.SendBuffer,
		WS:            cfg.wsConfig(),
	}).GetMux()

	return a, nil
}

func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newLogger(cfg *AppConfig) *slog.Logger {
	logLevel := slog.LevelInfo
	logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel)))

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h)
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg)

	a, err := New(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// sessions outlive their hijacked requests, so they watch this context
	// to be told about shutdown
	sessionsCtx, cancelSessions := context.WithCancel(ctx)
	defer cancelSessions()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: a.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return sessionsCtx
		},
	}
	server.RegisterOnShutdown(cancelSessions)

	// graceful shutdown
	serverCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	var wg conc.WaitGroup
	serveErr := make(chan error, 1)
	wg.Go(func() {
		logger.InfoContext(serverCtx, "starting server", "address", server.Addr, "backend", cfg.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	})

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to serve: %w", err)
	case <-serverCtx.Done():
	}

	logger.InfoContext(ctx, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	wg.Wait()

	return nil
}
