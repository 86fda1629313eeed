package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/memorygame/api"
	"github.com/wricardo/mcp-training/memorygame/game/config"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"github.com/wricardo/mcp-training/memorygame/game/session"
	"github.com/wricardo/mcp-training/memorygame/settings"
	"github.com/wricardo/mcp-training/memorygame/transport/events"
	"github.com/wricardo/mcp-training/memorygame/transport/mcp"
	"github.com/wricardo/mcp-training/memorygame/transport/ratelimit"
	"github.com/wricardo/mcp-training/memorygame/transport/websocket"
)

// app holds every component the server wires together
type app struct {
	settings *settings.Settings
	logger   *zap.Logger

	configs   *config.Manager
	sessions  *session.Manager
	service   service.GameService
	hub       *websocket.Hub
	limiter   *ratelimit.Limiter
	mcpClient *mcp.Client
	handler   http.Handler

	closers []func() error
	wg      sync.WaitGroup
}

// newApp wires the deck manager, session store, game service and HTTP
// handler. baseURL is where the MCP proxy reaches the REST API.
func newApp(s *settings.Settings, logger *zap.Logger, baseURL string) (*app, error) {
	a := &app{settings: s, logger: logger}

	configs, err := config.NewManager(s.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	a.configs = configs

	persistence, closePersistence, err := openPersistence(s, configs)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}
	if closePersistence != nil {
		a.closers = append(a.closers, closePersistence)
	}

	if persistence != nil {
		a.sessions = session.NewManagerWithPersistence(persistence, logger)
		if err := a.sessions.LoadPersistedSessions(); err != nil {
			logger.Warn("failed to load persisted sessions", zap.Error(err))
		}
	} else {
		a.sessions = session.NewManager(logger)
	}
	logger.Info("session store ready", zap.String("store", s.SessionStore))

	serviceOpts := []service.Option{service.WithLogger(logger)}
	if s.NATSURL != "" {
		publisher, err := events.Connect(s.NATSURL, s.NATSPrefix, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.closers = append(a.closers, publisher.Close)
		serviceOpts = append(serviceOpts, service.WithPublisher(publisher))
		logger.Info("publishing game events", zap.String("url", s.NATSURL), zap.String("prefix", s.NATSPrefix))
	}
	a.service = service.NewGameService(a.sessions, configs, serviceOpts...)

	cookies, err := api.NewCookieSessions(s.CookieSecret, s.CookieTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create cookie signer: %w", err)
	}
	if s.CookieSecret == "" {
		logger.Warn("no cookie secret configured, browser sessions will not survive a restart")
	}

	a.hub = websocket.NewHub(logger, s.AllowedOrigins...)
	a.limiter = ratelimit.New(s.RateLimit, s.RateBurst, logger)
	a.mcpClient = mcp.NewClient(baseURL)

	a.handler = api.NewServer(a.service, a.hub,
		api.WithLogger(logger),
		api.WithCookies(cookies),
		api.WithRateLimiter(a.limiter),
		api.WithAllowedOrigins(s.AllowedOrigins...),
		api.WithStaticDir(s.StaticDir),
		api.WithMCPHandler(a.mcpClient.HTTPHandler()),
	)

	return a, nil
}

// openPersistence builds the configured session store. A nil store means
// sessions live in memory only.
func openPersistence(s *settings.Settings, configs *config.Manager) (session.SessionPersistence, func() error, error) {
	switch s.SessionStore {
	case settings.StoreMemory:
		return nil, nil, nil

	case settings.StoreFile:
		p, err := session.NewFilePersistence(s.SessionsDir, configs)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil

	case settings.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
		})
		p, err := session.NewRedisPersistence(rdb, s.SessionMaxAge, configs)
		if err != nil {
			rdb.Close()
			return nil, nil, err
		}
		return p, rdb.Close, nil

	case settings.StoreSQLite:
		p, err := session.NewSQLitePersistence(s.SQLitePath, configs)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil

	case settings.StoreBolt:
		p, err := session.NewBoltPersistence(s.BoltPath, configs)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", s.SessionStore)
	}
}

// start runs the WebSocket hub and the maintenance loops until ctx is done
func (a *app) start(ctx context.Context) {
	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		a.hub.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		every(ctx, a.settings.CleanupEvery, a.cleanup)
	}()
	go func() {
		defer a.wg.Done()
		every(ctx, a.settings.SyncEvery, a.sync)
	}()
}

// cleanup removes sessions and rate limit buckets that have not been used
// within the retention window
func (a *app) cleanup() {
	if removed := a.sessions.CleanupExpiredSessions(a.settings.SessionMaxAge); removed > 0 {
		a.logger.Info("cleaned up expired sessions", zap.Int("count", removed))
	}
	if dropped := a.limiter.Cleanup(a.settings.CleanupEvery); dropped > 0 {
		a.logger.Debug("dropped idle rate limit buckets", zap.Int("count", dropped))
	}
}

// sync flushes sessions to the store and forgets sessions whose record was
// removed behind our back
func (a *app) sync() {
	if err := a.sessions.SaveAllSessions(); err != nil {
		a.logger.Warn("session sync failed", zap.Error(err))
	}
	a.sessions.PruneOrphans()
}

// every calls fn each interval until ctx is done; a non-positive interval
// disables the loop
func every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Close saves sessions one last time and releases the stores
func (a *app) Close() error {
	a.wg.Wait()

	var errs []error
	if a.sessions != nil {
		if err := a.sessions.SaveAllSessions(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runServe starts the HTTP server, and an ngrok tunnel when enabled, until
// the process receives SIGINT or SIGTERM.
func runServe(ctx context.Context, s *settings.Settings, logger *zap.Logger) error {
	addr := s.Addr()

	a, err := newApp(s, logger, fmt.Sprintf("http://%s", addr))
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.start(ctx)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	var tunnels sync.WaitGroup
	if s.NgrokEnabled {
		tunnels.Add(1)
		go func() {
			defer tunnels.Done()
			runTunnel(ctx, s, a.handler, logger)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		stop()
		a.Close()
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	tunnels.Wait()
	if err := a.Close(); err != nil {
		logger.Warn("shutdown cleanup failed", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}

// runTunnel serves handler through an ngrok tunnel until ctx is done
func runTunnel(ctx context.Context, s *settings.Settings, handler http.Handler, logger *zap.Logger) {
	if s.NgrokAuth == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if s.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(s.NgrokDomain))
		logger.Info("using custom ngrok domain", zap.String("domain", s.NgrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(s.NgrokAuth))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("game", ngrokURL+"/"),
		zap.String("api", ngrokURL+"/api"),
		zap.String("mcp", ngrokURL+"/mcp"),
	)

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		logger.Error("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// runStdio runs an MCP stdio server. It reuses an API already listening on
// the configured address; otherwise it starts an internal one on a random
// loopback port.
func runStdio(ctx context.Context, s *settings.Settings, logger *zap.Logger) error {
	externalURL := fmt.Sprintf("http://%s", s.Addr())
	logger.Info("checking for external API server", zap.String("url", externalURL))

	if apiAvailable(ctx, externalURL) {
		logger.Info("external API server found, using it for MCP", zap.String("url", externalURL))
		return server.ServeStdio(mcp.NewClient(externalURL).GetMCPServer())
	}

	logger.Info("no external API server found, starting internal HTTP server")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to get available port: %w", err)
	}
	internalURL := fmt.Sprintf("http://%s", listener.Addr().String())

	a, err := newApp(s, logger, internalURL)
	if err != nil {
		listener.Close()
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	a.start(ctx)

	httpServer := &http.Server{Handler: a.handler}
	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("internal HTTP server error", zap.Error(err))
		}
	}()

	logger.Info("MCP stdio server ready", zap.String("api", internalURL))
	serveErr := server.ServeStdio(a.mcpClient.GetMCPServer())

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	if err := a.Close(); err != nil {
		logger.Warn("shutdown cleanup failed", zap.Error(err))
	}

	if serveErr != nil {
		return fmt.Errorf("MCP stdio server error: %w", serveErr)
	}
	return nil
}

// apiAvailable reports whether a memory game API answers at baseURL
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
