package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dirgate/dirgate/pkg/api"
	"github.com/dirgate/dirgate/pkg/auth"
	"github.com/dirgate/dirgate/pkg/config"
	"github.com/dirgate/dirgate/pkg/directory"
	"github.com/dirgate/dirgate/pkg/hooks"
	"github.com/dirgate/dirgate/pkg/middleware"
	"github.com/dirgate/dirgate/pkg/observability"
	"github.com/dirgate/dirgate/pkg/plugin"
	_ "github.com/dirgate/dirgate/pkg/plugin/builtin"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dirgate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := newLogger(cfg.Observability.LogLevel)
	obsLog := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	// OpenTelemetry, when enabled.
	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		otelProviders, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, obsLog)
		if err != nil {
			return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
		}
	}

	// Directory backend.
	var conn directory.Conn
	if cfg.Directory.URL == "" {
		log.Warn("no directory URL configured, using the in-memory backend")
		conn = directory.NewMemConn()
	} else {
		ldapConn, err := directory.DialLDAP(directory.LDAPConfig{
			URL:          cfg.Directory.URL,
			BindDN:       cfg.Directory.BindDN,
			BindPassword: cfg.Directory.BindPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to directory: %w", err)
		}
		defer ldapConn.Close()
		conn = ldapConn
	}

	bus := hooks.NewBus(log)
	client := directory.NewClient(conn, bus)

	// Authentication strategies, tried in configured order.
	strategies, err := buildStrategies(ctx, cfg, log)
	if err != nil {
		return err
	}

	// Redis, only when the rate limiter wants it.
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisURL,
			Password: cfg.RateLimit.RedisPassword,
		})
		defer redisClient.Close()
	}

	// REST surface and plugins share one router. The top-of-tree
	// fallback can differ from the authorization anchor.
	topDN := cfg.Directory.DefaultTopDN
	if topDN == "" {
		topDN = cfg.Authz.TopAnchor
	}
	apiServer := api.NewServer(client, topDN, log)
	registry := plugin.NewRegistry(plugin.Env{
		Config: cfg,
		Client: client,
		Bus:    bus,
		Log:    log,
	}, apiServer.Router(), plugin.Options{
		Priority:   []string{"authz"},
		Aggregator: "audittrail",
	})

	health := observability.NewHealthChecker(directoryPinger(conn, cfg.Authz.TopAnchor), redisClient)

	descriptors := cfg.Plugins.Descriptors
	if len(descriptors) == 0 {
		descriptors = defaultDescriptors(cfg)
	}
	if err := registry.LoadAll(ctx, descriptors); err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}

	// Middleware chain, outermost first: request ID, metrics,
	// authentication, then rate limiting keyed by principal.
	var handler http.Handler = apiServer
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewDistributedRateLimiter(redisClient, &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerMinute,
			WindowDuration:    time.Minute,
		}, log)
		handler = limiter.Handler(handler)
	}
	authenticator := middleware.NewAuthenticator(strategies, bus, false, log)
	handler = authenticator.Handler(handler)
	if cfg.Observability.MetricsEnabled {
		handler = observability.HTTPMetricsMiddleware(routePattern(apiServer))(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := newHealthServer(cfg, health)

	shutdown := observability.NewShutdownManager(obsLog, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		health.SetReady(false)
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return registry.Close()
	})
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(otelProviders.Shutdown)
	}

	go func() {
		log.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("health server failed")
		}
	}()
	go func() {
		log.WithField("addr", server.Addr).Info("gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
		}
	}()

	health.SetReady(true)
	return shutdown.WaitForShutdown()
}

// newLogger builds the logrus logger the domain packages share.
func newLogger(level observability.LogLevel) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	switch level {
	case observability.DebugLevel:
		log.SetLevel(logrus.DebugLevel)
	case observability.WarnLevel:
		log.SetLevel(logrus.WarnLevel)
	case observability.ErrorLevel:
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// buildStrategies instantiates the configured authentication
// strategies, preserving the configured trial order.
func buildStrategies(ctx context.Context, cfg *config.Config, log *logrus.Logger) ([]auth.Strategy, error) {
	var strategies []auth.Strategy
	for _, name := range cfg.Auth.Strategies {
		switch name {
		case "token":
			strategies = append(strategies, auth.NewTokenStrategy(cfg.Auth.Tokens, log))
		case "totp":
			identities := auth.ParseTOTPIdentities(cfg.Auth.TOTPIdentities, log)
			strategies = append(strategies,
				auth.NewTOTPStrategy(identities, cfg.Auth.TOTPStep, cfg.Auth.TOTPWindow, log))
		case "hmac":
			services := auth.ParseHMACServices(cfg.Auth.HMACServices, log)
			strategies = append(strategies,
				auth.NewHMACStrategy(services, cfg.Auth.HMACWindow, log))
		case "llng":
			strategies = append(strategies, auth.NewLLNGStrategy(cfg.Auth.LLNGHeader))
		case "oidc":
			oidcStrategy, err := auth.NewOIDCStrategy(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClientID)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize OIDC strategy: %w", err)
			}
			strategies = append(strategies, oidcStrategy)
		default:
			return nil, fmt.Errorf("unknown authentication strategy %q", name)
		}
	}
	return strategies, nil
}

// defaultDescriptors is the plugin set used when none are configured:
// authorization is always on, the audit trail follows its own toggle.
func defaultDescriptors(cfg *config.Config) []string {
	descriptors := []string{"authz"}
	if cfg.Audit.Enabled {
		descriptors = append(descriptors, "audittrail")
	}
	return descriptors
}

// directoryPinger probes the backend with a base-scope read of the
// tree anchor. An empty result is healthy; only transport errors count.
func directoryPinger(conn directory.Conn, anchor string) observability.Pinger {
	return func(ctx context.Context) error {
		_, err := conn.Search(ctx, anchor, directory.SearchOptions{
			Scope:     directory.ScopeBase,
			SizeLimit: 1,
		})
		return err
	}
}

// routePattern labels HTTP metrics with the mux route template instead
// of the raw path, keeping DNs out of the label space.
func routePattern(s *api.Server) func(r *http.Request) string {
	router := s.Router()
	return func(r *http.Request) string {
		var match mux.RouteMatch
		if router.Match(r, &match) && match.Route != nil {
			if tmpl, err := match.Route.GetPathTemplate(); err == nil {
				return tmpl
			}
		}
		return "unmatched"
	}
}

func newHealthServer(cfg *config.Config, health *observability.HealthChecker) *http.Server {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", health.Liveness).Methods("GET")
	router.HandleFunc("/readyz", health.Readiness).Methods("GET")
	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")
	}
	return &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: router,
	}
}
