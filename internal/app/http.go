package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"secrets-service/internal/auth/credentials"
	"secrets-service/internal/auth/handler"
	"secrets-service/internal/auth/provider"
	"secrets-service/internal/auth/provider/facebook"
	"secrets-service/internal/auth/provider/google"
	"secrets-service/internal/auth/resolver"
	"secrets-service/internal/config"
	"secrets-service/internal/identity"
	"secrets-service/internal/logger"
	"secrets-service/internal/metrics"
	"secrets-service/internal/middleware"
	"secrets-service/internal/rate"
	"secrets-service/internal/render"
	"secrets-service/internal/secret"
	"secrets-service/internal/session"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

// services are the long-lived collaborators the router is built from.
type services struct {
	identities identity.Store
	redis      *goredis.Client
	providers  *provider.Registry
	metrics    *metrics.Metrics
	hasher     *credentials.Hasher
}

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	router, err := newRouter(cfg, services{
		identities: infra.Identities,
		redis:      infra.Redis.Client,
		providers:  registry,
		metrics:    metrics.New(),
		hasher:     credentials.NewHasher(credentials.DefaultParams),
	})
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	return router, infra.Close, nil
}

// setupProviders registers every provider that has credentials.
// Missing credentials only disable that provider's routes.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var list []provider.OAuthProvider

	if cfg.GoogleEnabled() {
		p, err := google.New(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	} else {
		logger.Warn("google login disabled: no client credentials", nil)
	}

	if cfg.FacebookEnabled() {
		p, err := facebook.New(cfg.FacebookClientID, cfg.FacebookClientSecret, cfg.FacebookRedirectURL)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	} else {
		logger.Warn("facebook login disabled: no client credentials", nil)
	}

	registry := provider.NewRegistry(list...)
	logger.Info("oauth providers", map[string]any{
		"enabled": registry.Names(),
	})

	return registry, nil
}

func newRouter(cfg config.Config, svc services) (*gin.Engine, error) {

	// ----------------------------
	// Dependencies
	// ----------------------------

	cookie := session.CookieOptions{
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}

	sessions := session.NewManager(
		session.NewRedisStore(svc.redis, ""),
		svc.identities,
		session.Config{
			IdleTimeout:     cfg.SessionIdleTimeout,
			AbsoluteTimeout: cfg.SessionAbsoluteTimeout,
		},
	)

	gate := middleware.NewGate(sessions, cookie)

	var limiter rate.Limiter
	if cfg.LoginRateLimit > 0 {
		limiter = rate.NewRedisLimiter(svc.redis, "", cfg.LoginRateLimit, cfg.LoginRateWindow)
	}

	authHandler := handler.NewHandler(handler.Deps{
		Providers:   svc.providers,
		Sessions:    sessions,
		Resolver:    resolver.NewStoreResolver(svc.identities),
		Credentials: credentials.NewService(svc.identities, svc.hasher),
		Gate:        gate,
		Cookie:      cookie,
		Limiter:     limiter,
		Metrics:     svc.metrics,
	})

	secretHandler := secret.NewHandler(svc.identities, svc.metrics)

	// ----------------------------
	// Router
	// ----------------------------

	if cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// ClientIP keys the login throttle; only listed proxies may set it
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(),
		middleware.Timeout(cfg.RequestTimeout),
	)

	if err := render.Install(router); err != nil {
		return nil, err
	}

	if cfg.PublicDir != "" {
		if _, err := os.Stat(cfg.PublicDir); err == nil {
			router.Use(static.Serve("/", static.LocalFile(cfg.PublicDir, false)))
		} else {
			logger.Warn("static assets disabled", map[string]any{
				"dir":   cfg.PublicDir,
				"error": err,
			})
		}
	}

	// ----------------------------
	// Public Routes
	// ----------------------------

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(svc.metrics.Handler()))

	authHandler.RegisterRoutes(router)

	// ----------------------------
	// Protected Routes
	// ----------------------------

	web := router.Group("/")
	web.Use(middleware.GinRequireAuth(gate))
	secretHandler.RegisterRoutes(web)

	return router, nil
}
