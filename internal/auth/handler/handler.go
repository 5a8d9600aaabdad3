package handler

import (
	"errors"
	"net/http"

	"secrets-service/internal/auth"
	"secrets-service/internal/auth/credentials"
	"secrets-service/internal/auth/provider"
	"secrets-service/internal/auth/resolver"
	"secrets-service/internal/identity"
	"secrets-service/internal/logger"
	"secrets-service/internal/metrics"
	"secrets-service/internal/middleware"
	"secrets-service/internal/rate"
	"secrets-service/internal/render"
	"secrets-service/internal/session"

	"github.com/gin-gonic/gin"
)

// SecretsPath is where every successful login lands.
const SecretsPath = "/secrets"

// Deps are the collaborators of the auth handlers. Limiter may be nil
// to disable login throttling.
type Deps struct {
	Providers   *provider.Registry
	Sessions    *session.Manager
	Resolver    resolver.Resolver
	Credentials *credentials.Service
	Gate        *middleware.Gate
	Cookie      session.CookieOptions
	Limiter     rate.Limiter
	Metrics     *metrics.Metrics
}

type Handler struct {
	providers   *provider.Registry
	sessions    *session.Manager
	resolver    resolver.Resolver
	credentials *credentials.Service
	gate        *middleware.Gate
	cookie      session.CookieOptions
	limiter     rate.Limiter
	metrics     *metrics.Metrics
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		providers:   d.Providers,
		sessions:    d.Sessions,
		resolver:    d.Resolver,
		credentials: d.Credentials,
		gate:        d.Gate,
		cookie:      d.Cookie,
		limiter:     d.Limiter,
		metrics:     d.Metrics,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.home)

	r.GET("/login", h.loginForm)
	r.POST("/login", h.Login)
	r.GET("/register", h.registerForm)
	r.POST("/register", h.Register)

	r.GET("/auth/:provider", h.begin)
	r.GET("/auth/:provider/secrets", h.callback)

	r.GET("/logout", middleware.GinRequireAuth(h.gate), h.Logout)
}

func (h *Handler) home(c *gin.Context) {
	_, err := h.gate.Authorize(c.Request)
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, SecretsPath)
	case errors.Is(err, auth.ErrUnauthenticated):
		c.HTML(http.StatusOK, "home.html", nil)
	default:
		h.serverError(c, "home", err)
	}
}

// begin starts the authorization-code flow with the named provider.
func (h *Handler) begin(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		logger.Warn("oauth flow for unconfigured provider", map[string]any{
			"provider": providerName,
		})
		c.Redirect(http.StatusFound, middleware.LoginPath)
		return
	}

	state, err := generateState(c, h.cookie.Secure)
	if err != nil {
		h.serverError(c, "oauth.state", err)
		return
	}

	codeVerifier := generatePKCE(c, h.cookie.Secure)

	c.Redirect(http.StatusFound, p.AuthCodeURL(state, codeVerifier))
}

func (h *Handler) callback(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.Redirect(http.StatusFound, middleware.LoginPath)
		return
	}

	// the flow is single use whatever happens next; the request still
	// carries the cookies read below
	clearFlowCookies(c, h.cookie.Secure)

	if !validateState(c) {
		h.rejectFederated(c, providerName, "invalid state", nil)
		return
	}

	// CASE 1: provider reported an error (user cancelled, consent denied)
	if errParam := c.Query("error"); errParam != "" {
		h.rejectFederated(c, providerName, "provider returned error", map[string]any{
			"error": errParam,
			"desc":  c.Query("error_description"),
		})
		return
	}

	// CASE 2: normal callback
	code := c.Query("code")
	if code == "" {
		h.rejectFederated(c, providerName, "callback missing code", nil)
		return
	}

	codeVerifier := getPKCEVerifier(c)
	if codeVerifier == "" {
		h.rejectFederated(c, providerName, "missing pkce verifier", nil)
		return
	}

	profile, err := p.ExchangeCode(c.Request.Context(), code, codeVerifier)
	if err != nil {
		h.rejectFederated(c, providerName, "code exchange failed", map[string]any{
			"error": err,
		})
		return
	}

	user, err := h.resolver.Resolve(c.Request.Context(), profile)
	if errors.Is(err, auth.ErrProviderFailure) {
		h.rejectFederated(c, providerName, "incomplete provider profile", map[string]any{
			"error": err,
		})
		return
	}
	if err != nil {
		h.metrics.Attempt(providerName, metrics.OutcomeError)
		h.serverError(c, "oauth.resolve", err)
		return
	}

	if !h.startSession(c, user, providerName) {
		return
	}

	h.metrics.Attempt(providerName, metrics.OutcomeSuccess)
	logger.Info("federated login", map[string]any{
		"provider": providerName,
		"user_id":  user.ID,
	})

	c.Redirect(http.StatusFound, SecretsPath)
}

func (h *Handler) rejectFederated(c *gin.Context, providerName, reason string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["provider"] = providerName
	logger.Warn("oauth callback rejected: "+reason, fields)

	h.metrics.Attempt(providerName, metrics.OutcomeRejected)
	c.Redirect(http.StatusFound, middleware.LoginPath)
}

// Logout ends the caller's session. It sits behind the access gate.
func (h *Handler) Logout(c *gin.Context) {
	token := session.ReadCookie(c.Request, h.cookie)

	if err := h.sessions.End(c.Request.Context(), token); err != nil {
		h.serverError(c, "logout", err)
		return
	}

	session.ClearCookie(c.Writer, h.cookie)
	h.metrics.SessionsEnded.Inc()

	if user, ok := middleware.IdentityFromContext(c.Request.Context()); ok {
		logger.Info("logged out", map[string]any{
			"user_id": user.ID,
		})
	}

	c.Redirect(http.StatusFound, "/")
}

// startSession replaces any session the client already holds with a
// fresh one for user. It reports false after rendering a failure.
func (h *Handler) startSession(c *gin.Context, user *identity.Identity, method string) bool {
	ctx := c.Request.Context()

	if old := session.ReadCookie(c.Request, h.cookie); old != "" {
		if err := h.sessions.End(ctx, old); err != nil {
			logger.Warn("previous session not ended", map[string]any{
				"error": err,
			})
		}
	}

	sess, err := h.sessions.Start(ctx, user)
	if err != nil {
		h.serverError(c, "session.start", err)
		return false
	}

	session.SetCookie(c.Writer, sess.SessionID, sess.AbsoluteExpiresAt, h.cookie)
	h.metrics.SessionsStarted.WithLabelValues(method).Inc()

	return true
}

func (h *Handler) serverError(c *gin.Context, op string, err error) {
	logger.Error("request failed", map[string]any{
		"op":    op,
		"path":  c.Request.URL.Path,
		"error": err,
	})
	render.ServerError(c)
}
