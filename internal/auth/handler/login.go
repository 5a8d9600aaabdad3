package handler

import (
	"errors"
	"net/http"
	"strconv"

	"secrets-service/internal/auth"
	"secrets-service/internal/logger"
	"secrets-service/internal/metrics"
	"secrets-service/internal/middleware"
	"secrets-service/internal/render"

	"github.com/gin-gonic/gin"
)

const methodLocal = "local"

type loginRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

func (h *Handler) loginForm(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", nil)
}

// Login checks a username/password form. Unknown users and wrong
// passwords look the same to the client.
func (h *Handler) Login(c *gin.Context) {
	if !h.allowLogin(c) {
		return
	}

	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.Redirect(http.StatusSeeOther, middleware.LoginPath)
		return
	}

	user, err := h.credentials.Authenticate(
		c.Request.Context(),
		req.Username,
		req.Password,
	)

	switch {
	case errors.Is(err, auth.ErrNotFound),
		errors.Is(err, auth.ErrInvalidCredential),
		errors.Is(err, auth.ErrInvalidInput):
		h.metrics.Attempt(methodLocal, metrics.OutcomeRejected)
		logger.Info("login rejected", map[string]any{
			"client_ip": c.ClientIP(),
		})
		c.Redirect(http.StatusSeeOther, middleware.LoginPath)
		return
	case err != nil:
		h.metrics.Attempt(methodLocal, metrics.OutcomeError)
		h.serverError(c, "login", err)
		return
	}

	if !h.startSession(c, user, methodLocal) {
		return
	}

	h.metrics.Attempt(methodLocal, metrics.OutcomeSuccess)
	logger.Info("logged in", map[string]any{
		"user_id": user.ID,
	})

	c.Redirect(http.StatusSeeOther, SecretsPath)
}

// allowLogin applies the per-client login throttle. A limiter that
// cannot answer fails the request rather than letting it through.
func (h *Handler) allowLogin(c *gin.Context) bool {
	if h.limiter == nil {
		return true
	}

	res, err := h.limiter.Allow(c.Request.Context(), "login:"+c.ClientIP())
	if err != nil {
		h.serverError(c, "login.ratelimit", err)
		return false
	}

	if !res.Allowed {
		h.metrics.Attempt(methodLocal, metrics.OutcomeRejected)
		c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
		render.TooManyRequests(c)
		return false
	}

	return true
}
