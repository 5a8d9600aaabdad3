// Package secret serves the shared secrets board.
package secret

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"secrets-service/internal/auth"
	"secrets-service/internal/identity"
	"secrets-service/internal/logger"
	"secrets-service/internal/metrics"
	"secrets-service/internal/middleware"
	"secrets-service/internal/render"

	"github.com/gin-gonic/gin"
)

// MaxLength bounds a single secret, in bytes.
const MaxLength = 4096

const submitPath = "/submit"

// Repository is the slice of the credential store that holds secrets.
// Each identity has at most one secret; setting it overwrites.
type Repository interface {
	SetSecret(ctx context.Context, id, text string) error
	ListSecretHolders(ctx context.Context) ([]identity.SecretHolder, error)
}

type Handler struct {
	repo    Repository
	metrics *metrics.Metrics
}

func NewHandler(repo Repository, m *metrics.Metrics) *Handler {
	return &Handler{repo: repo, metrics: m}
}

// RegisterRoutes mounts the board on a group that already runs the
// access gate.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/secrets", h.list)
	r.GET("/submit", h.form)
	r.POST("/submit", h.submit)
}

// list shows every secret to every signed-in user.
func (h *Handler) list(c *gin.Context) {
	holders, err := h.repo.ListSecretHolders(c.Request.Context())
	if err != nil {
		fail(c, "secrets.list", err)
		return
	}

	c.HTML(http.StatusOK, "secrets.html", gin.H{
		"Holders": holders,
	})
}

func (h *Handler) form(c *gin.Context) {
	c.HTML(http.StatusOK, "submit.html", nil)
}

func (h *Handler) submit(c *gin.Context) {
	user, ok := middleware.IdentityFromContext(c.Request.Context())
	if !ok {
		c.Redirect(http.StatusSeeOther, middleware.LoginPath)
		return
	}

	text := strings.TrimSpace(c.PostForm("secret"))
	if text == "" || len(text) > MaxLength {
		c.Redirect(http.StatusSeeOther, submitPath)
		return
	}

	err := h.repo.SetSecret(c.Request.Context(), user.ID, text)
	if errors.Is(err, auth.ErrNotFound) {
		// identity deleted between gate and write
		c.Redirect(http.StatusSeeOther, middleware.LoginPath)
		return
	}
	if err != nil {
		fail(c, "secrets.submit", err)
		return
	}

	h.metrics.SecretsStored.Inc()
	logger.Info("secret stored", map[string]any{
		"user_id": user.ID,
	})

	c.Redirect(http.StatusSeeOther, "/secrets")
}

func fail(c *gin.Context, op string, err error) {
	logger.Error("request failed", map[string]any{
		"op":    op,
		"path":  c.Request.URL.Path,
		"error": err,
	})
	render.ServerError(c)
}
