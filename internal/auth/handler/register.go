package handler

import (
	"errors"
	"net/http"

	"secrets-service/internal/auth"
	"secrets-service/internal/logger"
	"secrets-service/internal/metrics"

	"github.com/gin-gonic/gin"
)

const (
	registerPath   = "/register"
	methodRegister = "register"
)

type registerRequest struct {
	Username    string `form:"username"`
	Email       string `form:"email"`
	Password    string `form:"password"`
	ConfirmPass string `form:"confirmPass"`
}

func (h *Handler) registerForm(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", nil)
}

// Register creates a local identity and logs it in.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		c.Redirect(http.StatusSeeOther, registerPath)
		return
	}

	if req.ConfirmPass != "" && req.ConfirmPass != req.Password {
		h.metrics.Attempt(methodRegister, metrics.OutcomeRejected)
		c.Redirect(http.StatusSeeOther, registerPath)
		return
	}

	user, err := h.credentials.Register(
		c.Request.Context(),
		req.Username,
		req.Email,
		req.Password,
	)

	switch {
	case errors.Is(err, auth.ErrDuplicateUsername),
		errors.Is(err, auth.ErrInvalidInput):
		h.metrics.Attempt(methodRegister, metrics.OutcomeRejected)
		logger.Info("registration rejected", map[string]any{
			"reason": err.Error(),
		})
		c.Redirect(http.StatusSeeOther, registerPath)
		return
	case err != nil:
		h.metrics.Attempt(methodRegister, metrics.OutcomeError)
		h.serverError(c, "register", err)
		return
	}

	if !h.startSession(c, user, methodRegister) {
		return
	}

	h.metrics.Attempt(methodRegister, metrics.OutcomeSuccess)
	logger.Info("registered", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})

	c.Redirect(http.StatusSeeOther, SecretsPath)
}
