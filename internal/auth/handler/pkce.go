package handler

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

const pkceCookieName = "__oauth_pkce"

// generatePKCE issues a fresh RFC 7636 verifier and parks it in a
// short-lived cookie for the callback.
func generatePKCE(c *gin.Context, secure bool) string {
	verifier := oauth2.GenerateVerifier()
	setFlowCookie(c, pkceCookieName, verifier, secure)
	return verifier
}

func getPKCEVerifier(c *gin.Context) string {
	cookie, err := c.Request.Cookie(pkceCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
