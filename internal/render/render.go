// Package render owns the HTML views.
package render

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var files embed.FS

// Templates parses every embedded view. Views are addressed by file
// name, e.g. "login.html".
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(files, "templates/*.html")
}

// Install attaches the views to r.
func Install(r *gin.Engine) error {
	t, err := Templates()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(t)
	return nil
}

// ServerError renders the generic failure page and stops the chain.
// Details stay in the logs.
func ServerError(c *gin.Context) {
	c.HTML(http.StatusInternalServerError, "error.html", gin.H{
		"Status":  http.StatusInternalServerError,
		"Message": "Something went wrong. Please try again later.",
	})
	c.Abort()
}

// TooManyRequests renders the throttling page.
func TooManyRequests(c *gin.Context) {
	c.HTML(http.StatusTooManyRequests, "error.html", gin.H{
		"Status":  http.StatusTooManyRequests,
		"Message": "Too many login attempts. Please wait a moment.",
	})
	c.Abort()
}
