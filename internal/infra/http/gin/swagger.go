package ginserver

import (
	"bytes"
	_ "embed"
	"net/http"

	gin "github.com/gin-gonic/gin"
)

const openAPIPath = "/swagger/openapi.json"

//go:embed swagger/openapi.json
var openAPIDocument []byte

//go:embed swagger/index.html
var swaggerUITemplate []byte

var swaggerUIPage = bytes.ReplaceAll(swaggerUITemplate, []byte("{{SPEC_URL}}"), []byte(openAPIPath))

// registerSwaggerRoutes serves the chat API document and a Swagger UI page
// pointing at it. Both are public.
func registerSwaggerRoutes(router gin.IRoutes) {
	router.GET(openAPIPath, func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "application/json", openAPIDocument)
	})
	router.GET("/swagger", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", swaggerUIPage)
	})
}
