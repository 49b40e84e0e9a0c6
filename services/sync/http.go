package sync

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// Sync is the interface for the reconciliation service.
type Sync interface {
	Push(ctx context.Context) error
	GetStatus() Status
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The service we provides the HTTP transport for.
	Service Sync

	// The router instance to configure the HTTP routes.
	Router Router
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	r := opts.Router
	h := &httpHandler{opts}
	r.GET("/status", h.getStatusHandler)
	r.POST("/push", h.pushHandler)
}

type httpHandler struct {
	HTTPOptions
}

func (s *httpHandler) getStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.Service.GetStatus())
}

func (s *httpHandler) pushHandler(c *gin.Context) {
	err := s.Service.Push(c)
	if errors.Is(err, ErrNoTournament) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Tournament pushed",
	})
}
