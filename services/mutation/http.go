package mutation

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router is the interface for a router.
type Router interface {
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
}

// Mutations is the caller-facing side of the dispatcher.
type Mutations interface {
	DispatchSync(ctx context.Context, batch Batch) Outcome
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The service we provide the HTTP transport for.
	Service Mutations

	// The router instance to configure the HTTP routes.
	Router Router
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	r := opts.Router
	h := &httpHandler{opts}
	r.POST("/dispatch", h.dispatchHandler)
}

type httpHandler struct {
	HTTPOptions
}

func (h *httpHandler) dispatchHandler(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	}

	outcome := h.Service.DispatchSync(c, req.Methods)
	if len(outcome.Results) == 0 && len(outcome.Errors) == 1 {
		switch outcome.Errors[0].Code {
		case CodeNoTournament:
			c.JSON(http.StatusConflict, outcome)
			c.Abort()
			return
		case CodeEmptyBatch:
			c.JSON(http.StatusBadRequest, outcome)
			c.Abort()
			return
		case CodeDraftFailed:
			c.JSON(http.StatusInternalServerError, outcome)
			c.Abort()
			return
		case CodeDispatcherStopped, CodeDispatchCancelled:
			c.JSON(http.StatusServiceUnavailable, outcome)
			c.Abort()
			return
		}
	}
	c.JSON(http.StatusOK, outcome)
}
