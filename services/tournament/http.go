package tournament

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nvbf/tournament-desk/models"
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	DELETE(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// Tournament is the selection and read side of the desk.
type Tournament interface {
	Open(ctx context.Context, tournamentID string) (*models.TournamentRecord, error)
	Change(ctx context.Context, tournamentID string) (*models.TournamentRecord, error)
	Import(ctx context.Context, record *models.TournamentRecord) error
	Clear(ctx context.Context)
	Current() (*models.TournamentRecord, error)
	GetStats() (*Stats, error)
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The service we provide the HTTP transport for.
	Service Tournament

	// The router instance to configure the HTTP routes.
	Router Router
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	r := opts.Router
	h := &httpHandler{opts}
	r.GET("/current", h.currentHandler)
	r.GET("/stats", h.statsHandler)
	r.POST("/open/:tournament_id", h.openHandler)
	r.POST("/change/:tournament_id", h.changeHandler)
	r.POST("/import", h.importHandler)
	r.DELETE("/current", h.clearHandler)
}

type httpHandler struct {
	HTTPOptions
}

func (h *httpHandler) currentHandler(c *gin.Context) {
	record, err := h.Service.Current()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *httpHandler) statsHandler(c *gin.Context) {
	stats, err := h.Service.GetStats()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *httpHandler) openHandler(c *gin.Context) {
	h.selectWith(c, h.Service.Open)
}

func (h *httpHandler) changeHandler(c *gin.Context) {
	h.selectWith(c, h.Service.Change)
}

func (h *httpHandler) selectWith(c *gin.Context, open func(context.Context, string) (*models.TournamentRecord, error)) {
	tournamentID := c.Param("tournament_id")
	record, err := open(c, tournamentID)
	if err != nil {
		if errors.Is(err, ErrTournamentAbsent) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"tournamentId": record.TournamentID})
}

func (h *httpHandler) importHandler(c *gin.Context) {
	var record models.TournamentRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	if err := h.Service.Import(c, &record); err != nil {
		if errors.Is(err, ErrInvalidRecord) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tournamentId": record.TournamentID})
}

func (h *httpHandler) clearHandler(c *gin.Context) {
	h.Service.Clear(c)
	c.Status(http.StatusNoContent)
}
