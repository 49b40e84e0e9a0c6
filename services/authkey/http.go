package authkey

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nvbf/tournament-desk/services/session"
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// Keys is the interface for the key exchange.
type Keys interface {
	Issue(ctx context.Context, req IssueRequest) (*IssuedKey, error)
	State(key string) (KeyState, bool)
	PendingKey() string
	Redeem(ctx context.Context, key string) (session.Authorization, error)
	Session() session.Authorization
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The service we provides the HTTP transport for.
	Service Keys

	// The router instance to configure the HTTP routes.
	Router Router
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	r := opts.Router
	h := &httpHandler{opts}
	r.POST("/key", h.issueHandler)
	r.GET("/key/pending", h.pendingHandler)
	r.GET("/state/:access_key", h.stateHandler)
	r.GET("/access/:access_key", h.accessHandler)
	r.GET("/session", h.sessionHandler)
}

type httpHandler struct {
	HTTPOptions
}

func (s *httpHandler) issueHandler(c *gin.Context) {
	var request IssueRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	}

	key, err := s.Service.Issue(c, request)
	switch {
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		c.Abort()
		return
	case errors.Is(err, ErrMissingTournament), errors.Is(err, session.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, key)
}

func (s *httpHandler) pendingHandler(c *gin.Context) {
	key := s.Service.PendingKey()
	if key == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no key received"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}

func (s *httpHandler) stateHandler(c *gin.Context) {
	state, ok := s.Service.State(c.Param("access_key"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not issued here"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *httpHandler) accessHandler(c *gin.Context) {
	authorization, err := s.Service.Redeem(c, c.Param("access_key"))
	switch {
	case errors.Is(err, ErrKeyRejected):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		c.Abort()
		return
	case errors.Is(err, ErrRedeemTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		c.Abort()
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, authorization)
}

func (s *httpHandler) sessionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.Service.Session())
}
