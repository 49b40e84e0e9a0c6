package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/nvbf/tournament-desk/models"
	"github.com/nvbf/tournament-desk/services/session"
)

// RoleClaim is the custom claim that carries the user's roles.
const RoleClaim = "role"

// TokenVerifier verifies a Firebase ID token. *auth.Client implements it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

func NewFirebaseVerifier(ctx context.Context, firebaseApp *firebase.App) (TokenVerifier, error) {
	client, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// AuthMiddleware logs the session in with the bearer ID token when one is sent.
// Requests without a token pass through with whatever the session already holds.
func AuthMiddleware(verifier TokenVerifier, sess *session.Session, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}
		idToken, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || idToken == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is malformed"})
			c.Abort()
			return
		}

		token, err := verifier.VerifyIDToken(c, idToken)
		if err != nil {
			log.WarnContext(c, "Rejected ID token", slog.Any("error", err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid ID token"})
			c.Abort()
			return
		}

		if err := sess.Login(token.UID, rolesFrom(token.Claims)); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		// Attach token to the context
		c.Set("token", token)

		c.Next()
	}
}

// TournamentOf names the tournament a request acts on. An empty id only matches global permissions.
type TournamentOf func(c *gin.Context) string

// RequirePermission aborts requests from a session that lacks permission for the tournament the
// request acts on. A nil tournamentOf checks the session's global permissions only.
func RequirePermission(sess *session.Session, permission models.Permission, tournamentOf TournamentOf) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tournamentID string
		if tournamentOf != nil {
			tournamentID = tournamentOf(c)
		}
		if !sess.Allows(permission, tournamentID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "missing permission " + string(permission)})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ParamOr reads the tournament id from the route parameter name, falling back to fallback.
func ParamOr(name string, fallback TournamentOf) TournamentOf {
	return func(c *gin.Context) string {
		if id := c.Param(name); id != "" {
			return id
		}
		if fallback == nil {
			return ""
		}
		return fallback(c)
	}
}

func rolesFrom(claims map[string]interface{}) []models.Role {
	switch v := claims[RoleClaim].(type) {
	case string:
		return []models.Role{models.Role(v)}
	case []interface{}:
		roles := make([]models.Role, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok {
				roles = append(roles, models.Role(s))
			}
		}
		return roles
	default:
		return []models.Role{models.RoleUser}
	}
}
