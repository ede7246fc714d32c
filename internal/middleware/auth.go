package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/model"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/workflow"
	"github.com/appdotbuilder/vehicle-refuel-manager/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenCookie = "access_token"

	// gin context keys
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
	contextActor    = "actor"
)

// Authenticator verifies session tokens and manages the token cookie.
type Authenticator struct {
	secret        []byte
	secureCookies bool
}

// NewAuthenticator returns an Authenticator for HS256 tokens signed with secret. Cookies are
// marked Secure with SameSite=None when secureCookies is set (cross-origin production).
func NewAuthenticator(secret []byte, secureCookies bool) *Authenticator {
	return &Authenticator{secret: secret, secureCookies: secureCookies}
}

func (a *Authenticator) cookieMode() (http.SameSite, bool) {
	if a.secureCookies {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// SetTokenCookie stores the access token as an HttpOnly cookie
func (a *Authenticator) SetTokenCookie(c *gin.Context, token string, ttl time.Duration) {
	sameSite, secure := a.cookieMode()
	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, token, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie
func (a *Authenticator) ClearTokenCookie(c *gin.Context) {
	sameSite, secure := a.cookieMode()
	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", secure, true)
}

// Authenticate validates the JWT from the access_token cookie or the Authorization header and
// stores the caller as a workflow.Actor in the gin context.
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Try cookie first, fallback to Authorization header
		tokenString, cookieErr := c.Cookie(AccessTokenCookie)
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		actor, err := a.parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		c.Set(contextActor, actor)
		c.Set(ContextUserID, actor.ID.String())
		c.Set(ContextUserRole, string(actor.Role))

		c.Next()
	}
}

func (a *Authenticator) parse(tokenString string) (workflow.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return workflow.Actor{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return workflow.Actor{}, jwt.ErrTokenInvalidClaims
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return workflow.Actor{}, err
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return workflow.Actor{}, jwt.ErrTokenInvalidClaims
	}

	rawRole, _ := claims["role"].(string)
	role, err := model.ParseRole(rawRole)
	if err != nil {
		return workflow.Actor{}, jwt.ErrTokenInvalidClaims
	}

	return workflow.Actor{ID: id, Role: role}, nil
}

// CurrentActor returns the caller stored by Authenticate.
func CurrentActor(c *gin.Context) (workflow.Actor, bool) {
	v, ok := c.Get(contextActor)
	if !ok {
		return workflow.Actor{}, false
	}
	actor, ok := v.(workflow.Actor)
	return actor, ok
}

// RequireRole rejects callers whose role is not in allowedRoles. It must run after Authenticate.
func RequireRole(allowedRoles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}

		for _, role := range allowedRoles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Unauthorized action."))
	}
}
