package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/frandy73/Lumina/internal/auth"
)

const (
	userIDKey = "userID"
	// HeaderUserID is trusted as the caller identity in header auth mode.
	HeaderUserID = "X-User-ID"
)

// Authenticate verifies the bearer token with v and stores the subject as
// the request's user id. Missing or rejected credentials end the request
// with 401 unauthorized.
func Authenticate(v auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}
		claims, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("token rejected")
			unauthorized(c, "invalid or expired token")
			return
		}
		setUserID(c, claims.Subject)
		c.Next()
	}
}

// TrustUserHeader takes the user id from X-User-ID. Development only: any
// caller can claim any identity.
func TrustUserHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if uid == "" {
			unauthorized(c, "missing "+HeaderUserID)
			return
		}
		setUserID(c, uid)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" before authentication.
func UserID(c *gin.Context) string {
	v, _ := c.Get(userIDKey)
	return asString(v)
}

func setUserID(c *gin.Context, uid string) {
	c.Set(userIDKey, uid)
	setLogger(c, LoggerFrom(c).With().Str("user_id", uid).Logger())
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="lumina"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": GetRequestID(c),
		"code":       "unauthorized",
		"message":    msg,
	})
}
