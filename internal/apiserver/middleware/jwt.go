package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amoylab/oauthprobe/internal/auth/jwt"
	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/i18n"
	"github.com/amoylab/oauthprobe/internal/session"
)

// SessionStore resolves the server-side session named by a login token
type SessionStore interface {
	Get(id string) (*session.Session, error)
}

// JWTAuthMiddleware requires a valid login token, read from the session cookie
// or a Bearer header, that names a live session. The session and claims are
// stored in the gin context.
func JWTAuthMiddleware(jwtService *jwt.Service, sessions SessionStore, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c, cookieName)
		if raw == "" {
			i18n.RespondWithError(c, &errorx.AuthRequiredError{Reason: errorx.AuthReasonNoSession})
			return
		}

		claims, err := jwtService.ValidateToken(raw)
		if err != nil {
			i18n.RespondWithError(c, &errorx.AuthRequiredError{Reason: errorx.AuthReasonNoSession})
			return
		}

		sess, err := sessions.Get(claims.SessionID)
		if err != nil || sess.Username != claims.Username {
			i18n.RespondWithError(c, &errorx.AuthRequiredError{Reason: errorx.AuthReasonNoSession})
			return
		}

		c.Set(cnst.CtxKeyClaims, claims)
		c.Set(cnst.CtxKeySession, sess)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// GetSession returns the session stored by JWTAuthMiddleware
func GetSession(c *gin.Context) *session.Session {
	v, ok := c.Get(cnst.CtxKeySession)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}
