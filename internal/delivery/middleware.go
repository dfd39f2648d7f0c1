package delivery

import (
	"context"
	"net/http"
	"strings"
	"time"

	"catalog_service/internal/auth"
	"catalog_service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	sessionCookie  = "catalog_session"
	loggedInCookie = "logged_in"
	identityKey    = "identity"
)

// Authenticator is the part of the auth provider the HTTP layer needs.
type Authenticator interface {
	SignInAnonymously(ctx context.Context) (*auth.Session, error)
	SignInWithCustomToken(ctx context.Context, token string) (*auth.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	Verify(ctx context.Context, token string) (*domain.Identity, error)
	SignOut(ctx context.Context, token string) error
}

func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"status_code": statusCode,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"remote_ip":   c.ClientIP(),
			"latency_ms":  latency.Milliseconds(),
		})

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
		} else if statusCode >= 500 {
			entry.Error("Request completed with server error")
		} else if statusCode >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Debug("Request completed successfully")
		}
	}
}

type cookies struct {
	secure bool
}

func (k cookies) setSession(c *gin.Context, session *auth.Session) {
	maxAge := int(time.Until(session.Identity.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, session.Token, maxAge, "/", "", k.secure, true)
	if session.Identity.Admin {
		c.SetCookie(loggedInCookie, "true", maxAge, "/", "", k.secure, false)
	}
}

func (k cookies) clear(c *gin.Context, names ...string) {
	c.SetSameSite(http.SameSiteLaxMode)
	for _, name := range names {
		c.SetCookie(name, "", -1, "/", "", k.secure, name == sessionCookie)
	}
}

// SessionGate makes sure every visitor has a session, signing them in
// anonymously on their first visit.
func SessionGate(a Authenticator, k cookies, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
			identity, err := a.Verify(ctx, token)
			if err == nil {
				c.Set(identityKey, *identity)
				c.Next()
				return
			}
			log.Debugf("Middleware: Session cookie rejected, signing in anonymously: %v", err)
		}

		session, err := a.SignInAnonymously(ctx)
		if err != nil {
			log.Errorf("Middleware: Anonymous sign-in failed: %v", err)
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		k.setSession(c, session)
		c.Set(identityKey, session.Identity)
		c.Next()
	}
}

// AdminGate trusts the logged_in flag only as a hint: without it the browser
// goes straight to the login page, with it the session is still verified.
func AdminGate(a Authenticator, k cookies, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if flag, _ := c.Cookie(loggedInCookie); flag != "true" {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		token, _ := c.Cookie(sessionCookie)
		identity, err := a.Verify(c.Request.Context(), token)
		if err == nil && !identity.Admin {
			err = domain.ErrForbidden
		}
		if err != nil {
			log.Warnf("Middleware: Admin session rejected: %v", err)
			k.clear(c, loggedInCookie)
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		c.Set(identityKey, *identity)
		c.Next()
	}
}

// BearerAuth guards the JSON API with an admin session token.
func BearerAuth(a Authenticator, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Middleware: Authorization header is missing")
			c.Abort()
			ErrorResponse(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			log.Warn("Middleware: Invalid Authorization header format")
			c.Abort()
			ErrorResponse(c, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		identity, err := a.Verify(c.Request.Context(), parts[1])
		if err != nil {
			log.Warnf("Middleware: Bearer token rejected: %v", err)
			c.Abort()
			ErrorResponse(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		if !identity.Admin {
			log.Warnf("Middleware: uid=%s is not an admin", identity.UID)
			c.Abort()
			ErrorResponse(c, http.StatusForbidden, "Admin access required")
			return
		}

		c.Set(identityKey, *identity)
		c.Next()
	}
}

func currentIdentity(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(domain.Identity); ok {
			return identity
		}
	}
	return domain.Identity{}
}
