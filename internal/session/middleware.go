package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CookieName     = "pdfrenamer_session"
	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
	CSRFFormField  = "csrf_token"

	sessionContextKey = "session"
	csrfContextKey    = "csrf_token"
)

// Middleware attaches the caller's session to the context, creating one and
// issuing fresh cookies when the request carries none or an expired one.
func (s *Store) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(CookieName)
		sess, ok := s.Get(id)
		if !ok {
			sess = s.Create()
			s.setCookie(c, CookieName, sess.ID, true, http.SameSiteLaxMode)
		}

		csrfToken, err := c.Cookie(CSRFCookieName)
		if err != nil || csrfToken == "" || !ok {
			csrfToken, err = newCSRFToken()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			s.setCookie(c, CSRFCookieName, csrfToken, false, http.SameSiteStrictMode)
		}

		c.Set(sessionContextKey, sess)
		c.Set(csrfContextKey, csrfToken)
		c.Next()
	}
}

// CSRFMiddleware enforces double-submit CSRF protection on state-changing
// requests. The token may arrive in the header or as a form field.
func (s *Store) CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requiresCSRFCheck(c.Request.Method) {
			c.Next()
			return
		}
		token := c.GetHeader(CSRFHeaderName)
		if token == "" {
			token = c.PostForm(CSRFFormField)
		}
		cookieToken, err := c.Cookie(CSRFCookieName)
		if err != nil || token == "" || cookieToken == "" || token != cookieToken {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid csrf token"})
			return
		}
		c.Next()
	}
}

// FromContext returns the session attached by Middleware.
func FromContext(c *gin.Context) (*Session, bool) {
	val, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	sess, ok := val.(*Session)
	return sess, ok
}

// CSRFTokenFromContext returns the token forms must echo back.
func CSRFTokenFromContext(c *gin.Context) string {
	return c.GetString(csrfContextKey)
}

func (s *Store) setCookie(c *gin.Context, name, value string, httpOnly bool, sameSite http.SameSite) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		MaxAge:   int(s.ttl.Seconds()),
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: httpOnly,
		SameSite: sameSite,
	})
}

func requiresCSRFCheck(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

func newCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
