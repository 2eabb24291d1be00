package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionKey = "chat_session"

type SessionInfo struct {
	ID string
	// Issued is true when the cookie was minted on this request.
	Issued bool
}

type CookieOptions struct {
	Name string
	TTL  time.Duration
	// Secure is "true", "false" or "auto" (follow the request's transport).
	Secure string
	// CrossSite is set when the widget is embedded on other origins; the
	// cookie then needs SameSite=None, which browsers only accept with Secure.
	CrossSite bool
}

func (o CookieOptions) name() string {
	if o.Name == "" {
		return "chatbot_session_id"
	}
	return o.Name
}

func (o CookieOptions) secure(r *http.Request) bool {
	if o.CrossSite {
		return true
	}
	switch o.Secure {
	case "true":
		return true
	case "false":
		return false
	}
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Session runs on page views: it reuses a valid session cookie or mints a
// new one and exposes it to handlers via SessionFrom.
func Session(opts CookieOptions) gin.HandlerFunc {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return func(c *gin.Context) {
		if id, ok := readSession(c, opts.name()); ok {
			c.Set(sessionKey, SessionInfo{ID: id})
			c.Next()
			return
		}

		id := uuid.NewString()
		sameSite := http.SameSiteLaxMode
		if opts.CrossSite {
			sameSite = http.SameSiteNoneMode
		}
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     opts.name(),
			Value:    id,
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			Expires:  time.Now().Add(ttl),
			HttpOnly: true,
			Secure:   opts.secure(c.Request),
			SameSite: sameSite,
		})
		c.Set(sessionKey, SessionInfo{ID: id, Issued: true})
		c.Next()
	}
}

// LoadSession only reads the cookie; it never mints one.
func LoadSession(opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := readSession(c, opts.name()); ok {
			c.Set(sessionKey, SessionInfo{ID: id})
		}
		c.Next()
	}
}

func SessionFrom(c *gin.Context) (SessionInfo, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return SessionInfo{}, false
	}
	s, ok := v.(SessionInfo)
	return s, ok
}

func readSession(c *gin.Context, name string) (string, bool) {
	v, err := c.Cookie(name)
	if err != nil || v == "" {
		return "", false
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
