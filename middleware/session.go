package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const SessionIDKey = "sessionId"

type SessionCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Session makes sure every request carries a session id. Unknown or
// malformed cookie values are replaced with a fresh uuid.
func Session(cfg SessionCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(cfg.Name)
		if _, perr := uuid.Parse(sid); err != nil || perr != nil {
			sid = uuid.NewString()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.Name, sid, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)
		c.Set(SessionIDKey, sid)
		c.Next()
	}
}

func SessionID(c *gin.Context) string { return c.GetString(SessionIDKey) }
