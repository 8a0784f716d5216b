package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

const RequestIDHeader = "X-Request-ID"

// MaxBodyBytes caps request bodies at 1 MiB.
const MaxBodyBytes = 1 << 20

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(logger.RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		for _, e := range c.Errors {
			logger.Error(c, "http.error", e.Err, nil)
		}
		logger.Access(c, time.Since(start))
	}
}

// Recovery turns a panic into the 500 envelope without leaking details.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, rec any) {
		logger.Error(c, "http.panic", fmt.Errorf("%v", rec), nil)
		response.InternalError(c)
	})
}

func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			logger.Security(c, "http.body.too_large", map[string]any{"length": c.Request.ContentLength})
			response.Fail(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

