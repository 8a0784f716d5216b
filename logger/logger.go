package logger

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Context keys shared with the middleware package.
const (
	RequestIDKey = "requestId"
	UserIDKey    = "userId"
	RoleKey      = "role"
)

type entry struct {
	TS        string         `json:"ts"`
	Level     string         `json:"level"`
	ReqID     string         `json:"req_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	Method    string         `json:"method,omitempty"`
	Path      string         `json:"path,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Action    string         `json:"action,omitempty"`
	Status    int            `json:"status,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Err       string         `json:"err,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func write(level string, c *gin.Context, action string, err error, fields map[string]any, latency time.Duration) {
	e := entry{TS: time.Now().UTC().Format(time.RFC3339), Level: level, Action: action, Fields: fields}
	if c != nil {
		e.IP = c.ClientIP()
		e.Method = c.Request.Method
		e.Path = c.Request.URL.Path
		e.Status = c.Writer.Status()
		e.ReqID = c.GetString(RequestIDKey)
		e.UserID = c.GetString(UserIDKey)
	}
	if latency > 0 {
		e.LatencyMs = latency.Milliseconds()
	}
	if err != nil {
		e.Err = err.Error()
	}
	b, _ := json.Marshal(e)
	log.Println(string(b))
}

func Info(c *gin.Context, action string, fields map[string]any) {
	write("info", c, action, nil, fields, 0)
}

// Audit records a state change made by an admin or seller.
func Audit(c *gin.Context, action string, fields map[string]any) {
	write("audit", c, action, nil, fields, 0)
}

func Security(c *gin.Context, action string, fields map[string]any) {
	write("warn", c, action, nil, fields, 0)
}

func Error(c *gin.Context, action string, err error, fields map[string]any) {
	write("error", c, action, err, fields, 0)
}

// Access writes the per-request line emitted by the access log middleware.
func Access(c *gin.Context, latency time.Duration) {
	write("info", c, "http.request", nil, nil, latency)
}
