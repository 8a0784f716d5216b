package controllers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	db Pinger
}

func NewHealthController(db Pinger) *HealthController {
	return &HealthController{db: db}
}

// Check reports liveness. A failed database ping is reported, not fatal.
func (h *HealthController) Check(c *gin.Context) {
	ctx, cancel := requestContext(c, healthTimeout)
	defer cancel()

	db := "up"
	if err := h.db.Ping(ctx); err != nil {
		logger.Error(c, "health.db", err, nil)
		db = "down"
	}
	response.OK(c, gin.H{"status": "ok", "db": db, "time": time.Now().UTC()})
}
