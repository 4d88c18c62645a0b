package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/uptask/internal/realtime"
	"github.com/huangang/uptask/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, the mail queue and the
// realtime router.
type HealthHandler struct {
	db     *gorm.DB
	mail   services.MailQueue
	router *realtime.Router
}

func NewHealthHandler(db *gorm.DB, mail services.MailQueue, router *realtime.Router) *HealthHandler {
	return &HealthHandler{db: db, mail: mail, router: router}
}

// CheckHealth
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := 200

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = 503
	}

	queueMode := "sync"
	if h.mail != nil && h.mail.IsAsync() {
		queueMode = "async (Redis)"
	}

	components := gin.H{
		"database":   dbStatus,
		"queue_mode": queueMode,
	}
	if h.router != nil {
		components["realtime_sessions"] = h.router.SessionCount()
		components["realtime_rooms"] = h.router.RoomCount()
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"service":    "uptask",
		"components": components,
	})
}
