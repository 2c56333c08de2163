package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atticusjxn/flynnai-sub001/internal/alerting"
	"github.com/atticusjxn/flynnai-sub001/internal/notify"
	"github.com/atticusjxn/flynnai-sub001/internal/ratelimit"
	"github.com/atticusjxn/flynnai-sub001/internal/retry"
)

// newAdminRouter exposes the operator surface: alert queries and
// acknowledgement, rate-limit overrides, error statistics and the
// in-app notification inbox. The limiter's own middleware fronts every
// route.
func newAdminRouter(limiter *ratelimit.Service, engine *alerting.Engine, classifier *retry.Classifier, inbox *notify.InAppChannel) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(limiter.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	alerts := router.Group("/admin/alerts")
	{
		alerts.GET("", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"alerts": engine.ActiveAlerts()})
		})
		alerts.GET("/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, engine.GetStatistics())
		})
		alerts.POST("/:id/ack", func(c *gin.Context) {
			actorID := c.GetHeader("X-Actor-ID")
			if actorID == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "X-Actor-ID header is required"})
				return
			}
			if err := engine.Acknowledge(c.Request.Context(), c.Param("id"), actorID); err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
		})
	}

	router.POST("/admin/ratelimit/override", func(c *gin.Context) {
		var req struct {
			Key    string `json:"key" binding:"required"`
			Action string `json:"action" binding:"required"`
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		actorID := c.GetHeader("X-Actor-ID")
		if actorID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Actor-ID header is required"})
			return
		}
		action := ratelimit.OverrideAction(req.Action)
		if err := limiter.Override(c.Request.Context(), req.Key, action, req.Reason, actorID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "applied"})
	})

	router.GET("/admin/errors/stats", func(c *gin.Context) {
		ownerID := c.Query("owner_id")
		if ownerID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
			return
		}
		hours := 24
		if h := c.Query("hours"); h != "" {
			if parsed, err := strconv.Atoi(h); err == nil && parsed > 0 {
				hours = parsed
			}
		}
		until := time.Now()
		since := until.Add(-time.Duration(hours) * time.Hour)
		stats, err := classifier.GetErrorStats(c.Request.Context(), ownerID, since, until)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	router.GET("/admin/notifications", func(c *gin.Context) {
		limit := 20
		if l := c.Query("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		c.JSON(http.StatusOK, gin.H{"notifications": inbox.Recent(limit)})
	})

	return router
}
