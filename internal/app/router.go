// internal/app/router.go
package app

import (
	"net/http"
	"time"

	"leadflow-service/internal/config"
	dataHandler "leadflow-service/internal/handlers/distribution"
	statsHandler "leadflow-service/internal/handlers/stats"
	wsHandler "leadflow-service/internal/handlers/websocket"
	"leadflow-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	DataHandler    *dataHandler.DataHandler
	StatsHandler   *statsHandler.StatsHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    middleware.APIRateLimiter
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, cfg config.AppConfig, h *Handlers) {
	// ==================== Ops ====================
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== ADMIN ROUTES ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		data := admin.Group("/data")
		{
			importLimit := middleware.RateLimit(h.RateLimiter, "import", cfg.ImportRateLimit, time.Minute, logger)
			data.POST("/import", importLimit, h.DataHandler.Import)
			data.POST("/import/file", importLimit, h.DataHandler.ImportFile)

			data.GET("/pending", h.DataHandler.PendingData)
			data.GET("/batches", h.DataHandler.Batches)
			data.GET("/batches/:batch/stats", h.DataHandler.BatchStats)

			data.POST("/assign/tl", h.DataHandler.AssignToTL)
			data.POST("/assign/user", h.DataHandler.AssignToUser)
			data.POST("/reassign", h.DataHandler.Reassign)
			data.POST("/withdraw", h.DataHandler.AdminWithdraw)
			data.POST("/archive", h.DataHandler.Archive)

			data.GET("/stats", h.StatsHandler.Overview)
		}

		admin.GET("/tl/:id/stats", h.StatsHandler.TLStats)
		admin.GET("/users/:id/stats", h.StatsHandler.UserStats)
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}

	// ==================== TL ROUTES ====================
	tl := api.Group("/tl/data")
	tl.Use(h.AuthMiddleware.TLOnly()...)
	{
		tl.GET("", h.DataHandler.TLPool)
		tl.GET("/stats", h.StatsHandler.MyTLStats)
		tl.POST("/distribute", h.DataHandler.Distribute)
		tl.POST("/withdraw", h.DataHandler.TLWithdraw)
	}

	// ==================== MEMBER ROUTES ====================
	mine := api.Group("/data")
	mine.Use(h.AuthMiddleware.UserOnly()...)
	{
		mine.GET("/my", h.DataHandler.MyQueue)
		mine.GET("/my/stats", h.StatsHandler.MyUserStats)
		mine.PUT("/:id/status", h.DataHandler.UpdateStatus)
	}

	// any role; the service scopes what the caller may see
	api.GET("/data/:id", h.AuthMiddleware.Auth(), h.DataHandler.GetRecord)
}
