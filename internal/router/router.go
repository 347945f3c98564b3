package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-casebook/internal/config"
	"github.com/stemsi/exstem-casebook/internal/handler"
	"github.com/stemsi/exstem-casebook/internal/middleware"
	"github.com/stemsi/exstem-casebook/internal/response"
	"github.com/stemsi/exstem-casebook/internal/session"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Asset   *handler.AssetHandler
	WS      *handler.WSHandler
	Monitor *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	proctor session.PasswordVerifier,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", response.HeaderRequestID, middleware.ProctorHeader}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID, "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Videos and PDFs are already compressed and served with range support.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper: func(c *gin.Context) bool {
			return strings.HasPrefix(c.Request.URL.Path, "/api/v1/assets/")
		},
	}))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Endpoints that check the proctor password are rate limited per IP.
	startLimiter := middleware.NewRateLimiter(10, time.Minute)
	monitorLimiter := middleware.NewRateLimiter(60, time.Minute)

	// ─── 1. Session Group (capability URL, no auth) ────────────────────
	sessions := router.Group("/api/v1/sessions")
	sessions.Use(middleware.NoStore())
	{
		sessions.POST("", handlers.Session.Login)
		sessions.GET("/:id/state", handlers.Session.GetState)
		sessions.POST("/:id/start", startLimiter.Middleware(), handlers.Session.Start)
		sessions.GET("/:id/content", handlers.Session.GetContent)
		sessions.PUT("/:id/answers", handlers.Session.PutAnswer)
		sessions.POST("/:id/advance", handlers.Session.Advance)
		sessions.GET("/:id/results", handlers.Session.GetResults)
		sessions.GET("/:id/export.csv", handlers.Session.ExportCSV)
		sessions.GET("/:id/export.json", handlers.Session.ExportJSON)
		sessions.POST("/:id/submit", handlers.Session.Submit)
	}

	// ─── 2. Assets (cached for a day) ──────────────────────────────────
	assets := router.Group("/api/v1/assets")
	assets.Use(middleware.CacheControl(86400))
	{
		assets.GET("/scenarios/:scenario/:name", handlers.Asset.GetAsset)
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Monitor Group (proctor password) ───────────────────────────
	monitor := router.Group("/api/v1/monitor")
	monitor.Use(monitorLimiter.Middleware(), middleware.RequireProctor(proctor))
	{
		monitor.GET("/sessions", handlers.Monitor.ListSessions)
		monitor.GET("/stream", handlers.Monitor.MonitorSSE)
		monitor.GET("/submissions", handlers.Monitor.ListSubmissions)
	}

	return router
}
