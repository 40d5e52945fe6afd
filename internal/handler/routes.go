package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PintaAI/pjkr-winter/internal/auth"
	"github.com/PintaAI/pjkr-winter/internal/httpmiddleware"
	"github.com/PintaAI/pjkr-winter/internal/model"
)

// RouterOptions configures the middleware around the routes.
type RouterOptions struct {
	RateLimitPerMin int
	AllowOrigins    []string
}

// NewRouter wires every route with recovery, logging, CORS and rate limiting.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.Logger("/healthz", "/metrics"))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(opts.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = opts.AllowOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	limit := httpmiddleware.NewSimpleTokenBucket(opts.RateLimitPerMin, opts.RateLimitPerMin).GinMiddleware()

	api := r.Group("/api")
	{
		api.POST("/auth/session", limit, h.CreateSession)
		api.POST("/attendance/update", limit, h.UpdateAttendance)
		api.GET("/peserta/:id", limit, h.GetPeserta)
		api.GET("/peserta/:id/qrcode", limit, h.PesertaQRCode)
	}

	organizer := api.Group("", auth.RequireRole(h.session.SigningKey, h.session.Issuer, string(model.RolePanitia)))
	{
		organizer.POST("/status/update", h.UpdateStatus)

		dash := organizer.Group("/dashboard")
		dash.GET("/status-templates", h.ListTemplates)
		dash.POST("/status-templates", h.CreateTemplate)
		dash.PUT("/status-templates/:nama", h.UpdateTemplate)
		dash.DELETE("/status-templates/:nama", h.DeleteTemplate)
		dash.POST("/status-templates/:nama/reconcile", h.ReconcileTemplate)

		dash.GET("/peserta", h.ListPeserta)
		dash.POST("/peserta", h.RegisterPeserta)
		dash.DELETE("/peserta/:id", h.DeletePeserta)
		dash.PUT("/peserta/:id/bus", h.AssignBus)
		dash.PUT("/peserta/:id/status/:nama", h.SetPesertaStatus)
		dash.POST("/peserta/:id/bukti-pembayaran", h.UploadBuktiPembayaran)

		dash.GET("/bus", h.ListBus)
		dash.POST("/bus", h.CreateBus)
		dash.GET("/bus/:id", h.GetBus)
		dash.PUT("/bus/:id", h.UpdateBus)
		dash.DELETE("/bus/:id", h.DeleteBus)
	}
	return r
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
