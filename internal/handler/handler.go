// Package handler exposes check-in, participant and dashboard operations over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/PintaAI/pjkr-winter/internal/attendance"
	"github.com/PintaAI/pjkr-winter/internal/auth"
	"github.com/PintaAI/pjkr-winter/internal/model"
	"github.com/PintaAI/pjkr-winter/internal/peserta"
	"github.com/PintaAI/pjkr-winter/internal/statustemplate"
)

// HealthChecker is a dependency reported by /healthz.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// SessionConfig signs organizer sessions.
type SessionConfig struct {
	Issuer     string
	SigningKey string
	TTL        time.Duration
}

// Handler holds the services behind the HTTP routes.
type Handler struct {
	checkins    *attendance.Service
	templates   *statustemplate.Registry
	peserta     *peserta.Service
	credentials auth.Credentials
	session     SessionConfig
	health      map[string]HealthChecker
}

func New(
	checkins *attendance.Service,
	templates *statustemplate.Registry,
	pesertaSvc *peserta.Service,
	credentials auth.Credentials,
	session SessionConfig,
	health map[string]HealthChecker,
) *Handler {
	return &Handler{
		checkins:    checkins,
		templates:   templates,
		peserta:     pesertaSvc,
		credentials: credentials,
		session:     session,
		health:      health,
	}
}

// Healthz reports each dependency; any unhealthy one yields 503.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, hc := range h.health {
		healthy := hc.Healthy(c.Request.Context())
		body[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

type sessionRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CreateSession exchanges organizer credentials for a bearer token.
func (h *Handler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username dan password wajib diisi")
		return
	}
	if !h.credentials.Verify(req.Username, req.Password) {
		log.WithField("username", req.Username).Warn("organizer login failed")
		c.JSON(http.StatusUnauthorized, envelope{Success: false, Message: "username atau password salah"})
		return
	}
	s, err := auth.Issue(req.Username, string(model.RolePanitia), h.session.Issuer, h.session.SigningKey, h.session.TTL)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Login berhasil", s)
}
