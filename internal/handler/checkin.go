package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PintaAI/pjkr-winter/internal/attendance"
	"github.com/PintaAI/pjkr-winter/internal/qrcode"
)

type attendanceRequest struct {
	PesertaID string `json:"pesertaId" binding:"required"`
	Type      string `json:"type" binding:"required"`
	BusID     string `json:"busId" binding:"required"`
}

// UpdateAttendance records a departure or return scan at a bus.
func (h *Handler) UpdateAttendance(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "pesertaId, type dan busId wajib diisi")
		return
	}
	id, err := qrcode.Decode(req.PesertaID)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	dir, err := attendance.ParseDirection(req.Type)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.checkins.CheckIn(c.Request.Context(), id, attendance.ForBus(dir, req.BusID))
	if err != nil {
		fail(c, err)
		return
	}
	respondCheckIn(c, res, false)
}

type statusUpdateRequest struct {
	PesertaID  string `json:"pesertaId" binding:"required"`
	StatusName string `json:"statusName" binding:"required"`
}

// UpdateStatus flags a named status through the check-in engine.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "pesertaId dan statusName wajib diisi")
		return
	}
	id, err := qrcode.Decode(req.PesertaID)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.checkins.CheckIn(c.Request.Context(), id, attendance.ForStatus(req.StatusName))
	if err != nil {
		fail(c, err)
		return
	}
	respondCheckIn(c, res, true)
}

func respondCheckIn(c *gin.Context, res attendance.Result, withPeserta bool) {
	body := envelope{
		Success:         res.Success(),
		Message:         res.Message,
		AlreadyRecorded: res.Outcome == attendance.AlreadyRecorded,
	}
	if withPeserta || res.Success() {
		body.Peserta = res.Peserta
	}
	code := http.StatusOK
	if !res.Success() {
		code = statusFor(res.Reason)
	}
	c.JSON(code, body)
}

// GetPeserta returns a participant with bus, tickets, rentals and status.
func (h *Handler) GetPeserta(c *gin.Context) {
	id, err := qrcode.Decode(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.peserta.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", p)
}

// PesertaQRCode renders the participant's QR code as PNG, or as text with format=text.
func (h *Handler) PesertaQRCode(c *gin.Context) {
	id, err := qrcode.Decode(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if _, err := h.peserta.Get(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}

	if c.Query("format") == "text" {
		s, err := qrcode.Terminal(id)
		if err != nil {
			fail(c, err)
			return
		}
		c.String(http.StatusOK, s)
		return
	}

	size := qrcode.DefaultSize
	if v := c.Query("size"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			size = parsed
		}
	}
	png, err := qrcode.Encode(id, size)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
