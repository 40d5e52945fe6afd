package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/PintaAI/pjkr-winter/internal/model"
	"github.com/PintaAI/pjkr-winter/internal/peserta"
	"github.com/PintaAI/pjkr-winter/internal/qrcode"
)

const msgInternal = "Terjadi kesalahan pada server"

// envelope is the response shape of every API route.
type envelope struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message,omitempty"`
	Error           string         `json:"error,omitempty"`
	AlreadyRecorded bool           `json:"alreadyRecorded,omitempty"`
	Peserta         *model.Peserta `json:"peserta,omitempty"`
	Data            any            `json:"data,omitempty"`
}

func ok(c *gin.Context, code int, message string, data any) {
	c.JSON(code, envelope{Success: true, Message: message, Data: data})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, envelope{Success: false, Message: message})
}

// fail maps err to a status code. Unknown errors are logged and hidden.
func fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
		c.JSON(code, envelope{Success: false, Message: msgInternal})
		return
	}
	c.JSON(code, envelope{Success: false, Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrPesertaNotFound),
		errors.Is(err, model.ErrBusNotFound),
		errors.Is(err, model.ErrStatusNotFound),
		errors.Is(err, model.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrTemplateExists),
		errors.Is(err, model.ErrBusFull):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidPeserta),
		errors.Is(err, model.ErrInvalidBus),
		errors.Is(err, model.ErrInvalidName),
		errors.Is(err, model.ErrBusMismatch),
		errors.Is(err, qrcode.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, peserta.ErrUploadUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
