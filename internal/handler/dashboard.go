package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/PintaAI/pjkr-winter/internal/auth"
	"github.com/PintaAI/pjkr-winter/internal/model"
	"github.com/PintaAI/pjkr-winter/internal/peserta"
)

const maxProofBytes = 5 << 20

// -------- Status templates --------

func (h *Handler) ListTemplates(c *gin.Context) {
	list, err := h.templates.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", list)
}

type createTemplateRequest struct {
	Nama       string `json:"nama" binding:"required"`
	Keterangan string `json:"keterangan"`
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "nama status wajib diisi")
		return
	}
	n, err := h.templates.Create(c.Request.Context(), req.Nama, req.Keterangan)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, fmt.Sprintf("Status %s ditambahkan ke %d peserta", req.Nama, n), gin.H{"nama": req.Nama, "jumlah": n})
}

type updateTemplateRequest struct {
	Nama       string  `json:"nama" binding:"required"`
	Keterangan *string `json:"keterangan"`
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "nama status baru wajib diisi")
		return
	}
	n, err := h.templates.Rename(c.Request.Context(), c.Param("nama"), req.Nama, req.Keterangan)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Status berhasil diperbarui", gin.H{"nama": req.Nama, "jumlah": n})
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	n, err := h.templates.Delete(c.Request.Context(), c.Param("nama"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Status berhasil dihapus", gin.H{"jumlah": n})
}

func (h *Handler) ReconcileTemplate(c *gin.Context) {
	n, err := h.templates.Reconcile(c.Request.Context(), c.Param("nama"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, fmt.Sprintf("%d peserta dilengkapi", n), gin.H{"jumlah": n})
}

type setStatusRequest struct {
	Nilai      *bool  `json:"nilai" binding:"required"`
	Keterangan string `json:"keterangan"`
}

// SetPesertaStatus is the organizer's manual status correction.
func (h *Handler) SetPesertaStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "nilai wajib diisi")
		return
	}
	st, err := h.templates.SetStatus(c.Request.Context(), c.Param("id"), c.Param("nama"), *req.Nilai, req.Keterangan)
	if err != nil {
		fail(c, err)
		return
	}
	if claims, found := auth.FromContext(c); found {
		log.WithFields(log.Fields{"by": claims.Subject, "peserta_id": st.PesertaID, "status": st.Nama}).Info("manual status correction")
	}
	ok(c, http.StatusOK, "Status peserta diperbarui", st)
}

// -------- Peserta --------

func (h *Handler) ListPeserta(c *gin.Context) {
	list, err := h.peserta.List(c.Request.Context(), model.PesertaFilter{
		BusID: c.Query("busId"),
		Role:  model.Role(c.Query("role")),
	})
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []model.Peserta{}
	}
	ok(c, http.StatusOK, "", list)
}

func (h *Handler) RegisterPeserta(c *gin.Context) {
	var in peserta.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "data peserta tidak valid: "+err.Error())
		return
	}
	p, err := h.peserta.Register(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Peserta berhasil didaftarkan", p)
}

func (h *Handler) DeletePeserta(c *gin.Context) {
	if err := h.peserta.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Peserta berhasil dihapus", nil)
}

type assignBusRequest struct {
	BusID *string `json:"busId"`
}

func (h *Handler) AssignBus(c *gin.Context) {
	var req assignBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "busId tidak valid")
		return
	}
	p, err := h.peserta.ReassignBus(c.Request.Context(), c.Param("id"), req.BusID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Bus peserta diperbarui", p)
}

func (h *Handler) UploadBuktiPembayaran(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxProofBytes+1<<10)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file bukti pembayaran wajib diunggah (maks 5MB)")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxProofBytes+1))
	if err != nil {
		fail(c, err)
		return
	}
	if len(data) > maxProofBytes {
		badRequest(c, "file bukti pembayaran maksimal 5MB")
		return
	}
	p, err := h.peserta.AttachPaymentProof(c.Request.Context(), c.Param("id"), data, header.Filename)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Bukti pembayaran berhasil diunggah", p)
}

// -------- Bus --------

func (h *Handler) ListBus(c *gin.Context) {
	list, err := h.peserta.Buses(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", list)
}

func (h *Handler) CreateBus(c *gin.Context) {
	var in peserta.BusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "nama dan kapasitas (minimal 1) wajib diisi")
		return
	}
	b, err := h.peserta.CreateBus(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Bus berhasil ditambahkan", b)
}

func (h *Handler) GetBus(c *gin.Context) {
	d, err := h.peserta.BusDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", d)
}

func (h *Handler) UpdateBus(c *gin.Context) {
	var in peserta.BusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "nama dan kapasitas (minimal 1) wajib diisi")
		return
	}
	cp, err := h.peserta.UpdateBus(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	msg := "Bus berhasil diperbarui"
	if cp.Overcapacity {
		msg = fmt.Sprintf("Bus diperbarui, tetapi melebihi kapasitas (%d/%d)", cp.Terisi, cp.Kapasitas)
	}
	ok(c, http.StatusOK, msg, cp)
}

func (h *Handler) DeleteBus(c *gin.Context) {
	if err := h.peserta.DeleteBus(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Bus berhasil dihapus", nil)
}
