// Package peserta implements participant registration and the organizer's
// participant and bus administration.
package peserta

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/PintaAI/pjkr-winter/internal/capacity"
	"github.com/PintaAI/pjkr-winter/internal/cloudinary"
	"github.com/PintaAI/pjkr-winter/internal/metrics"
	"github.com/PintaAI/pjkr-winter/internal/model"
)

// ErrUploadUnavailable is returned when no upload backend is configured.
var ErrUploadUnavailable = errors.New("upload bukti pembayaran belum dikonfigurasi")

var allowedProofExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".pdf": true}

// Store is the persistence the service needs.
type Store interface {
	CreatePeserta(ctx context.Context, p *model.Peserta) error
	GetPeserta(ctx context.Context, id string) (*model.Peserta, error)
	ListPeserta(ctx context.Context, f model.PesertaFilter) ([]model.Peserta, error)
	DeletePeserta(ctx context.Context, id string) error
	AssignBus(ctx context.Context, pesertaID string, busID *string) error
	SetBuktiPembayaran(ctx context.Context, pesertaID, url string) error

	CreateBus(ctx context.Context, b *model.Bus) error
	GetBus(ctx context.Context, id string) (*model.Bus, error)
	UpdateBus(ctx context.Context, b *model.Bus) error
	DeleteBus(ctx context.Context, id string) error
}

// Uploader stores payment proof files and returns their public URL.
type Uploader interface {
	Configured() bool
	Upload(ctx context.Context, data []byte, filename string) (*cloudinary.UploadResult, error)
}

// RegisterInput is a new participant's registration form.
type RegisterInput struct {
	Nama    string         `json:"nama" binding:"required,max=100"`
	Email   string         `json:"email" binding:"omitempty,email"`
	Telepon string         `json:"telepon" binding:"omitempty,max=30"`
	Role    model.Role     `json:"role"`
	BusID   *string        `json:"busId"`
	Tiket   []model.Tiket  `json:"tiket"`
	Rental  []model.Rental `json:"rental"`
}

// BusInput creates or updates a bus.
type BusInput struct {
	Nama      string `json:"nama" binding:"required,max=100"`
	Kapasitas int    `json:"kapasitas" binding:"required,min=1"`
}

// BusDetail is a bus with its live occupancy and assigned participants.
type BusDetail struct {
	Capacity capacity.Capacity `json:"capacity"`
	Peserta  []model.Peserta   `json:"peserta"`
}

// Service coordinates registration with capacity checks.
type Service struct {
	store    Store
	tracker  *capacity.Tracker
	uploader Uploader
}

func NewService(store Store, tracker *capacity.Tracker, uploader Uploader) *Service {
	return &Service{store: store, tracker: tracker, uploader: uploader}
}

// Register validates and stores a participant. A requested bus is checked up
// front for a friendly error; the store re-checks under a lock on insert.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Peserta, error) {
	p, err := in.toPeserta()
	if err != nil {
		metrics.Registrations.WithLabelValues("register", "invalid").Inc()
		return nil, err
	}
	if p.BusID != nil {
		if err := s.tracker.EnsureSeat(ctx, *p.BusID); err != nil {
			metrics.Registrations.WithLabelValues("register", resultLabel(err)).Inc()
			return nil, err
		}
	}
	if err := s.store.CreatePeserta(ctx, p); err != nil {
		metrics.Registrations.WithLabelValues("register", resultLabel(err)).Inc()
		return nil, err
	}
	metrics.Registrations.WithLabelValues("register", "ok").Inc()
	log.WithFields(log.Fields{"peserta_id": p.ID, "role": p.Role, "bus_id": strOrEmpty(p.BusID)}).Info("peserta registered")
	return s.store.GetPeserta(ctx, p.ID)
}

func (in RegisterInput) toPeserta() (*model.Peserta, error) {
	nama := strings.TrimSpace(in.Nama)
	if nama == "" {
		return nil, fmt.Errorf("%w: nama wajib diisi", model.ErrInvalidPeserta)
	}
	role := in.Role
	if role == "" {
		role = model.RolePeserta
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role %q tidak dikenal", model.ErrInvalidPeserta, in.Role)
	}
	for _, t := range in.Tiket {
		if strings.TrimSpace(t.Jenis) == "" || t.Harga < 0 {
			return nil, fmt.Errorf("%w: tiket tidak valid", model.ErrInvalidPeserta)
		}
	}
	for _, r := range in.Rental {
		if strings.TrimSpace(r.Item) == "" || r.Jumlah < 1 {
			return nil, fmt.Errorf("%w: rental tidak valid", model.ErrInvalidPeserta)
		}
	}
	p := &model.Peserta{
		Nama:    nama,
		Email:   strings.TrimSpace(in.Email),
		Telepon: strings.TrimSpace(in.Telepon),
		Role:    role,
		Tiket:   append([]model.Tiket(nil), in.Tiket...),
		Rental:  append([]model.Rental(nil), in.Rental...),
	}
	if in.BusID != nil && strings.TrimSpace(*in.BusID) != "" {
		id := strings.TrimSpace(*in.BusID)
		p.BusID = &id
	}
	return p, nil
}

// ReassignBus moves a participant to busID, or unassigns them when busID is nil.
func (s *Service) ReassignBus(ctx context.Context, id string, busID *string) (*model.Peserta, error) {
	p, err := s.store.GetPeserta(ctx, id)
	if err != nil {
		return nil, err
	}
	if busID != nil && *busID == "" {
		busID = nil
	}
	if busID != nil && p.OnBus(*busID) {
		return p, nil
	}
	if busID != nil {
		if err := s.tracker.EnsureSeat(ctx, *busID); err != nil {
			metrics.Registrations.WithLabelValues("reassign", resultLabel(err)).Inc()
			return nil, err
		}
	}
	if err := s.store.AssignBus(ctx, id, busID); err != nil {
		metrics.Registrations.WithLabelValues("reassign", resultLabel(err)).Inc()
		return nil, err
	}
	metrics.Registrations.WithLabelValues("reassign", "ok").Inc()
	log.WithFields(log.Fields{"peserta_id": id, "from": strOrEmpty(p.BusID), "to": strOrEmpty(busID)}).Info("peserta bus changed")
	return s.store.GetPeserta(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*model.Peserta, error) {
	return s.store.GetPeserta(ctx, id)
}

func (s *Service) List(ctx context.Context, f model.PesertaFilter) ([]model.Peserta, error) {
	if f.Role != "" && !f.Role.Valid() {
		return nil, fmt.Errorf("%w: role %q tidak dikenal", model.ErrInvalidPeserta, f.Role)
	}
	return s.store.ListPeserta(ctx, f)
}

// Delete removes a participant together with their status, tickets and rentals.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeletePeserta(ctx, id); err != nil {
		return err
	}
	log.WithField("peserta_id", id).Info("peserta deleted")
	return nil
}

// AttachPaymentProof uploads a payment proof and stores its URL on the participant.
func (s *Service) AttachPaymentProof(ctx context.Context, id string, data []byte, filename string) (*model.Peserta, error) {
	if s.uploader == nil || !s.uploader.Configured() {
		return nil, ErrUploadUnavailable
	}
	if len(data) == 0 || !allowedProofExt[strings.ToLower(filepath.Ext(filename))] {
		return nil, fmt.Errorf("%w: file bukti pembayaran harus gambar atau pdf", model.ErrInvalidPeserta)
	}
	if _, err := s.store.GetPeserta(ctx, id); err != nil {
		return nil, err
	}
	res, err := s.uploader.Upload(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("upload bukti pembayaran: %w", err)
	}
	if err := s.store.SetBuktiPembayaran(ctx, id, res.SecureURL); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"peserta_id": id, "public_id": res.PublicID}).Info("bukti pembayaran uploaded")
	return s.store.GetPeserta(ctx, id)
}

// -------- Bus --------

func (s *Service) CreateBus(ctx context.Context, in BusInput) (*model.Bus, error) {
	b, err := in.toBus()
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateBus(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBus changes a bus's name or capacity. Capacity may drop below current
// occupancy; the returned Capacity then reports Overcapacity.
func (s *Service) UpdateBus(ctx context.Context, id string, in BusInput) (capacity.Capacity, error) {
	b, err := in.toBus()
	if err != nil {
		return capacity.Capacity{}, err
	}
	b.ID = id
	if err := s.store.UpdateBus(ctx, b); err != nil {
		return capacity.Capacity{}, err
	}
	c, err := s.tracker.Check(ctx, id)
	if err != nil {
		return capacity.Capacity{}, err
	}
	if c.Overcapacity {
		log.WithFields(log.Fields{"bus_id": id, "terisi": c.Terisi, "kapasitas": c.Kapasitas}).Warn("bus over capacity")
	}
	return c, nil
}

// DeleteBus removes a bus; its participants become unassigned.
func (s *Service) DeleteBus(ctx context.Context, id string) error {
	return s.store.DeleteBus(ctx, id)
}

func (s *Service) BusDetail(ctx context.Context, id string) (*BusDetail, error) {
	c, err := s.tracker.Check(ctx, id)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListPeserta(ctx, model.PesertaFilter{BusID: id})
	if err != nil {
		return nil, err
	}
	return &BusDetail{Capacity: c, Peserta: list}, nil
}

// Buses returns every bus with its occupancy.
func (s *Service) Buses(ctx context.Context) ([]capacity.Capacity, error) {
	return s.tracker.Overview(ctx)
}

func (in BusInput) toBus() (*model.Bus, error) {
	nama := strings.TrimSpace(in.Nama)
	if nama == "" || in.Kapasitas < 1 {
		return nil, fmt.Errorf("%w: nama dan kapasitas (minimal 1) wajib diisi", model.ErrInvalidBus)
	}
	return &model.Bus{Nama: nama, Kapasitas: in.Kapasitas}, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, model.ErrBusFull):
		return "bus_full"
	case errors.Is(err, model.ErrBusNotFound), errors.Is(err, model.ErrPesertaNotFound):
		return "not_found"
	case errors.Is(err, model.ErrInvalidPeserta):
		return "invalid"
	}
	return "error"
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
