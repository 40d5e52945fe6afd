package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PintaAI/pjkr-winter/internal/metrics"
	"github.com/PintaAI/pjkr-winter/internal/model"
)

// Direction selects the attendance leg being recorded.
type Direction string

const (
	Departure Direction = "departure"
	Return    Direction = "return"
)

// ParseDirection validates a request's direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Departure:
		return Departure, nil
	case Return:
		return Return, nil
	}
	return "", fmt.Errorf("type harus departure atau return, bukan %q", s)
}

// StatusName maps the direction to the status flag it sets.
func (d Direction) StatusName() string {
	if d == Return {
		return model.StatusKepulangan
	}
	return model.StatusKeberangkatan
}

// Target describes what a check-in should flag. Either StatusName is set
// (generic toggle) or Direction and BusID are (bus attendance).
type Target struct {
	StatusName string
	Direction  Direction
	BusID      string
}

// ForBus builds an attendance target for a scan at busID.
func ForBus(d Direction, busID string) Target {
	return Target{Direction: d, BusID: busID}
}

// ForStatus builds a generic target for a named status.
func ForStatus(nama string) Target {
	return Target{StatusName: nama}
}

func (t Target) statusName() string {
	if t.Direction != "" {
		return t.Direction.StatusName()
	}
	return t.StatusName
}

// Outcome is the result class of a check-in.
type Outcome string

const (
	Recorded        Outcome = "recorded"
	AlreadyRecorded Outcome = "already_recorded"
	Rejected        Outcome = "rejected"
)

// Result is reported back to the scanner or dashboard.
type Result struct {
	Outcome Outcome
	Message string
	// Reason is the sentinel behind a rejection.
	Reason  error
	Peserta *model.Peserta
	Status  *model.Status
}

// Success reports whether the operator should see a positive outcome.
func (r Result) Success() bool { return r.Outcome != Rejected }

// Store is the persistence the engine needs.
type Store interface {
	GetPeserta(ctx context.Context, id string) (*model.Peserta, error)
	MarkStatus(ctx context.Context, pesertaID, nama, keterangan string, at time.Time) (bool, error)
}

// Service decides and records check-ins.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// CheckIn flags the target status true for pesertaID. Rejections are returned
// as results; only unexpected store failures are returned as errors.
func (s *Service) CheckIn(ctx context.Context, pesertaID string, target Target) (Result, error) {
	nama := target.statusName()
	res, err := s.checkIn(ctx, pesertaID, target, nama)
	if err != nil {
		metrics.CheckIns.WithLabelValues(nama, "error").Inc()
		return Result{}, err
	}
	metrics.CheckIns.WithLabelValues(nama, string(res.Outcome)).Inc()
	return res, nil
}

func (s *Service) checkIn(ctx context.Context, pesertaID string, target Target, nama string) (Result, error) {
	if nama == "" {
		return reject(model.ErrStatusNotFound, nil), nil
	}

	p, err := s.store.GetPeserta(ctx, pesertaID)
	if errors.Is(err, model.ErrPesertaNotFound) {
		return reject(model.ErrPesertaNotFound, nil), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("get peserta %s: %w", pesertaID, err)
	}

	if target.BusID != "" && !p.OnBus(target.BusID) {
		return reject(model.ErrBusMismatch, p), nil
	}

	st, ok := p.StatusByName(nama)
	if !ok {
		return reject(model.ErrStatusNotFound, p), nil
	}
	if st.Nilai {
		return Result{Outcome: AlreadyRecorded, Message: alreadyMessage(target, nama), Peserta: p, Status: st}, nil
	}

	at := s.now()
	note := autoNote(target)
	changed, err := s.store.MarkStatus(ctx, p.ID, nama, note, at)
	if errors.Is(err, model.ErrStatusNotFound) {
		// template deleted between read and write
		return reject(model.ErrStatusNotFound, p), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("mark status %s for %s: %w", nama, p.ID, err)
	}
	if !changed {
		// another device recorded it first
		return Result{Outcome: AlreadyRecorded, Message: alreadyMessage(target, nama), Peserta: p, Status: st}, nil
	}

	st.Nilai, st.Keterangan, st.UpdatedAt = true, note, at
	return Result{Outcome: Recorded, Message: recordedMessage(target, nama), Peserta: p, Status: st}, nil
}

func reject(reason error, p *model.Peserta) Result {
	return Result{Outcome: Rejected, Message: reason.Error(), Reason: reason, Peserta: p}
}

func recordedMessage(t Target, nama string) string {
	switch t.Direction {
	case Departure:
		return "Absen keberangkatan berhasil dicatat"
	case Return:
		return "Absen kepulangan berhasil dicatat"
	}
	return fmt.Sprintf("Status %s berhasil dicatat", nama)
}

func alreadyMessage(t Target, nama string) string {
	switch t.Direction {
	case Departure:
		return "Peserta sudah absen keberangkatan"
	case Return:
		return "Peserta sudah absen kepulangan"
	}
	return fmt.Sprintf("Status %s sudah tercatat", nama)
}

func autoNote(t Target) string {
	switch t.Direction {
	case Departure:
		return "Absen keberangkatan berhasil"
	case Return:
		return "Absen kepulangan berhasil"
	}
	return "Check-in via QR"
}
