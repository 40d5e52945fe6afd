// Package statustemplate manages named status flags across all participants.
// A template has no row of its own; it exists while at least one participant
// carries a status with that name.
package statustemplate

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/PintaAI/pjkr-winter/internal/metrics"
	"github.com/PintaAI/pjkr-winter/internal/model"
)

const maxNameLen = 100

// Store performs the bulk statements behind each template operation.
type Store interface {
	CreateTemplate(ctx context.Context, nama, keterangan string) (int64, error)
	ReconcileTemplate(ctx context.Context, nama, keterangan string) (int64, error)
	RenameTemplate(ctx context.Context, oldName, newName string, keterangan *string) (int64, error)
	DeleteTemplate(ctx context.Context, nama string) (int64, error)
	ListTemplates(ctx context.Context) ([]model.StatusTemplate, error)
	SetStatus(ctx context.Context, pesertaID, nama string, nilai bool, keterangan string, at time.Time) (*model.Status, error)
}

// Registry is the organizer-facing template API.
type Registry struct {
	store Store
	now   func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// NormalizeName trims nama and validates its length.
func NormalizeName(nama string) (string, error) {
	nama = strings.TrimSpace(nama)
	if nama == "" || utf8.RuneCountInString(nama) > maxNameLen {
		return "", model.ErrInvalidName
	}
	return nama, nil
}

// Create adds a status named nama (false) to every participant and returns the
// number of rows written.
func (r *Registry) Create(ctx context.Context, nama, keterangan string) (int64, error) {
	nama, err := NormalizeName(nama)
	if err != nil {
		return 0, err
	}
	n, err := r.store.CreateTemplate(ctx, nama, strings.TrimSpace(keterangan))
	return r.record("create", nama, n, err)
}

// Rename renames every status named oldName. A nil keterangan keeps existing notes.
func (r *Registry) Rename(ctx context.Context, oldName, newName string, keterangan *string) (int64, error) {
	oldName, err := NormalizeName(oldName)
	if err != nil {
		return 0, err
	}
	newName, err = NormalizeName(newName)
	if err != nil {
		return 0, err
	}
	if keterangan != nil {
		k := strings.TrimSpace(*keterangan)
		keterangan = &k
	}
	n, err := r.store.RenameTemplate(ctx, oldName, newName, keterangan)
	return r.record("rename", oldName, n, err)
}

// Delete removes every status named nama.
func (r *Registry) Delete(ctx context.Context, nama string) (int64, error) {
	nama, err := NormalizeName(nama)
	if err != nil {
		return 0, err
	}
	n, err := r.store.DeleteTemplate(ctx, nama)
	return r.record("delete", nama, n, err)
}

// Reconcile seeds nama for participants registered without it.
func (r *Registry) Reconcile(ctx context.Context, nama string) (int64, error) {
	nama, err := NormalizeName(nama)
	if err != nil {
		return 0, err
	}
	n, err := r.store.ReconcileTemplate(ctx, nama, "")
	return r.record("reconcile", nama, n, err)
}

// List returns distinct template names with how many participants carry each.
func (r *Registry) List(ctx context.Context) ([]model.StatusTemplate, error) {
	return r.store.ListTemplates(ctx)
}

// SetStatus is the organizer's manual correction; unlike check-in it may set false.
func (r *Registry) SetStatus(ctx context.Context, pesertaID, nama string, nilai bool, keterangan string) (*model.Status, error) {
	nama, err := NormalizeName(nama)
	if err != nil {
		return nil, err
	}
	st, err := r.store.SetStatus(ctx, pesertaID, nama, nilai, strings.TrimSpace(keterangan), r.now())
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"peserta_id": pesertaID, "status": nama, "nilai": nilai}).Info("status updated")
	return st, nil
}

func (r *Registry) record(op, nama string, n int64, err error) (int64, error) {
	switch {
	case err == nil:
		metrics.TemplateOps.WithLabelValues(op, "ok").Inc()
		metrics.TemplateRows.WithLabelValues(op).Add(float64(n))
		log.WithFields(log.Fields{"op": op, "template": nama, "rows": n}).Info("status template updated")
	case errors.Is(err, model.ErrTemplateExists), errors.Is(err, model.ErrTemplateNotFound):
		metrics.TemplateOps.WithLabelValues(op, "rejected").Inc()
	default:
		metrics.TemplateOps.WithLabelValues(op, "error").Inc()
	}
	return n, err
}
