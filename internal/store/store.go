package store

import (
	"context"
	"time"

	"github.com/PintaAI/pjkr-winter/internal/model"
)

// Store is the full participant record store. Repository and Memory both satisfy it.
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
	BusLoad(ctx context.Context, busID string) (*model.BusLoad, error)
	ListBusLoad(ctx context.Context) ([]model.BusLoad, error)

	MarkStatus(ctx context.Context, pesertaID, nama, keterangan string, at time.Time) (bool, error)
	SetStatus(ctx context.Context, pesertaID, nama string, nilai bool, keterangan string, at time.Time) (*model.Status, error)
	CreateTemplate(ctx context.Context, nama, keterangan string) (int64, error)
	ReconcileTemplate(ctx context.Context, nama, keterangan string) (int64, error)
	RenameTemplate(ctx context.Context, oldName, newName string, keterangan *string) (int64, error)
	DeleteTemplate(ctx context.Context, nama string) (int64, error)
	TemplateExists(ctx context.Context, nama string) (bool, error)
	ListTemplates(ctx context.Context) ([]model.StatusTemplate, error)
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*Memory)(nil)
)
