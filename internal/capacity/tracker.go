// Package capacity derives bus occupancy from participant assignments and
// compares it against configured seat capacity.
package capacity

import (
	"context"

	"github.com/PintaAI/pjkr-winter/internal/model"
)

// Store is the read side the tracker needs. Occupancy is always counted live.
type Store interface {
	BusLoad(ctx context.Context, busID string) (*model.BusLoad, error)
	ListBusLoad(ctx context.Context) ([]model.BusLoad, error)
}

// Capacity is the result of a capacity check for one bus.
type Capacity struct {
	BusID        string `json:"busId"`
	Nama         string `json:"nama"`
	Terisi       int    `json:"terisi"`
	Kapasitas    int    `json:"kapasitas"`
	Tersisa      int    `json:"tersisa"`
	Penuh        bool   `json:"penuh"`
	Overcapacity bool   `json:"overcapacity"`
}

// Tracker answers capacity questions for registration and the dashboard.
type Tracker struct {
	store Store
}

// NewTracker creates a tracker backed by store.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Check returns occupancy and capacity for busID.
func (t *Tracker) Check(ctx context.Context, busID string) (Capacity, error) {
	load, err := t.store.BusLoad(ctx, busID)
	if err != nil {
		return Capacity{}, err
	}
	return fromLoad(*load), nil
}

// EnsureSeat fails with model.ErrBusFull when busID has no free seat. The store
// re-checks under a row lock when the assignment is written.
func (t *Tracker) EnsureSeat(ctx context.Context, busID string) error {
	c, err := t.Check(ctx, busID)
	if err != nil {
		return err
	}
	if c.Penuh {
		return model.ErrBusFull
	}
	return nil
}

// Overview returns the capacity of every bus, ordered by name.
func (t *Tracker) Overview(ctx context.Context) ([]Capacity, error) {
	loads, err := t.store.ListBusLoad(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Capacity, 0, len(loads))
	for _, l := range loads {
		out = append(out, fromLoad(l))
	}
	return out, nil
}

func fromLoad(l model.BusLoad) Capacity {
	return Capacity{
		BusID:        l.Bus.ID,
		Nama:         l.Bus.Nama,
		Terisi:       l.Terisi,
		Kapasitas:    l.Bus.Kapasitas,
		Tersisa:      max(l.Bus.Kapasitas-l.Terisi, 0),
		Penuh:        l.Terisi >= l.Bus.Kapasitas,
		Overcapacity: l.Terisi > l.Bus.Kapasitas,
	}
}
