package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PintaAI/pjkr-winter/internal/model"
)

// Memory is a mutex-guarded in-process backend for dev and tests. It mirrors the
// Postgres repository's semantics, including the bus seat lock and the
// conditional status update.
type Memory struct {
	mu      sync.RWMutex
	peserta map[string]*model.Peserta
	bus     map[string]*model.Bus
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		peserta: make(map[string]*model.Peserta),
		bus:     make(map[string]*model.Bus),
	}
}

// -------- Peserta --------

func (m *Memory) CreatePeserta(_ context.Context, p *model.Peserta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.BusID != nil {
		if err := m.reserveSeat(*p.BusID, ""); err != nil {
			return err
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := m.peserta[p.ID]; ok {
		return model.ErrInvalidPeserta
	}

	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	for i := range p.Tiket {
		p.Tiket[i].ID, p.Tiket[i].PesertaID = uuid.NewString(), p.ID
	}
	for i := range p.Rental {
		p.Rental[i].ID, p.Rental[i].PesertaID = uuid.NewString(), p.ID
	}
	p.Status = nil
	for _, nama := range m.templateNames() {
		p.Status = append(p.Status, model.Status{ID: uuid.NewString(), PesertaID: p.ID, Nama: nama, UpdatedAt: now})
	}
	sortStatus(p.Status)

	stored := clonePeserta(p)
	stored.Bus = nil
	m.peserta[p.ID] = stored
	return nil
}

func (m *Memory) reserveSeat(busID, exceptPeserta string) error {
	b, ok := m.bus[busID]
	if !ok {
		return model.ErrBusNotFound
	}
	terisi := 0
	for _, p := range m.peserta {
		if p.ID != exceptPeserta && p.OnBus(busID) {
			terisi++
		}
	}
	if terisi >= b.Kapasitas {
		return model.ErrBusFull
	}
	return nil
}

func (m *Memory) GetPeserta(_ context.Context, id string) (*model.Peserta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peserta[id]
	if !ok {
		return nil, model.ErrPesertaNotFound
	}
	return m.withBus(p), nil
}

func (m *Memory) ListPeserta(_ context.Context, f model.PesertaFilter) ([]model.Peserta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []model.Peserta
	for _, p := range m.peserta {
		if f.BusID != "" && !p.OnBus(f.BusID) {
			continue
		}
		if f.Role != "" && p.Role != f.Role {
			continue
		}
		res = append(res, *m.withBus(p))
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Nama != res[j].Nama {
			return res[i].Nama < res[j].Nama
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (m *Memory) DeletePeserta(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.peserta[id]; !ok {
		return model.ErrPesertaNotFound
	}
	delete(m.peserta, id)
	return nil
}

func (m *Memory) AssignBus(_ context.Context, pesertaID string, busID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peserta[pesertaID]
	if !ok {
		return model.ErrPesertaNotFound
	}
	if busID != nil {
		if err := m.reserveSeat(*busID, pesertaID); err != nil {
			return err
		}
		id := *busID
		p.BusID = &id
	} else {
		p.BusID = nil
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) SetBuktiPembayaran(_ context.Context, pesertaID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peserta[pesertaID]
	if !ok {
		return model.ErrPesertaNotFound
	}
	p.BuktiPembayaran = url
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// -------- Bus --------

func (m *Memory) CreateBus(_ context.Context, b *model.Bus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, ok := m.bus[b.ID]; ok {
		return model.ErrInvalidBus
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	m.bus[b.ID] = &cp
	return nil
}

func (m *Memory) GetBus(_ context.Context, id string) (*model.Bus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bus[id]
	if !ok {
		return nil, model.ErrBusNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) UpdateBus(_ context.Context, b *model.Bus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bus[b.ID]
	if !ok {
		return model.ErrBusNotFound
	}
	cur.Nama, cur.Kapasitas, cur.UpdatedAt = b.Nama, b.Kapasitas, time.Now().UTC()
	return nil
}

func (m *Memory) DeleteBus(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bus[id]; !ok {
		return model.ErrBusNotFound
	}
	delete(m.bus, id)
	for _, p := range m.peserta {
		if p.OnBus(id) {
			p.BusID = nil
		}
	}
	return nil
}

func (m *Memory) BusLoad(_ context.Context, busID string) (*model.BusLoad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bus[busID]
	if !ok {
		return nil, model.ErrBusNotFound
	}
	return &model.BusLoad{Bus: *b, Terisi: m.occupancy(busID)}, nil
}

func (m *Memory) ListBusLoad(_ context.Context) ([]model.BusLoad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]model.BusLoad, 0, len(m.bus))
	for _, b := range m.bus {
		res = append(res, model.BusLoad{Bus: *b, Terisi: m.occupancy(b.ID)})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Bus.Nama != res[j].Bus.Nama {
			return res[i].Bus.Nama < res[j].Bus.Nama
		}
		return res[i].Bus.ID < res[j].Bus.ID
	})
	return res, nil
}

func (m *Memory) occupancy(busID string) int {
	n := 0
	for _, p := range m.peserta {
		if p.OnBus(busID) {
			n++
		}
	}
	return n
}

// -------- Status --------

func (m *Memory) MarkStatus(_ context.Context, pesertaID, nama, keterangan string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peserta[pesertaID]
	if !ok {
		return false, model.ErrStatusNotFound
	}
	s, ok := p.StatusByName(nama)
	if !ok {
		return false, model.ErrStatusNotFound
	}
	if s.Nilai {
		return false, nil
	}
	s.Nilai, s.Keterangan, s.UpdatedAt = true, keterangan, at
	return true, nil
}

func (m *Memory) SetStatus(_ context.Context, pesertaID, nama string, nilai bool, keterangan string, at time.Time) (*model.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peserta[pesertaID]
	if !ok {
		return nil, model.ErrStatusNotFound
	}
	s, ok := p.StatusByName(nama)
	if !ok {
		return nil, model.ErrStatusNotFound
	}
	s.Nilai, s.Keterangan, s.UpdatedAt = nilai, keterangan, at
	cp := *s
	return &cp, nil
}

func (m *Memory) CreateTemplate(_ context.Context, nama, keterangan string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.templateExists(nama) {
		return 0, model.ErrTemplateExists
	}
	return m.fanOut(nama, keterangan), nil
}

func (m *Memory) ReconcileTemplate(_ context.Context, nama, keterangan string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.templateExists(nama) {
		return 0, model.ErrTemplateNotFound
	}
	return m.fanOut(nama, keterangan), nil
}

func (m *Memory) fanOut(nama, keterangan string) int64 {
	now := time.Now().UTC()
	var n int64
	for _, p := range m.peserta {
		if _, ok := p.StatusByName(nama); ok {
			continue
		}
		p.Status = append(p.Status, model.Status{
			ID: uuid.NewString(), PesertaID: p.ID, Nama: nama, Keterangan: keterangan, UpdatedAt: now,
		})
		sortStatus(p.Status)
		n++
	}
	return n
}

func (m *Memory) RenameTemplate(_ context.Context, oldName, newName string, keterangan *string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.templateExists(oldName) {
		return 0, model.ErrTemplateNotFound
	}
	if oldName != newName && m.templateExists(newName) {
		return 0, model.ErrTemplateExists
	}
	var n int64
	for _, p := range m.peserta {
		s, ok := p.StatusByName(oldName)
		if !ok {
			continue
		}
		s.Nama = newName
		if keterangan != nil {
			s.Keterangan = *keterangan
		}
		sortStatus(p.Status)
		n++
	}
	return n, nil
}

func (m *Memory) DeleteTemplate(_ context.Context, nama string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.peserta {
		kept := p.Status[:0]
		for _, s := range p.Status {
			if s.Nama == nama {
				n++
				continue
			}
			kept = append(kept, s)
		}
		p.Status = kept
	}
	if n == 0 {
		return 0, model.ErrTemplateNotFound
	}
	return n, nil
}

func (m *Memory) TemplateExists(_ context.Context, nama string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.templateExists(nama), nil
}

func (m *Memory) ListTemplates(_ context.Context) ([]model.StatusTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := map[string]int{}
	for _, p := range m.peserta {
		for _, s := range p.Status {
			counts[s.Nama]++
		}
	}
	res := make([]model.StatusTemplate, 0, len(counts))
	for nama, n := range counts {
		res = append(res, model.StatusTemplate{Nama: nama, Jumlah: n})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Nama < res[j].Nama })
	return res, nil
}

func (m *Memory) templateExists(nama string) bool {
	for _, p := range m.peserta {
		if _, ok := p.StatusByName(nama); ok {
			return true
		}
	}
	return false
}

func (m *Memory) templateNames() []string {
	seen := map[string]struct{}{}
	for _, p := range m.peserta {
		for _, s := range p.Status {
			seen[s.Nama] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *Memory) withBus(p *model.Peserta) *model.Peserta {
	cp := clonePeserta(p)
	if p.BusID != nil {
		if b, ok := m.bus[*p.BusID]; ok {
			bc := *b
			cp.Bus = &bc
		}
	}
	return cp
}

func clonePeserta(p *model.Peserta) *model.Peserta {
	cp := *p
	if p.BusID != nil {
		id := *p.BusID
		cp.BusID = &id
	}
	cp.Tiket = append([]model.Tiket{}, p.Tiket...)
	cp.Rental = append([]model.Rental{}, p.Rental...)
	cp.Status = append([]model.Status{}, p.Status...)
	return &cp
}

func sortStatus(s []model.Status) {
	sort.Slice(s, func(i, j int) bool { return s[i].Nama < s[j].Nama })
}
