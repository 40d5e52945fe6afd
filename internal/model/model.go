package model

import "time"

// Role distinguishes regular participants from trip staff.
type Role string

const (
	RolePeserta Role = "peserta"
	RolePanitia Role = "panitia"
	RoleCrew    Role = "crew"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePeserta, RolePanitia, RoleCrew:
		return true
	}
	return false
}

// Well-known status names used by the attendance scanner and payment checks.
const (
	StatusKeberangkatan = "Keberangkatan"
	StatusKepulangan    = "Kepulangan"
	StatusPembayaran    = "Pembayaran"
)

// Peserta is a registered attendee (or crew/organizer) of the trip.
type Peserta struct {
	ID              string    `json:"id"`
	Nama            string    `json:"nama"`
	Email           string    `json:"email,omitempty"`
	Telepon         string    `json:"telepon,omitempty"`
	Role            Role      `json:"role"`
	BusID           *string   `json:"busId,omitempty"`
	Bus             *Bus      `json:"bus,omitempty"`
	BuktiPembayaran string    `json:"buktiPembayaran,omitempty"` // Cloudinary URL
	Tiket           []Tiket   `json:"tiket"`
	Rental          []Rental  `json:"rental"`
	Status          []Status  `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// StatusByName returns the participant's status entry with the given name.
func (p *Peserta) StatusByName(nama string) (*Status, bool) {
	for i := range p.Status {
		if p.Status[i].Nama == nama {
			return &p.Status[i], true
		}
	}
	return nil, false
}

// OnBus reports whether the participant is assigned to busID.
func (p *Peserta) OnBus(busID string) bool {
	return p.BusID != nil && *p.BusID == busID
}

// Bus is a coach with a configured seat capacity. Occupancy is always derived.
type Bus struct {
	ID        string    `json:"id"`
	Nama      string    `json:"nama"`
	Kapasitas int       `json:"kapasitas"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Status is a named boolean checklist flag attached to one participant.
type Status struct {
	ID         string    `json:"id"`
	PesertaID  string    `json:"pesertaId"`
	Nama       string    `json:"nama"`
	Nilai      bool      `json:"nilai"`
	Keterangan string    `json:"keterangan,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Tiket is a purchased ticket.
type Tiket struct {
	ID        string `json:"id"`
	PesertaID string `json:"pesertaId"`
	Jenis     string `json:"jenis"`
	Harga     int64  `json:"harga"`
}

// Rental is an equipment rental selection.
type Rental struct {
	ID        string `json:"id"`
	PesertaID string `json:"pesertaId"`
	Item      string `json:"item"`
	Ukuran    string `json:"ukuran,omitempty"`
	Jumlah    int    `json:"jumlah"`
}

// StatusTemplate is the aggregate view of every status entry sharing a name.
type StatusTemplate struct {
	Nama   string `json:"nama"`
	Jumlah int    `json:"jumlah"`
}

// PesertaFilter narrows participant listings.
type PesertaFilter struct {
	BusID string
	Role  Role
}

// BusLoad pairs a bus with its live occupancy.
type BusLoad struct {
	Bus    Bus `json:"bus"`
	Terisi int `json:"terisi"`
}
