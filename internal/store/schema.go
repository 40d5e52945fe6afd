package store

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS bus (
	id          TEXT PRIMARY KEY,
	nama        TEXT NOT NULL,
	kapasitas   INTEGER NOT NULL CHECK (kapasitas > 0),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS peserta (
	id               TEXT PRIMARY KEY,
	nama             TEXT NOT NULL,
	email            TEXT NOT NULL DEFAULT '',
	telepon          TEXT NOT NULL DEFAULT '',
	role             TEXT NOT NULL DEFAULT 'peserta',
	bus_id           TEXT REFERENCES bus(id) ON DELETE SET NULL,
	bukti_pembayaran TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tiket (
	id          TEXT PRIMARY KEY,
	peserta_id  TEXT NOT NULL REFERENCES peserta(id) ON DELETE CASCADE,
	jenis       TEXT NOT NULL,
	harga       BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rental (
	id          TEXT PRIMARY KEY,
	peserta_id  TEXT NOT NULL REFERENCES peserta(id) ON DELETE CASCADE,
	item        TEXT NOT NULL,
	ukuran      TEXT NOT NULL DEFAULT '',
	jumlah      INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS status (
	id          TEXT PRIMARY KEY,
	peserta_id  TEXT NOT NULL REFERENCES peserta(id) ON DELETE CASCADE,
	nama        TEXT NOT NULL,
	nilai       BOOLEAN NOT NULL DEFAULT FALSE,
	keterangan  TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (peserta_id, nama)
);

CREATE INDEX IF NOT EXISTS idx_peserta_bus  ON peserta(bus_id);
CREATE INDEX IF NOT EXISTS idx_status_nama  ON status(nama);
`

// Migrate creates the tables used by the Postgres repository when they are missing.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.Client.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
