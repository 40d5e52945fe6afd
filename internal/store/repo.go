package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/PintaAI/pjkr-winter/internal/model"
)

const uniqueViolation = "23505"

// Repository persists participants, buses and status flags in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// -------- Peserta --------

const pesertaColumns = `id, nama, email, telepon, role, bus_id, bukti_pembayaran, created_at, updated_at`

// CreatePeserta inserts a participant with its tickets and rentals and seeds every
// existing status template. When a bus is requested the bus row is locked so the
// occupancy recount and the insert happen atomically.
func (r *Repository) CreatePeserta(ctx context.Context, p *model.Peserta) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if p.BusID != nil {
		if err := reserveSeat(ctx, tx, *p.BusID, ""); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO peserta (id, nama, email, telepon, role, bus_id, bukti_pembayaran, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, p.ID, p.Nama, p.Email, p.Telepon, string(p.Role), p.BusID, p.BuktiPembayaran, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: id %s sudah dipakai", model.ErrInvalidPeserta, p.ID)
		}
		return fmt.Errorf("insert peserta: %w", err)
	}

	for i := range p.Tiket {
		t := &p.Tiket[i]
		t.ID, t.PesertaID = uuid.NewString(), p.ID
		if _, err := tx.ExecContext(ctx, `INSERT INTO tiket (id, peserta_id, jenis, harga) VALUES ($1,$2,$3,$4)`,
			t.ID, t.PesertaID, t.Jenis, t.Harga); err != nil {
			return fmt.Errorf("insert tiket: %w", err)
		}
	}
	for i := range p.Rental {
		rl := &p.Rental[i]
		rl.ID, rl.PesertaID = uuid.NewString(), p.ID
		if _, err := tx.ExecContext(ctx, `INSERT INTO rental (id, peserta_id, item, ukuran, jumlah) VALUES ($1,$2,$3,$4,$5)`,
			rl.ID, rl.PesertaID, rl.Item, rl.Ukuran, rl.Jumlah); err != nil {
			return fmt.Errorf("insert rental: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO status (id, peserta_id, nama, nilai, keterangan, updated_at)
		SELECT gen_random_uuid()::text, $1, t.nama, FALSE, '', $2
		FROM (SELECT DISTINCT nama FROM status) t
		ON CONFLICT (peserta_id, nama) DO NOTHING
	`, p.ID, now); err != nil {
		return fmt.Errorf("seed status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	statuses, err := r.loadStatus(ctx, []string{p.ID})
	if err != nil {
		return err
	}
	p.Status = statuses[p.ID]
	return nil
}

// reserveSeat locks the bus row and fails with ErrBusFull when no seat is left.
// exceptPeserta is excluded from the count so re-assigning a participant to its
// current bus never counts it twice.
func reserveSeat(ctx context.Context, tx *sql.Tx, busID, exceptPeserta string) error {
	var kapasitas int
	err := tx.QueryRowContext(ctx, `SELECT kapasitas FROM bus WHERE id = $1 FOR UPDATE`, busID).Scan(&kapasitas)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrBusNotFound
	}
	if err != nil {
		return fmt.Errorf("lock bus: %w", err)
	}

	var terisi int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM peserta WHERE bus_id = $1 AND id <> $2`, busID, exceptPeserta).
		Scan(&terisi); err != nil {
		return fmt.Errorf("count occupancy: %w", err)
	}
	if terisi >= kapasitas {
		return model.ErrBusFull
	}
	return nil
}

// GetPeserta returns a participant with ticket, rental, bus and status relations.
func (r *Repository) GetPeserta(ctx context.Context, id string) (*model.Peserta, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pesertaColumns+` FROM peserta WHERE id = $1`, id)
	p, err := scanPeserta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPesertaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get peserta: %w", err)
	}
	list := []model.Peserta{*p}
	if err := r.attachRelations(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListPeserta returns participants ordered by name.
func (r *Repository) ListPeserta(ctx context.Context, f model.PesertaFilter) ([]model.Peserta, error) {
	query := `SELECT ` + pesertaColumns + ` FROM peserta`
	args := []any{}
	clauses := []string{}
	if f.BusID != "" {
		args = append(args, f.BusID)
		clauses = append(clauses, fmt.Sprintf("bus_id = $%d", len(args)))
	}
	if f.Role != "" {
		args = append(args, string(f.Role))
		clauses = append(clauses, fmt.Sprintf("role = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY nama, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list peserta: %w", err)
	}
	defer rows.Close()

	var res []model.Peserta
	for rows.Next() {
		p, err := scanPeserta(rows)
		if err != nil {
			return nil, fmt.Errorf("scan peserta: %w", err)
		}
		res = append(res, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachRelations(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// DeletePeserta removes a participant; status, tiket and rental rows cascade.
func (r *Repository) DeletePeserta(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM peserta WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete peserta: %w", err)
	}
	return expectRows(res, model.ErrPesertaNotFound)
}

// AssignBus moves a participant to busID, or unassigns it when busID is nil.
func (r *Repository) AssignBus(ctx context.Context, pesertaID string, busID *string) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if busID != nil {
		if err := reserveSeat(ctx, tx, *busID, pesertaID); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `UPDATE peserta SET bus_id = $2, updated_at = NOW() WHERE id = $1`, pesertaID, busID)
	if err != nil {
		return fmt.Errorf("assign bus: %w", err)
	}
	if err := expectRows(res, model.ErrPesertaNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

// SetBuktiPembayaran stores the uploaded payment proof URL.
func (r *Repository) SetBuktiPembayaran(ctx context.Context, pesertaID, url string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE peserta SET bukti_pembayaran = $2, updated_at = NOW() WHERE id = $1`, pesertaID, url)
	if err != nil {
		return fmt.Errorf("set bukti pembayaran: %w", err)
	}
	return expectRows(res, model.ErrPesertaNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeserta(row rowScanner) (*model.Peserta, error) {
	var p model.Peserta
	var role string
	var busID sql.NullString
	if err := row.Scan(&p.ID, &p.Nama, &p.Email, &p.Telepon, &role, &busID, &p.BuktiPembayaran, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = model.Role(role)
	if busID.Valid {
		id := busID.String
		p.BusID = &id
	}
	p.Tiket, p.Rental, p.Status = []model.Tiket{}, []model.Rental{}, []model.Status{}
	return &p, nil
}

// attachRelations loads children for all participants in one query per table.
func (r *Repository) attachRelations(ctx context.Context, list []model.Peserta) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	busIDs := map[string]struct{}{}
	for i, p := range list {
		ids[i] = p.ID
		if p.BusID != nil {
			busIDs[*p.BusID] = struct{}{}
		}
	}

	statuses, err := r.loadStatus(ctx, ids)
	if err != nil {
		return err
	}

	tikets := map[string][]model.Tiket{}
	rows, err := r.db.QueryContext(ctx, `SELECT id, peserta_id, jenis, harga FROM tiket WHERE peserta_id = ANY($1) ORDER BY jenis, id`, ids)
	if err != nil {
		return fmt.Errorf("load tiket: %w", err)
	}
	for rows.Next() {
		var t model.Tiket
		if err := rows.Scan(&t.ID, &t.PesertaID, &t.Jenis, &t.Harga); err != nil {
			rows.Close()
			return fmt.Errorf("scan tiket: %w", err)
		}
		tikets[t.PesertaID] = append(tikets[t.PesertaID], t)
	}
	rows.Close()

	rentals := map[string][]model.Rental{}
	rows, err = r.db.QueryContext(ctx, `SELECT id, peserta_id, item, ukuran, jumlah FROM rental WHERE peserta_id = ANY($1) ORDER BY item, id`, ids)
	if err != nil {
		return fmt.Errorf("load rental: %w", err)
	}
	for rows.Next() {
		var rl model.Rental
		if err := rows.Scan(&rl.ID, &rl.PesertaID, &rl.Item, &rl.Ukuran, &rl.Jumlah); err != nil {
			rows.Close()
			return fmt.Errorf("scan rental: %w", err)
		}
		rentals[rl.PesertaID] = append(rentals[rl.PesertaID], rl)
	}
	rows.Close()

	buses := map[string]model.Bus{}
	for id := range busIDs {
		b, err := r.GetBus(ctx, id)
		if err != nil {
			return err
		}
		buses[id] = *b
	}

	for i := range list {
		p := &list[i]
		if s, ok := statuses[p.ID]; ok {
			p.Status = s
		}
		if t, ok := tikets[p.ID]; ok {
			p.Tiket = t
		}
		if rl, ok := rentals[p.ID]; ok {
			p.Rental = rl
		}
		if p.BusID != nil {
			b := buses[*p.BusID]
			p.Bus = &b
		}
	}
	return nil
}

func (r *Repository) loadStatus(ctx context.Context, pesertaIDs []string) (map[string][]model.Status, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, peserta_id, nama, nilai, keterangan, updated_at
		FROM status WHERE peserta_id = ANY($1)
		ORDER BY nama COLLATE "C"
	`, pesertaIDs)
	if err != nil {
		return nil, fmt.Errorf("load status: %w", err)
	}
	defer rows.Close()
	out := map[string][]model.Status{}
	for rows.Next() {
		var s model.Status
		if err := rows.Scan(&s.ID, &s.PesertaID, &s.Nama, &s.Nilai, &s.Keterangan, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		out[s.PesertaID] = append(out[s.PesertaID], s)
	}
	return out, rows.Err()
}

// -------- Bus --------

// CreateBus inserts a bus.
func (r *Repository) CreateBus(ctx context.Context, b *model.Bus) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bus (id, nama, kapasitas, created_at, updated_at) VALUES ($1,$2,$3,$4,$5)
	`, b.ID, b.Nama, b.Kapasitas, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: id %s sudah dipakai", model.ErrInvalidBus, b.ID)
		}
		return fmt.Errorf("insert bus: %w", err)
	}
	return nil
}

// GetBus returns a single bus by id.
func (r *Repository) GetBus(ctx context.Context, id string) (*model.Bus, error) {
	var b model.Bus
	err := r.db.QueryRowContext(ctx, `SELECT id, nama, kapasitas, created_at, updated_at FROM bus WHERE id = $1`, id).
		Scan(&b.ID, &b.Nama, &b.Kapasitas, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bus: %w", err)
	}
	return &b, nil
}

// UpdateBus changes name and capacity. Capacity may drop below occupancy.
func (r *Repository) UpdateBus(ctx context.Context, b *model.Bus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bus SET nama = $2, kapasitas = $3, updated_at = NOW() WHERE id = $1`,
		b.ID, b.Nama, b.Kapasitas)
	if err != nil {
		return fmt.Errorf("update bus: %w", err)
	}
	return expectRows(res, model.ErrBusNotFound)
}

// DeleteBus removes a bus; its participants become unassigned.
func (r *Repository) DeleteBus(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bus WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bus: %w", err)
	}
	return expectRows(res, model.ErrBusNotFound)
}

// BusLoad returns a bus together with the live count of assigned participants.
func (r *Repository) BusLoad(ctx context.Context, busID string) (*model.BusLoad, error) {
	var l model.BusLoad
	err := r.db.QueryRowContext(ctx, `
		SELECT b.id, b.nama, b.kapasitas, b.created_at, b.updated_at,
		       (SELECT COUNT(*) FROM peserta p WHERE p.bus_id = b.id)
		FROM bus b WHERE b.id = $1
	`, busID).Scan(&l.Bus.ID, &l.Bus.Nama, &l.Bus.Kapasitas, &l.Bus.CreatedAt, &l.Bus.UpdatedAt, &l.Terisi)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bus load: %w", err)
	}
	return &l, nil
}

// ListBusLoad returns every bus with its occupancy, ordered by name.
func (r *Repository) ListBusLoad(ctx context.Context) ([]model.BusLoad, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.nama, b.kapasitas, b.created_at, b.updated_at, COUNT(p.id)
		FROM bus b
		LEFT JOIN peserta p ON p.bus_id = b.id
		GROUP BY b.id
		ORDER BY b.nama, b.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list bus: %w", err)
	}
	defer rows.Close()
	var res []model.BusLoad
	for rows.Next() {
		var l model.BusLoad
		if err := rows.Scan(&l.Bus.ID, &l.Bus.Nama, &l.Bus.Kapasitas, &l.Bus.CreatedAt, &l.Bus.UpdatedAt, &l.Terisi); err != nil {
			return nil, fmt.Errorf("scan bus: %w", err)
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// -------- Status --------

// MarkStatus flips a status to true only if it is currently false. It reports
// whether this call changed the row; concurrent callers see exactly one true.
func (r *Repository) MarkStatus(ctx context.Context, pesertaID, nama, keterangan string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE status SET nilai = TRUE, keterangan = $3, updated_at = $4
		WHERE peserta_id = $1 AND nama = $2 AND nilai = FALSE
	`, pesertaID, nama, keterangan, at)
	if err != nil {
		return false, fmt.Errorf("mark status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM status WHERE peserta_id = $1 AND nama = $2)`,
		pesertaID, nama).Scan(&exists); err != nil {
		return false, fmt.Errorf("check status: %w", err)
	}
	if !exists {
		return false, model.ErrStatusNotFound
	}
	return false, nil
}

// SetStatus writes an explicit value, used for organizer corrections.
func (r *Repository) SetStatus(ctx context.Context, pesertaID, nama string, nilai bool, keterangan string, at time.Time) (*model.Status, error) {
	var s model.Status
	err := r.db.QueryRowContext(ctx, `
		UPDATE status SET nilai = $3, keterangan = $4, updated_at = $5
		WHERE peserta_id = $1 AND nama = $2
		RETURNING id, peserta_id, nama, nilai, keterangan, updated_at
	`, pesertaID, nama, nilai, keterangan, at).Scan(&s.ID, &s.PesertaID, &s.Nama, &s.Nilai, &s.Keterangan, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	return &s, nil
}

// CreateTemplate adds a status named nama (value false) to every participant in
// a single statement. It fails when the name already exists.
func (r *Repository) CreateTemplate(ctx context.Context, nama, keterangan string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM status WHERE nama = $1)`, nama).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check template: %w", err)
	}
	if exists {
		return 0, model.ErrTemplateExists
	}
	n, err := fanOut(ctx, tx, nama, keterangan)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// ReconcileTemplate seeds an existing template for participants that lack it.
func (r *Repository) ReconcileTemplate(ctx context.Context, nama, keterangan string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM status WHERE nama = $1)`, nama).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check template: %w", err)
	}
	if !exists {
		return 0, model.ErrTemplateNotFound
	}
	n, err := fanOut(ctx, tx, nama, keterangan)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func fanOut(ctx context.Context, tx *sql.Tx, nama, keterangan string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO status (id, peserta_id, nama, nilai, keterangan, updated_at)
		SELECT gen_random_uuid()::text, p.id, $1, FALSE, $2, NOW()
		FROM peserta p
		ON CONFLICT (peserta_id, nama) DO NOTHING
	`, nama, keterangan)
	if err != nil {
		return 0, fmt.Errorf("fan out status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// RenameTemplate rewrites the name (and optionally the note) of every status
// entry named oldName in one statement.
func (r *Repository) RenameTemplate(ctx context.Context, oldName, newName string, keterangan *string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE status SET nama = $2, keterangan = COALESCE($3, keterangan)
		WHERE nama = $1
	`, oldName, newName, keterangan)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, model.ErrTemplateExists
		}
		return 0, fmt.Errorf("rename template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return 0, model.ErrTemplateNotFound
	}
	return n, nil
}

// DeleteTemplate removes every status entry named nama.
func (r *Repository) DeleteTemplate(ctx context.Context, nama string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM status WHERE nama = $1`, nama)
	if err != nil {
		return 0, fmt.Errorf("delete template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return 0, model.ErrTemplateNotFound
	}
	return n, nil
}

// TemplateExists reports whether any participant carries a status named nama.
func (r *Repository) TemplateExists(ctx context.Context, nama string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM status WHERE nama = $1)`, nama).Scan(&exists); err != nil {
		return false, fmt.Errorf("check template: %w", err)
	}
	return exists, nil
}

// ListTemplates returns distinct status names with participant counts.
func (r *Repository) ListTemplates(ctx context.Context) ([]model.StatusTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT nama, COUNT(*) FROM status GROUP BY nama ORDER BY nama COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	res := []model.StatusTemplate{}
	for rows.Next() {
		var t model.StatusTemplate
		if err := rows.Scan(&t.Nama, &t.Jumlah); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func expectRows(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
