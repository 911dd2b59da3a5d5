package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
)

// PostgresFlatRepository implements domain.FlatRepository using PostgreSQL
type PostgresFlatRepository struct {
	q      querier
	inTx   bool
	logger *slog.Logger
}

// Create inserts a single flat
func (r *PostgresFlatRepository) Create(ctx context.Context, flat *domain.Flat) error {
	query := `
		INSERT INTO flat (society_code, flat_id, occupancy, owner_id, resident_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRowContext(ctx, query,
		flat.SocietyCode,
		flat.FlatID,
		string(flat.Occupancy),
		nullableID(flat.OwnerID),
		nullableID(flat.ResidentID),
	).Scan(&flat.ID, &flat.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create flat",
			slog.String("society_code", flat.SocietyCode),
			slog.String("flat_id", flat.FlatID),
			slog.String("error", err.Error()),
		)
		return translate("create flat", err)
	}
	return nil
}

// CreateGrid inserts all flat codes in one round trip using unnest
func (r *PostgresFlatRepository) CreateGrid(ctx context.Context, societyCode string, flatIDs []string) (int, error) {
	if len(flatIDs) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO flat (society_code, flat_id)
		SELECT $1, unnest($2::text[])
	`

	result, err := r.q.ExecContext(ctx, query, societyCode, pq.Array(flatIDs))
	if err != nil {
		r.logger.Error("failed to insert flat grid",
			slog.String("society_code", societyCode),
			slog.Int("flats", len(flatIDs)),
			slog.String("error", err.Error()),
		)
		return 0, translate("create flat grid", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, translate("check rows affected", err)
	}
	return int(rows), nil
}

// GetByID retrieves a flat by ID. Inside a transaction the row is locked so
// concurrent edits of the same flat serialize.
func (r *PostgresFlatRepository) GetByID(ctx context.Context, id int64) (*domain.Flat, error) {
	query := `
		SELECT id, society_code, flat_id, occupancy, owner_id, resident_id, created_at
		FROM flat
		WHERE id = $1
	`
	if r.inTx {
		query += ` FOR UPDATE`
	}

	f := &domain.Flat{}
	var occupancy string
	var ownerID, residentID sql.NullInt64
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&f.ID,
		&f.SocietyCode,
		&f.FlatID,
		&occupancy,
		&ownerID,
		&residentID,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, notFound("flat", err)
	}

	f.Occupancy = domain.Occupancy(occupancy)
	f.OwnerID = idPtr(ownerID)
	f.ResidentID = idPtr(residentID)
	return f, nil
}

// Update writes occupancy and the owner/resident links
func (r *PostgresFlatRepository) Update(ctx context.Context, flat *domain.Flat) error {
	query := `
		UPDATE flat
		SET occupancy = $1, owner_id = $2, resident_id = $3
		WHERE id = $4
	`

	result, err := r.q.ExecContext(ctx, query,
		string(flat.Occupancy),
		nullableID(flat.OwnerID),
		nullableID(flat.ResidentID),
		flat.ID,
	)
	if err != nil {
		return translate("update flat", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return translate("check rows affected", err)
	}
	if rows == 0 {
		return domain.NotFound("flat")
	}
	return nil
}

// ListWithOccupants returns every flat of a society joined with its owner and
// tenant in a single query
func (r *PostgresFlatRepository) ListWithOccupants(ctx context.Context, societyCode string) ([]*domain.FlatDetails, error) {
	query := `
		SELECT f.id, f.society_code, f.flat_id, f.occupancy, f.owner_id, f.resident_id, f.created_at,
		       o.id, o.society_code, o.flat_id, o.name, o.email, o.phone, o.address, o.is_owner, o.created_at,
		       t.id, t.society_code, t.flat_id, t.name, t.email, t.phone, t.address, t.is_owner, t.created_at
		FROM flat f
		LEFT JOIN resident o ON o.id = f.owner_id
		LEFT JOIN resident t ON t.id = f.resident_id
		WHERE f.society_code = $1
		ORDER BY f.flat_id
	`

	rows, err := r.q.QueryContext(ctx, query, societyCode)
	if err != nil {
		r.logger.Error("failed to list flats",
			slog.String("society_code", societyCode),
			slog.String("error", err.Error()),
		)
		return nil, translate("list flats", err)
	}
	defer rows.Close()

	flats := []*domain.FlatDetails{}
	for rows.Next() {
		d := &domain.FlatDetails{}
		var occupancy string
		var ownerID, residentID sql.NullInt64
		var owner, tenant nullableResident

		err := rows.Scan(
			&d.ID, &d.SocietyCode, &d.FlatID, &occupancy, &ownerID, &residentID, &d.CreatedAt,
			&owner.id, &owner.societyCode, &owner.flatID, &owner.name, &owner.email, &owner.phone, &owner.address, &owner.isOwner, &owner.createdAt,
			&tenant.id, &tenant.societyCode, &tenant.flatID, &tenant.name, &tenant.email, &tenant.phone, &tenant.address, &tenant.isOwner, &tenant.createdAt,
		)
		if err != nil {
			return nil, translate("scan flat", err)
		}

		d.Occupancy = domain.Occupancy(occupancy)
		d.OwnerID = idPtr(ownerID)
		d.ResidentID = idPtr(residentID)
		d.Owner = owner.resident()
		d.Resident = tenant.resident()
		flats = append(flats, d)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate flats", err)
	}

	return flats, nil
}

// nullableResident scans the outer-joined side of a flat listing
type nullableResident struct {
	id          sql.NullInt64
	societyCode sql.NullString
	flatID      sql.NullString
	name        sql.NullString
	email       sql.NullString
	phone       sql.NullString
	address     sql.NullString
	isOwner     sql.NullBool
	createdAt   sql.NullTime
}

func (n nullableResident) resident() *domain.Resident {
	if !n.id.Valid {
		return nil
	}
	return &domain.Resident{
		ID:          n.id.Int64,
		SocietyCode: n.societyCode.String,
		FlatID:      n.flatID.String,
		Name:        n.name.String,
		Email:       n.email.String,
		Phone:       n.phone.String,
		Address:     n.address.String,
		IsOwner:     n.isOwner.Bool,
		CreatedAt:   n.createdAt.Time,
	}
}
