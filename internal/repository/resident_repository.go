package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
)

// PostgresResidentRepository implements domain.ResidentRepository using PostgreSQL
type PostgresResidentRepository struct {
	q      querier
	logger *slog.Logger
}

const residentColumns = `id, society_code, flat_id, name, email, phone, address, is_owner, password, initial_password, created_at`

// Create inserts a resident together with its bootstrap credential
func (r *PostgresResidentRepository) Create(ctx context.Context, resident *domain.Resident) error {
	query := `
		INSERT INTO resident (society_code, flat_id, name, email, phone, address, is_owner, password, initial_password)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.q.QueryRowContext(ctx, query,
		resident.SocietyCode,
		resident.FlatID,
		resident.Name,
		resident.Email,
		resident.Phone,
		resident.Address,
		resident.IsOwner,
		nullString(resident.Credential.PasswordHash),
		nullString(resident.Credential.InitialPassword),
	).Scan(&resident.ID, &resident.CreatedAt)

	if err != nil {
		err = translate("create resident", err)
		if domain.KindOf(err) == domain.KindInfra {
			r.logger.Error("failed to create resident",
				slog.String("society_code", resident.SocietyCode),
				slog.String("error", err.Error()),
			)
		}
		return err
	}
	return nil
}

// GetByID retrieves a resident by ID
func (r *PostgresResidentRepository) GetByID(ctx context.Context, id int64) (*domain.Resident, error) {
	return r.get(ctx, `SELECT `+residentColumns+` FROM resident WHERE id = $1`, id)
}

// GetByEmail retrieves a resident by email, case-insensitively
func (r *PostgresResidentRepository) GetByEmail(ctx context.Context, email string) (*domain.Resident, error) {
	return r.get(ctx, `SELECT `+residentColumns+` FROM resident WHERE LOWER(email) = LOWER($1)`, email)
}

// UpdateContact updates contact fields only; credentials are never touched here
func (r *PostgresResidentRepository) UpdateContact(ctx context.Context, id int64, contact domain.Contact) error {
	query := `
		UPDATE resident
		SET name = $1, email = $2, phone = $3, address = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query, contact.Name, contact.Email, contact.Phone, contact.Address, id)
	if err != nil {
		return translate("update resident", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return translate("check rows affected", err)
	}
	if rows == 0 {
		return domain.NotFound("resident")
	}
	return nil
}

// UpdatePassword performs the one-way bootstrap to hashed transition (or a
// hashed to hashed rotation). The WHERE clause re-checks the credential the
// caller verified, so a concurrent change makes this a no-op.
func (r *PostgresResidentRepository) UpdatePassword(ctx context.Context, id int64, expected domain.Credential, newHash string) error {
	query := `
		UPDATE resident
		SET password = $1, initial_password = NULL
		WHERE id = $2
		  AND password IS NOT DISTINCT FROM $3
		  AND initial_password IS NOT DISTINCT FROM $4
	`

	result, err := r.q.ExecContext(ctx, query,
		newHash,
		id,
		nullString(expected.PasswordHash),
		nullString(expected.InitialPassword),
	)
	if err != nil {
		return translate("update resident password", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return translate("check rows affected", err)
	}
	if rows == 0 {
		return domain.ErrIncorrectOldPassword
	}
	return nil
}

// CountBootstrap counts residents that have not yet replaced their initial password
func (r *PostgresResidentRepository) CountBootstrap(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM resident WHERE initial_password IS NOT NULL`).Scan(&n)
	if err != nil {
		return 0, translate("count bootstrap residents", err)
	}
	return n, nil
}

func (r *PostgresResidentRepository) get(ctx context.Context, query string, arg any) (*domain.Resident, error) {
	res := &domain.Resident{}
	var password, initial sql.NullString
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&res.ID,
		&res.SocietyCode,
		&res.FlatID,
		&res.Name,
		&res.Email,
		&res.Phone,
		&res.Address,
		&res.IsOwner,
		&password,
		&initial,
		&res.CreatedAt,
	)
	if err != nil {
		return nil, notFound("resident", err)
	}

	res.Credential = domain.Credential{
		PasswordHash:    password.String,
		InitialPassword: initial.String,
	}
	return res, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
