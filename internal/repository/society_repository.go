package repository

import (
	"context"
	"log/slog"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
)

// PostgresSocietyRepository implements domain.SocietyRepository using PostgreSQL
type PostgresSocietyRepository struct {
	q      querier
	logger *slog.Logger
}

const societyColumns = `id, society_code, society_name, email, password, no_of_wings, floor_per_wing, rooms_per_floor, created_at`

// Create inserts a new society
func (r *PostgresSocietyRepository) Create(ctx context.Context, society *domain.Society) error {
	query := `
		INSERT INTO society (society_code, society_name, email, password, no_of_wings, floor_per_wing, rooms_per_floor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRowContext(ctx, query,
		society.Code,
		society.Name,
		society.Email,
		society.PasswordHash,
		society.Wings,
		society.FloorsPerWing,
		society.RoomsPerFloor,
	).Scan(&society.ID, &society.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create society",
			slog.String("society_code", society.Code),
			slog.String("error", err.Error()),
		)
		return translate("create society", err)
	}

	return nil
}

// GetByID retrieves a society by ID
func (r *PostgresSocietyRepository) GetByID(ctx context.Context, id int64) (*domain.Society, error) {
	return r.get(ctx, `SELECT `+societyColumns+` FROM society WHERE id = $1`, id)
}

// GetByCode retrieves a society by its code
func (r *PostgresSocietyRepository) GetByCode(ctx context.Context, code string) (*domain.Society, error) {
	return r.get(ctx, `SELECT `+societyColumns+` FROM society WHERE society_code = $1`, code)
}

// GetByEmail retrieves a society by admin email, case-insensitively
func (r *PostgresSocietyRepository) GetByEmail(ctx context.Context, email string) (*domain.Society, error) {
	return r.get(ctx, `SELECT `+societyColumns+` FROM society WHERE LOWER(email) = LOWER($1)`, email)
}

// UpdatePassword replaces the admin hash if it has not changed since expected
// was read
func (r *PostgresSocietyRepository) UpdatePassword(ctx context.Context, id int64, expected domain.Credential, newHash string) error {
	query := `
		UPDATE society
		SET password = $1
		WHERE id = $2 AND password = $3
	`

	result, err := r.q.ExecContext(ctx, query, newHash, id, expected.PasswordHash)
	if err != nil {
		return translate("update society password", err)
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

func (r *PostgresSocietyRepository) get(ctx context.Context, query string, arg any) (*domain.Society, error) {
	s := &domain.Society{}
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&s.ID,
		&s.Code,
		&s.Name,
		&s.Email,
		&s.PasswordHash,
		&s.Wings,
		&s.FloorsPerWing,
		&s.RoomsPerFloor,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, notFound("society", err)
	}
	return s, nil
}
