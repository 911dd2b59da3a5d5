package domain

import (
	"context"
	"time"
)

// Society is the tenant organization that owns a grid of flats
type Society struct {
	ID            int64
	Code          string // unique society code, e.g. SOC1a2b3c4d
	Name          string
	Email         string // admin login email, unique case-insensitively
	PasswordHash  string // bcrypt
	Wings         int
	FloorsPerWing int
	RoomsPerFloor int
	CreatedAt     time.Time
}

// TotalFlats is the size of the grid generated at registration.
func (s *Society) TotalFlats() int {
	return s.Wings * s.FloorsPerWing * s.RoomsPerFloor
}

// Credential returns the society admin's credential. Societies never carry a
// bootstrap secret.
func (s *Society) Credential() Credential {
	return Credential{PasswordHash: s.PasswordHash}
}

// SocietyRepository defines data access for societies
type SocietyRepository interface {
	Create(ctx context.Context, society *Society) error
	GetByID(ctx context.Context, id int64) (*Society, error)
	GetByCode(ctx context.Context, code string) (*Society, error)
	GetByEmail(ctx context.Context, email string) (*Society, error)
	UpdatePassword(ctx context.Context, id int64, expected Credential, newHash string) error
}
