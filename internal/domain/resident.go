package domain

import (
	"context"
	"time"
)

// CredentialState is the login state of an account
type CredentialState int

const (
	// StateBootstrap: only the plaintext initial password is set
	StateBootstrap CredentialState = iota
	// StateActive: only the bcrypt hash is set
	StateActive
)

func (s CredentialState) String() string {
	if s == StateBootstrap {
		return "bootstrap"
	}
	return "active"
}

// Credential is the (password, initial_password) pair. Exactly one is non-empty
// for a provisioned account.
type Credential struct {
	PasswordHash    string
	InitialPassword string
}

// State derives the credential state. A hash always wins so a half-written row
// can never be treated as bootstrap.
func (c Credential) State() CredentialState {
	if c.PasswordHash != "" {
		return StateActive
	}
	return StateBootstrap
}

// Contact holds the editable person fields of a resident
type Contact struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// Empty reports whether no field was supplied.
func (c *Contact) Empty() bool {
	return c == nil || (c.Name == "" && c.Email == "" && c.Phone == "" && c.Address == "")
}

// Resident is an owner or tenant with their own login
type Resident struct {
	ID          int64     `json:"id"`
	SocietyCode string    `json:"society_code"`
	FlatID      string    `json:"flat_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	IsOwner     bool      `json:"is_owner"`
	CreatedAt   time.Time `json:"created_at"`

	Credential Credential `json:"-"`
}

// Contact returns the resident's editable fields.
func (r *Resident) Contact() Contact {
	return Contact{Name: r.Name, Email: r.Email, Phone: r.Phone, Address: r.Address}
}

// ResidentRepository defines data access for residents
type ResidentRepository interface {
	Create(ctx context.Context, resident *Resident) error
	GetByID(ctx context.Context, id int64) (*Resident, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*Resident, error)
	// UpdateContact writes name, email, phone and address only.
	UpdateContact(ctx context.Context, id int64, contact Contact) error
	// UpdatePassword sets the hash and clears the initial password, provided the
	// stored credential still equals expected.
	UpdatePassword(ctx context.Context, id int64, expected Credential, newHash string) error
	CountBootstrap(ctx context.Context) (int, error)
}
