package domain

import "context"

// Repositories groups the repositories bound to one connection or transaction
type Repositories interface {
	Societies() SocietyRepository
	Flats() FlatRepository
	Residents() ResidentRepository
}

// Store is the transactional boundary for the core. Repositories passed to fn
// are bound to the transaction; returning an error rolls everything back.
type Store interface {
	Repositories
	RunInTx(ctx context.Context, fn func(tx Repositories) error) error
	Ping(ctx context.Context) error
}
