package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements domain.Store on a shared *sql.DB pool
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
	pgRepos
}

// pgRepos binds the three repositories to one querier
type pgRepos struct {
	societies *PostgresSocietyRepository
	flats     *PostgresFlatRepository
	residents *PostgresResidentRepository
}

func newPGRepos(q querier, inTx bool, logger *slog.Logger) pgRepos {
	return pgRepos{
		societies: &PostgresSocietyRepository{q: q, logger: logger},
		flats:     &PostgresFlatRepository{q: q, inTx: inTx, logger: logger},
		residents: &PostgresResidentRepository{q: q, logger: logger},
	}
}

func (r pgRepos) Societies() domain.SocietyRepository  { return r.societies }
func (r pgRepos) Flats() domain.FlatRepository         { return r.flats }
func (r pgRepos) Residents() domain.ResidentRepository { return r.residents }

// NewPostgresStore creates a store over an open pool
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStore{
		db:      db,
		logger:  logger,
		pgRepos: newPGRepos(db, false, logger),
	}
}

// RunInTx runs fn in a single transaction. The transaction is rolled back on
// any error, panic or context cancellation and committed otherwise.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx domain.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Infra("begin transaction", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("failed to roll back transaction",
				slog.String("error", rbErr.Error()),
			)
		}
	}()

	if err := fn(newPGRepos(tx, true, s.logger)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return translate("commit transaction", err)
	}
	committed = true
	return nil
}

// Ping checks the pool
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// translate maps driver errors onto domain errors. Unique violations are keyed
// by constraint or index name so the concurrent-insert race surfaces as the
// same conflict the pre-checks produce.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			switch pqErr.Constraint {
			case "resident_email_lower_key":
				return domain.ErrDuplicateEmail
			case "flat_society_flat_key":
				return domain.ErrDuplicateFlat
			case "society_code_key", "society_email_lower_key":
				return domain.ErrDuplicateSociety
			}
		case "foreign_key_violation":
			return domain.NotFound("referenced record")
		case "check_violation":
			return domain.Validation("record violates constraint %s", pqErr.Constraint)
		}
	}

	return domain.Infra(op, err)
}

// nullableID converts an optional id for a query argument
func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// idPtr converts a scanned nullable id back into an optional id
func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	id := n.Int64
	return &id
}

func notFound(entity string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(entity)
	}
	return translate(fmt.Sprintf("get %s", entity), err)
}
