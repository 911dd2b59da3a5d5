//go:build integration

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/repository"
	"github.com/aryan0dhankhar/societyhub/internal/testutil/containers"
)

// PostgresScenarioSuite replays the occupancy scenarios against a real
// database, where the unique email index settles races
type PostgresScenarioSuite struct {
	suite.Suite
	pg  *containers.PostgresContainer
	env *testEnv
}

func TestPostgresScenarioSuite(t *testing.T) {
	suite.Run(t, new(PostgresScenarioSuite))
}

func (s *PostgresScenarioSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
}

func (s *PostgresScenarioSuite) SetupTest() {
	s.pg.Truncate(s.T())
	s.env = newTestEnvWithStore(s.T(), repository.NewPostgresStore(s.pg.DB, nil))
	s.env.register(s.T(), "SOC1", 1, 1, 2)
}

func (s *PostgresScenarioSuite) TearDownTest() {
	assertInvariants(s.T(), s.env.store, "SOC1")
}

func (s *PostgresScenarioSuite) TestDuplicateOwnerEmailRollsBack() {
	ctx := context.Background()
	_, err := s.env.occupancy.UpsertOccupancy(ctx, UpsertOccupancyRequest{
		SocietyCode: "SOC1",
		FlatRowID:   s.env.flatByCode(s.T(), "SOC1", "A0101").ID,
		Occupancy:   domain.OccupancyOwnerOccupied,
		Owner:       ownerInput("taken@example.com"),
	})
	s.Require().NoError(err)

	_, err = s.env.occupancy.CreateFlat(ctx, CreateFlatRequest{
		SocietyCode: "SOC1",
		FlatID:      "Z0101",
		Occupancy:   domain.OccupancyRented,
		Owner:       ownerInput("Taken@Example.com"),
		Resident:    &PersonInput{Name: "Tenant", Email: "tenant@example.com"},
	})
	s.Require().ErrorIs(err, domain.ErrDuplicateEmail)

	flats, err := s.env.store.Flats().ListWithOccupants(ctx, "SOC1")
	s.Require().NoError(err)
	s.Len(flats, 2)
	_, err = s.env.store.Residents().GetByEmail(ctx, "tenant@example.com")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresScenarioSuite) TestConcurrentCreateFlatSameEmail() {
	ctx := context.Background()
	flatIDs := []string{"B0101", "C0101", "D0101", "E0101"}
	errs := make([]error, len(flatIDs))

	var g errgroup.Group
	for i, flatID := range flatIDs {
		g.Go(func() error {
			_, errs[i] = s.env.occupancy.CreateFlat(ctx, CreateFlatRequest{
				SocietyCode: "SOC1",
				FlatID:      flatID,
				Occupancy:   domain.OccupancyOwnerOccupied,
				Owner:       ownerInput("race@example.com"),
			})
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		s.ErrorIs(err, domain.ErrDuplicateEmail)
	}
	s.Equal(1, successes)
	s.Equal(1, s.env.residentCount(s.T(), "SOC1"))
}

func (s *PostgresScenarioSuite) TestBootstrapTransition() {
	ctx := context.Background()
	res, err := s.env.occupancy.UpsertOccupancy(ctx, UpsertOccupancyRequest{
		SocietyCode: "SOC1",
		FlatRowID:   s.env.flatByCode(s.T(), "SOC1", "A0102").ID,
		Occupancy:   domain.OccupancyOwnerOccupied,
		Owner:       ownerInput("owner@example.com"),
	})
	s.Require().NoError(err)
	p := res.Provisioned[0]

	s.Require().NoError(s.env.auth.ChangePassword(ctx, "resident", p.ResidentID, p.InitialPassword, "P@ssw0rd!"))

	_, err = s.env.auth.Login(ctx, "resident", "owner@example.com", p.InitialPassword)
	s.ErrorIs(err, domain.ErrInvalidCredentials)
	login, err := s.env.auth.Login(ctx, "resident", "owner@example.com", "P@ssw0rd!")
	s.Require().NoError(err)
	s.False(login.MustChangePassword)
}
