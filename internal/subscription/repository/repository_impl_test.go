package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vetsub/internal/clock"
	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
	"github.com/smallbiznis/vetsub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type seed struct {
	db     *gorm.DB
	node   *snowflake.Node
	planID snowflake.ID
	pmID   snowflake.ID
}

func newSeed(t *testing.T) *seed {
	t.Helper()
	conn := dbtest.Open(t)
	node := dbtest.NewNode(t)
	s := &seed{db: conn, node: node, planID: node.Generate(), pmID: node.Generate()}
	dbtest.InsertPlan(t, conn, dbtest.Plan{ID: s.planID, DurationDays: 30, AllowedAccounts: 5})
	dbtest.InsertPaymentMethod(t, conn, s.pmID, "Cash", true)
	return s
}

func (s *seed) clinic(t *testing.T) snowflake.ID {
	t.Helper()
	id := s.node.Generate()
	dbtest.InsertClinic(t, s.db, id, "INACTIVE")
	return id
}

func (s *seed) record(t *testing.T, clinicID snowflake.ID, status subscriptiondomain.SubscriptionStatus, start time.Time, end *time.Time) snowflake.ID {
	t.Helper()
	id := s.node.Generate()
	dbtest.InsertRecord(t, s.db, dbtest.Record{
		ID:              id,
		ClinicID:        clinicID,
		PlanID:          s.planID,
		PaymentMethodID: s.pmID,
		StartDate:       start,
		EndDate:         end,
		Status:          string(status),
	})
	return id
}

func TestListSweepCandidateClinics(t *testing.T) {
	s := newSeed(t)
	repo := Provide()
	today := clock.Date(2024, time.February, 15)

	lapsed := s.clinic(t)
	s.record(t, lapsed, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, time.January, 15), dbtest.DatePtr(clock.Date(2024, time.February, 14)))

	starting := s.clinic(t)
	s.record(t, starting, subscriptiondomain.SubscriptionStatusUpcoming, today, dbtest.DatePtr(clock.Date(2024, time.March, 15)))

	running := s.clinic(t)
	s.record(t, running, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, time.February, 1), dbtest.DatePtr(today))

	future := s.clinic(t)
	s.record(t, future, subscriptiondomain.SubscriptionStatusUpcoming, clock.Date(2024, time.February, 16), dbtest.DatePtr(clock.Date(2024, time.March, 16)))

	ended := s.clinic(t)
	s.record(t, ended, subscriptiondomain.SubscriptionStatusEnded, clock.Date(2023, time.December, 1), dbtest.DatePtr(clock.Date(2023, time.December, 30)))

	ids, err := repo.ListSweepCandidateClinics(context.Background(), s.db, today)
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{lapsed, starting}, ids)
}

func TestCloseIsGuardedByStatus(t *testing.T) {
	s := newSeed(t)
	repo := Provide()
	ctx := context.Background()
	clinicID := s.clinic(t)
	id := s.record(t, clinicID, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, time.January, 1), dbtest.DatePtr(clock.Date(2024, time.January, 30)))

	end := clock.Date(2024, time.January, 10)
	affected, err := repo.Close(ctx, s.db, id, subscriptiondomain.SubscriptionStatusActive, subscriptiondomain.SubscriptionStatusEnded, &end, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	affected, err = repo.Close(ctx, s.db, id, subscriptiondomain.SubscriptionStatusActive, subscriptiondomain.SubscriptionStatusEnded, &end, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	record, err := repo.FindByID(ctx, s.db, id)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusEnded, record.Status)
	require.NotNil(t, record.EndDate)
	assert.True(t, record.EndDate.Equal(end))
}

func TestListNonTerminalAndStatuses(t *testing.T) {
	s := newSeed(t)
	repo := Provide()
	ctx := context.Background()
	clinicID := s.clinic(t)

	s.record(t, clinicID, subscriptiondomain.SubscriptionStatusEnded, clock.Date(2023, time.December, 1), dbtest.DatePtr(clock.Date(2023, time.December, 30)))
	s.record(t, clinicID, subscriptiondomain.SubscriptionStatusRefunded, clock.Date(2024, time.January, 1), dbtest.DatePtr(clock.Date(2024, time.January, 30)))
	suspended := s.record(t, clinicID, subscriptiondomain.SubscriptionStatusSuspended, clock.Date(2024, time.February, 1), nil)

	open, err := repo.ListNonTerminalByClinic(ctx, s.db, clinicID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, suspended, open[0].ID)
	assert.Nil(t, open[0].EndDate)

	statuses, err := repo.ListStatusesByClinic(ctx, s.db, clinicID)
	require.NoError(t, err)
	assert.Len(t, statuses, 3)
	assert.Equal(t, "SUSPENDED", string(subscriptiondomain.ResolveClinicStatus(statuses...)))

	missing, err := repo.FindByID(ctx, s.db, s.node.Generate())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
