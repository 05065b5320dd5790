package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/vetsub/internal/clock"
	"github.com/smallbiznis/vetsub/internal/config"
	referencedomain "github.com/smallbiznis/vetsub/internal/reference/domain"
	"github.com/smallbiznis/vetsub/internal/reference/repository"
	"github.com/smallbiznis/vetsub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	conn := dbtest.Open(t)
	svc := NewService(ServiceParam{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: dbtest.NewNode(t),
		Clock: clock.NewFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	}).(*Service)
	return svc
}

func TestSeedIsIdempotentBySlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ref := config.DefaultReferenceConfig()
	first, err := svc.Seed(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, len(ref.Plans), first.Plans)

	ref.Plans[0].Price = 30000
	_, err = svc.Seed(ctx, ref)
	require.NoError(t, err)

	plans, err := svc.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, len(ref.Plans))
	assert.Equal(t, "basic-monthly", plans[0].Code)
	assert.Equal(t, int64(30000), plans[0].Price)

	methods, err := svc.ListPaymentMethods(ctx)
	require.NoError(t, err)
	assert.Len(t, methods, len(ref.PaymentMethods))
}

func TestSeedRejectsInvalidPlan(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Seed(context.Background(), config.ReferenceConfig{
		Plans: []config.PlanSeed{{Name: "Broken", DurationDays: 0, AllowedAccounts: 1}},
	})
	require.ErrorIs(t, err, referencedomain.ErrInvalidSeed)
}

func TestListPlansSkipsInactive(t *testing.T) {
	conn := dbtest.Open(t)
	node := dbtest.NewNode(t)
	dbtest.InsertPlan(t, conn, dbtest.Plan{ID: node.Generate(), Code: "monthly", DurationDays: 30, AllowedAccounts: 5})
	dbtest.InsertPlan(t, conn, dbtest.Plan{ID: node.Generate(), Code: "legacy", DurationDays: 90, AllowedAccounts: 3, Inactive: true})

	svc := NewService(ServiceParam{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.New(),
		Repo:  repository.Provide(),
	})

	plans, err := svc.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "monthly", plans[0].Code)
}
