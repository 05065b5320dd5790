package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/vetsub/internal/clinic/domain"
	"github.com/smallbiznis/vetsub/internal/clinic/repository"
	"github.com/smallbiznis/vetsub/internal/clock"
	"github.com/smallbiznis/vetsub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	return New(Params{
		DB:    dbtest.Open(t),
		Log:   zap.NewNop(),
		GenID: dbtest.NewNode(t),
		Clock: clock.NewFakeClock(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestCreateStartsInactive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateClinicRequest{Name: "  Happy Paws  "})
	require.NoError(t, err)
	assert.Equal(t, "Happy Paws", created.Name)
	assert.Equal(t, domain.ClinicStatusInactive, created.Status)

	loaded, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, domain.ClinicStatusInactive, loaded.Status)
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateClinicRequest{Name: "   "})
	require.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestGetByIDErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetByID(ctx, "not-a-number")
	require.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.GetByID(ctx, "12345")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListFiltersByStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateClinicRequest{Name: "North"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateClinicRequest{Name: "South"})
	require.NoError(t, err)

	all, err := svc.List(ctx, domain.ListClinicRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.List(ctx, domain.ListClinicRequest{Status: "active"})
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = svc.List(ctx, domain.ListClinicRequest{Status: "paused"})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}
