package queries

import (
	"context"
	"testing"

	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type storeMock struct {
	mock.Mock
}

func (m *storeMock) List(ctx context.Context, f models.OrderFilter) ([]*models.Order, error) {
	args := m.Called(ctx, f)
	out, _ := args.Get(0).([]*models.Order)
	return out, args.Error(1)
}

func (m *storeMock) AggregateCounts(ctx context.Context) (models.OrderStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.OrderStats), args.Error(1)
}

func TestList(t *testing.T) {
	sm := &storeMock{}
	svc := New(sm)

	st := models.StatusInTransit
	f := models.OrderFilter{Status: &st}
	sm.On("List", mock.Anything, f).Return([]*models.Order{{ID: 2}, {ID: 1}}, nil).Once()

	out, err := svc.List(context.Background(), models.Actor{Privileged: true}, f)
	require.NoError(t, err)
	require.Len(t, out, 2)

	_, err = svc.List(context.Background(), models.Actor{}, f)
	require.ErrorIs(t, err, models.ErrForbidden)
	sm.AssertExpectations(t)
}

func TestStatistics(t *testing.T) {
	sm := &storeMock{}
	svc := New(sm)

	want := models.OrderStats{Total: 4, InTransit: 2, Cancelled: 2}
	sm.On("AggregateCounts", mock.Anything).Return(want, nil).Once()

	got, err := svc.Statistics(context.Background(), models.Actor{Privileged: true})
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = svc.Statistics(context.Background(), models.Actor{})
	require.ErrorIs(t, err, models.ErrForbidden)
	sm.AssertNumberOfCalls(t, "AggregateCounts", 1)
}
