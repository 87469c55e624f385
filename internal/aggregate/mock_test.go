package aggregate

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/plantcare/internal/model"
)

type mockSignals struct {
	mock.Mock
}

func (m *mockSignals) ListSensorReadings(ctx context.Context, plantID string, since time.Time) ([]model.SensorReading, error) {
	args := m.Called(ctx, plantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SensorReading), args.Error(1)
}

func (m *mockSignals) ListHealthAssessments(ctx context.Context, plantID string, since time.Time) ([]model.HealthAssessment, error) {
	args := m.Called(ctx, plantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.HealthAssessment), args.Error(1)
}

func (m *mockSignals) ListGrowthPhotos(ctx context.Context, plantID string, since time.Time) ([]model.GrowthPhoto, error) {
	args := m.Called(ctx, plantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.GrowthPhoto), args.Error(1)
}

func (m *mockSignals) ListCareEvents(ctx context.Context, plantID string, since time.Time) ([]model.CareEvent, error) {
	args := m.Called(ctx, plantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CareEvent), args.Error(1)
}

func (m *mockSignals) ListPlanOutcomes(ctx context.Context, plantID string) ([]model.PlanOutcome, error) {
	args := m.Called(ctx, plantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PlanOutcome), args.Error(1)
}

type fakeEnv struct {
	data *model.EnvironmentalData
	err  error
}

func (f *fakeEnv) Conditions(_ context.Context, _ *model.Plant, _ int) (*model.EnvironmentalData, error) {
	return f.data, f.err
}
