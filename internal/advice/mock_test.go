package advice

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetPlant(ctx context.Context, plantID string) (*model.Plant, error) {
	args := m.Called(ctx, plantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Plant), args.Error(1)
}

func (m *mockStore) LatestPlan(ctx context.Context, plantID string) (*model.CarePlan, error) {
	args := m.Called(ctx, plantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CarePlan), args.Error(1)
}
