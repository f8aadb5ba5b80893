package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pixeldraw/pixeldraw/models"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, token string) (models.User, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(models.User), args.Error(1)
}
