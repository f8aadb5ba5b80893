package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pixeldraw/pixeldraw/models"
	"github.com/pixeldraw/pixeldraw/store"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context) store.LoadResult {
	args := m.Called(ctx)
	return args.Get(0).(store.LoadResult)
}

func (m *MockStore) Save(ctx context.Context, state store.State) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockStore) SaveBackup(ctx context.Context, board models.BoardDocument) error {
	args := m.Called(ctx, board)
	return args.Error(0)
}

func (m *MockStore) RotateBackups() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockStore) LastSave() string {
	args := m.Called()
	return args.String(0)
}
