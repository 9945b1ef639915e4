package service

import (
	"context"
	"encoding/json"
	"errors"
	"recurring-card/config"
	"recurring-card/internal/dto"
	"recurring-card/internal/model"
	"recurring-card/internal/repository"
	"recurring-card/pkg/logger"
	"recurring-card/pkg/utils"
	"testing"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSystemParamRepo struct {
	mock.Mock
}

func (m *mockSystemParamRepo) Get(ctx context.Context, name string, destValue interface{}) error {
	args := m.Called(ctx, name, destValue)
	if raw, ok := args.Get(0).([]byte); ok {
		if err := json.Unmarshal(raw, destValue); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *mockSystemParamRepo) Set(ctx context.Context, name string, value interface{}, description string, opts ...utils.DBOption) error {
	args := m.Called(ctx, name, value, description)
	return args.Error(0)
}

func settingsConfig() *config.Config {
	return &config.Config{
		Board: config.Board{BoardID: "cfg-board", ListID: "cfg-list", DoneListIDs: []string{"cfg-done"}},
	}
}

func TestSettingsService_DefaultsToConfig(t *testing.T) {
	s := NewSettingsService(settingsConfig(), logger.NewNop(), goValidator.New(), &mockSystemParamRepo{}, &memoryAudit{})

	current := s.Current()
	assert.Equal(t, "cfg-board", current.BoardID)
	assert.Equal(t, "cfg-list", current.ListID)
	assert.Equal(t, []string{"cfg-done"}, current.DoneListIDs)

	current.DoneListIDs[0] = "mutated"
	assert.Equal(t, []string{"cfg-done"}, s.Current().DoneListIDs)
}

func TestSettingsService_ReloadMergesStoredParameter(t *testing.T) {
	repo := &mockSystemParamRepo{}
	repo.On("Get", mock.Anything, model.SysParamBoardSettings, mock.Anything).
		Return([]byte(`{"list_id":"stored-list","done_list_ids":["a","b"]}`), nil)

	s := NewSettingsService(settingsConfig(), logger.NewNop(), goValidator.New(), repo, &memoryAudit{})
	require.NoError(t, s.Reload(context.Background()))

	current := s.Current()
	assert.Equal(t, "cfg-board", current.BoardID)
	assert.Equal(t, "stored-list", current.ListID)
	assert.Equal(t, []string{"a", "b"}, current.DoneListIDs)
}

func TestSettingsService_ReloadWithoutParameter(t *testing.T) {
	repo := &mockSystemParamRepo{}
	repo.On("Get", mock.Anything, model.SysParamBoardSettings, mock.Anything).Return(nil, repository.ErrParamNotFound)

	s := NewSettingsService(settingsConfig(), logger.NewNop(), goValidator.New(), repo, &memoryAudit{})
	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, "cfg-list", s.Current().ListID)
}

func TestSettingsService_ReloadError(t *testing.T) {
	repo := &mockSystemParamRepo{}
	repo.On("Get", mock.Anything, model.SysParamBoardSettings, mock.Anything).Return(nil, errors.New("connection refused"))

	s := NewSettingsService(settingsConfig(), logger.NewNop(), goValidator.New(), repo, &memoryAudit{})
	assert.Error(t, s.Reload(context.Background()))
	assert.Equal(t, "cfg-list", s.Current().ListID)
}

func TestSettingsService_Update(t *testing.T) {
	repo := &mockSystemParamRepo{}
	audit := &memoryAudit{}
	s := NewSettingsService(settingsConfig(), logger.NewNop(), goValidator.New(), repo, audit)

	_, err := s.Update(context.Background(), dto.BoardSettings{BoardID: "b"}, "api")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	repo.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	next := dto.BoardSettings{BoardID: "b", ListID: "l", DoneListIDs: []string{"d"}}
	repo.On("Set", mock.Anything, model.SysParamBoardSettings, next, mock.Anything).Return(nil).Once()

	got, err := s.Update(context.Background(), next, "api")
	require.NoError(t, err)
	assert.Equal(t, next, got)
	assert.Equal(t, next, s.Current())
	require.Len(t, audit.all(), 1)
	assert.Equal(t, "api", audit.all()[0].actor)
	repo.AssertExpectations(t)
}
