package profile

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetByID(ctx context.Context, userID string) (*types.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockRepository) GetByUsername(ctx context.Context, username string) (*types.Profile, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, p types.Profile) (*types.Profile, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, userID string, params types.UpdateProfileParams) (*types.Profile, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockRepository) GetRole(ctx context.Context, userID string) (types.Role, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(types.Role), args.Error(1)
}

func (m *MockRepository) ListAll(ctx context.Context) ([]*types.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Profile), args.Error(1)
}

func (m *MockRepository) UpdateRole(ctx context.Context, userID string, role types.Role) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockRepository) DeleteUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockRepository) CountProfiles(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestEnsureProfile_ReturnsExisting(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	existing := &types.Profile{ID: userID, Username: "alice", Role: types.RoleUser}

	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, userID.String()).Return(existing, nil)

	svc := NewService(repo, testLogger())

	got, err := svc.EnsureProfile(ctx, userID.String(), "alice@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, existing, got)

	// Calling again is a no-op read; no insert is ever attempted.
	got, err = svc.EnsureProfile(ctx, userID.String(), "alice@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, existing, got)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEnsureProfile_CreatesWhenMissing(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, userID.String()).Return(nil, api.ErrNotFound)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(p types.Profile) bool {
		return p.ID == userID && p.Username == "bob" && p.Role == types.RoleUser
	})).Return(&types.Profile{ID: userID, Username: "bob", Role: types.RoleUser}, nil)

	svc := NewService(repo, testLogger())

	got, err := svc.EnsureProfile(ctx, userID.String(), "bob@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
	repo.AssertExpectations(t)
}

func TestEnsureProfile_ExplicitUsernameWins(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, userID.String()).Return(nil, api.ErrNotFound)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(p types.Profile) bool {
		return p.Username == "chosen-name"
	})).Return(&types.Profile{ID: userID, Username: "chosen-name"}, nil)

	svc := NewService(repo, testLogger())

	_, err := svc.EnsureProfile(ctx, userID.String(), "carol@example.com", "chosen-name")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestEnsureProfile_LostRaceRefetches(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	winner := &types.Profile{ID: userID, Username: "dave", Role: types.RoleUser}

	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, userID.String()).Return(nil, api.ErrNotFound).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(nil, api.ErrConflict)
	repo.On("GetByID", mock.Anything, userID.String()).Return(winner, nil).Once()

	svc := NewService(repo, testLogger())

	got, err := svc.EnsureProfile(ctx, userID.String(), "dave@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, winner, got)
	repo.AssertExpectations(t)
}

func TestEnsureProfile_RepoErrorPropagates(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	boom := errors.New("connection refused")

	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, userID.String()).Return(nil, boom)

	svc := NewService(repo, testLogger())

	_, err := svc.EnsureProfile(ctx, userID.String(), "eve@example.com", "")
	assert.ErrorIs(t, err, boom)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUsernameFromEmail(t *testing.T) {
	assert.Equal(t, "alice", UsernameFromEmail("alice@example.com"))
	assert.Equal(t, "no-at-sign", UsernameFromEmail("no-at-sign"))
	assert.Equal(t, "user", UsernameFromEmail(""))
}

func TestUpdateProfile_OwnerAllowed(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()
	name := "New Name"
	params := types.UpdateProfileParams{DisplayName: &name}

	repo := new(MockRepository)
	repo.On("Update", mock.Anything, userID, params).Return(&types.Profile{DisplayName: name}, nil)

	svc := NewService(repo, testLogger())

	got, err := svc.UpdateProfile(ctx, userID, userID, params)
	require.NoError(t, err)
	assert.Equal(t, name, got.DisplayName)
	repo.AssertNotCalled(t, "GetRole", mock.Anything, mock.Anything)
}

func TestUpdateProfile_StrangerForbidden(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New().String()
	target := uuid.New().String()

	repo := new(MockRepository)
	repo.On("GetRole", mock.Anything, actor).Return(types.RoleUser, nil)

	svc := NewService(repo, testLogger())

	_, err := svc.UpdateProfile(ctx, actor, target, types.UpdateProfileParams{})
	assert.ErrorIs(t, err, api.ErrForbidden)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProfile_AdminAllowed(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New().String()
	target := uuid.New().String()

	repo := new(MockRepository)
	repo.On("GetRole", mock.Anything, actor).Return(types.RoleAdmin, nil)
	repo.On("Update", mock.Anything, target, mock.Anything).Return(&types.Profile{}, nil)

	svc := NewService(repo, testLogger())

	_, err := svc.UpdateProfile(ctx, actor, target, types.UpdateProfileParams{})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
