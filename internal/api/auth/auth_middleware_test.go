package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quizdeck/quizdeck-api/config"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

type MockRoleLookup struct {
	mock.Mock
}

func (m *MockRoleLookup) GetRole(ctx context.Context, userID string) (types.Role, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(types.Role), args.Error(1)
}

var middlewareJWTCfg = config.JWTConfig{
	SecretKey:       "test-secret-key",
	Issuer:          "quizdeck-test",
	Audience:        "quizdeck-app",
	AccessTokenTTL:  15 * time.Minute,
	RefreshTokenTTL: 168 * time.Hour,
}

func middlewareToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := types.Claims{
		UserID: userID,
		Email:  "tester@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    middlewareJWTCfg.Issuer,
			Audience:  jwt.ClaimStrings{middlewareJWTCfg.Audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(middlewareJWTCfg.SecretKey))
	require.NoError(t, err)
	return token
}

func okHandler(sawUserID *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := GetUserIDFromContext(r.Context()); ok {
			*sawUserID = id
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_ValidToken(t *testing.T) {
	var sawUserID string
	handler := Authenticate(testLogger(), middlewareJWTCfg)(okHandler(&sawUserID))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes/mine", nil)
	req.Header.Set("Authorization", "Bearer "+middlewareToken(t, "user-1", time.Minute))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", sawUserID)
}

func TestAuthenticate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sawUserID string
			handler := Authenticate(testLogger(), middlewareJWTCfg)(okHandler(&sawUserID))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes/mine", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, sawUserID)
		})
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	var sawUserID string
	handler := Authenticate(testLogger(), middlewareJWTCfg)(okHandler(&sawUserID))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes/mine", nil)
	req.Header.Set("Authorization", "Bearer "+middlewareToken(t, "user-1", -time.Minute))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole_AdminPasses(t *testing.T) {
	roles := new(MockRoleLookup)
	roles.On("GetRole", mock.Anything, "admin-1").Return(types.RoleAdmin, nil)

	var sawUserID string
	handler := Authenticate(testLogger(), middlewareJWTCfg)(
		RequireRole(testLogger(), roles, types.RoleAdmin)(okHandler(&sawUserID)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+middlewareToken(t, "admin-1", time.Minute))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", sawUserID)
}

func TestRequireRole_UserDenied(t *testing.T) {
	roles := new(MockRoleLookup)
	roles.On("GetRole", mock.Anything, "user-1").Return(types.RoleUser, nil)

	var sawUserID string
	handler := Authenticate(testLogger(), middlewareJWTCfg)(
		RequireRole(testLogger(), roles, types.RoleAdmin)(okHandler(&sawUserID)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+middlewareToken(t, "user-1", time.Minute))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, sawUserID)
}

func TestRequireRole_LookupFailureFailsClosed(t *testing.T) {
	roles := new(MockRoleLookup)
	roles.On("GetRole", mock.Anything, "user-1").Return(types.Role(""), errors.New("profile missing"))

	var sawUserID string
	handler := Authenticate(testLogger(), middlewareJWTCfg)(
		RequireRole(testLogger(), roles, types.RoleAdmin)(okHandler(&sawUserID)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+middlewareToken(t, "user-1", time.Minute))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, sawUserID)
}

func TestRequireRole_WithoutAuthenticateRejects(t *testing.T) {
	var sawUserID string
	handler := RequireRole(testLogger(), new(MockRoleLookup), types.RoleAdmin)(okHandler(&sawUserID))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
