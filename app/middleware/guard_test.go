package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quizdeck/quizdeck-api/config"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

type MockSessionRefresher struct {
	mock.Mock
}

func (m *MockSessionRefresher) RefreshSession(ctx context.Context, refreshToken string) (*types.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Session), args.Error(1)
}

type MockRoleLookup struct {
	mock.Mock
}

func (m *MockRoleLookup) GetRole(ctx context.Context, userID string) (types.Role, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(types.Role), args.Error(1)
}

var testJWTCfg = config.JWTConfig{
	SecretKey:       "test-secret-key",
	Issuer:          "quizdeck-test",
	Audience:        "quizdeck-app",
	AccessTokenTTL:  15 * time.Minute,
	RefreshTokenTTL: 168 * time.Hour,
}

func signedToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := types.Claims{
		UserID: userID,
		Email:  "tester@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testJWTCfg.Issuer,
			Audience:  jwt.ClaimStrings{testJWTCfg.Audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTCfg.SecretKey))
	require.NoError(t, err)
	return token
}

func newTestGuard(sessions SessionRefresher, roles RoleLookup) *Guard {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return NewGuard(sessions, roles, testJWTCfg, false, logger)
}

func serveGuarded(g *Guard, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler := g.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGuard_AnonymousAdminPathRedirectsToAdminLogin(t *testing.T) {
	g := newTestGuard(new(MockSessionRefresher), new(MockRoleLookup))

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	rec := serveGuarded(g, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/login?from=%2Fadmin%2Fdashboard", rec.Header().Get("Location"))
}

func TestGuard_AdminLoginPageNeverRedirected(t *testing.T) {
	g := newTestGuard(new(MockSessionRefresher), new(MockRoleLookup))

	req := httptest.NewRequest(http.MethodGet, "/admin/login", nil)
	rec := serveGuarded(g, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_NonAdminRoleSentToUnauthorized(t *testing.T) {
	roles := new(MockRoleLookup)
	roles.On("GetRole", mock.Anything, "user-1").Return(types.RoleUser, nil)
	g := newTestGuard(new(MockSessionRefresher), roles)

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: signedToken(t, "user-1", time.Minute)})
	rec := serveGuarded(g, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/unauthorized", rec.Header().Get("Location"))
}

func TestGuard_RoleLookupFailureFailsClosed(t *testing.T) {
	roles := new(MockRoleLookup)
	roles.On("GetRole", mock.Anything, "user-1").Return(types.Role(""), errors.New("profile missing"))
	g := newTestGuard(new(MockSessionRefresher), roles)

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: signedToken(t, "user-1", time.Minute)})
	rec := serveGuarded(g, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/unauthorized", rec.Header().Get("Location"))
}

func TestGuard_AdminPassesThrough(t *testing.T) {
	roles := new(MockRoleLookup)
	roles.On("GetRole", mock.Anything, "admin-1").Return(types.RoleAdmin, nil)
	g := newTestGuard(new(MockSessionRefresher), roles)

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: signedToken(t, "admin-1", time.Minute)})
	rec := serveGuarded(g, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_AnonymousProtectedPathRedirectsToLogin(t *testing.T) {
	g := newTestGuard(new(MockSessionRefresher), new(MockRoleLookup))

	for _, path := range []string{"/profile", "/create/quiz", "/settings", "/dashboard"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := serveGuarded(g, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		loc := rec.Header().Get("Location")
		assert.Contains(t, loc, "/login?redirectTo=", path)
	}
}

func TestGuard_PublicPathPassesAnonymously(t *testing.T) {
	g := newTestGuard(new(MockSessionRefresher), new(MockRoleLookup))

	req := httptest.NewRequest(http.MethodGet, "/quizzes/browse", nil)
	rec := serveGuarded(g, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_RefreshRotatesCookies(t *testing.T) {
	newAccess := signedToken(t, "user-1", time.Minute)
	sessions := new(MockSessionRefresher)
	sessions.On("RefreshSession", mock.Anything, "old-refresh").Return(&types.Session{
		UserID:       "user-1",
		AccessToken:  newAccess,
		RefreshToken: "new-refresh",
	}, nil)
	g := newTestGuard(sessions, new(MockRoleLookup))

	// Expired access token plus a live refresh token: the guard must
	// silently rotate and treat the request as signed in.
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: signedToken(t, "user-1", -time.Minute)})
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "old-refresh"})
	rec := serveGuarded(g, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	byName := map[string]string{}
	for _, c := range cookies {
		byName[c.Name] = c.Value
	}
	assert.Equal(t, newAccess, byName[AccessTokenCookie])
	assert.Equal(t, "new-refresh", byName[RefreshTokenCookie])
	sessions.AssertExpectations(t)
}

func TestGuard_FailedRefreshDegradesToAnonymous(t *testing.T) {
	sessions := new(MockSessionRefresher)
	sessions.On("RefreshSession", mock.Anything, "stale").Return(nil, errors.New("revoked"))
	g := newTestGuard(sessions, new(MockRoleLookup))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "stale"})
	rec := serveGuarded(g, req)

	// Fail open into the anonymous flow: redirected to login, not an error.
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/login?redirectTo=")

	// Stale cookies are cleared so the next request skips the dead refresh.
	for _, c := range rec.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge, c.Name)
	}
}
