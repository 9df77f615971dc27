package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/quizdeck/quizdeck-api/app/observability/metrics"
	"github.com/quizdeck/quizdeck-api/config"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

// Cookie names used by the browser-facing page flow.
const (
	AccessTokenCookie  = "qd_access_token"
	RefreshTokenCookie = "qd_refresh_token"
)

// Page prefixes that require a signed-in user. Admin pages are handled
// separately because they also need a role check.
var protectedPrefixes = []string{"/profile", "/create", "/settings", "/dashboard"}

// SessionRefresher rotates a refresh token into a fresh session.
type SessionRefresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*types.Session, error)
}

// RoleLookup resolves the role stored on a user's profile.
type RoleLookup interface {
	GetRole(ctx context.Context, userID string) (types.Role, error)
}

// Guard protects browser page routes. It refreshes expiring sessions on
// every request, sends anonymous visitors to the right login page, and
// keeps non-admins out of the admin area.
type Guard struct {
	logger    *slog.Logger
	sessions  SessionRefresher
	roles     RoleLookup
	jwtCfg    config.JWTConfig
	secretKey []byte
	secure    bool
}

func NewGuard(sessions SessionRefresher, roles RoleLookup, jwtCfg config.JWTConfig, secureCookies bool, logger *slog.Logger) *Guard {
	return &Guard{
		logger:    logger,
		sessions:  sessions,
		roles:     roles,
		jwtCfg:    jwtCfg,
		secretKey: []byte(jwtCfg.SecretKey),
		secure:    secureCookies,
	}
}

// Handler wraps a page mux with the guard. The order matters: the session
// refresh runs before any routing decision so a request arriving with an
// expired access token but a live refresh token is treated as signed in.
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims := g.refreshAndIdentify(ctx, w, r)
		path := r.URL.Path

		if strings.HasPrefix(path, "/admin") && path != "/admin/login" {
			if claims == nil {
				redirect(w, r, "/admin/login?from="+url.QueryEscape(path))
				return
			}
			// Missing profile or a failed lookup denies access. Admin
			// routes never fail open.
			role, err := g.roles.GetRole(ctx, claims.UserID)
			if err != nil {
				g.logger.WarnContext(ctx, "Admin role lookup failed, denying access",
					slog.Any("error", err), slog.String("user_id", claims.UserID))
				redirect(w, r, "/unauthorized")
				return
			}
			if role != types.RoleAdmin {
				redirect(w, r, "/unauthorized")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		for _, prefix := range protectedPrefixes {
			if strings.HasPrefix(path, prefix) {
				if claims == nil {
					redirect(w, r, "/login?redirectTo="+url.QueryEscape(path))
					return
				}
				break
			}
		}

		next.ServeHTTP(w, r)
	})
}

// refreshAndIdentify returns the caller's claims, or nil for anonymous.
// A valid access token short-circuits; otherwise the refresh cookie is
// exchanged for a new session and both cookies are rotated. Refresh
// failures are logged and the request continues as anonymous.
func (g *Guard) refreshAndIdentify(ctx context.Context, w http.ResponseWriter, r *http.Request) *types.Claims {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		if claims, err := g.parseAccessToken(c.Value); err == nil {
			return claims
		}
	}

	refreshCookie, err := r.Cookie(RefreshTokenCookie)
	if err != nil || refreshCookie.Value == "" {
		return nil
	}

	session, err := g.sessions.RefreshSession(ctx, refreshCookie.Value)
	if err != nil {
		g.logger.InfoContext(ctx, "Session refresh failed, continuing as anonymous",
			slog.Any("error", err))
		g.clearSessionCookies(w)
		return nil
	}

	g.SetSessionCookies(w, session)
	claims, err := g.parseAccessToken(session.AccessToken)
	if err != nil {
		g.logger.ErrorContext(ctx, "Freshly issued access token failed to parse",
			slog.Any("error", err))
		return nil
	}
	return claims
}

func (g *Guard) parseAccessToken(tokenString string) (*types.Claims, error) {
	claims := &types.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secretKey, nil
	}, jwt.WithIssuer(g.jwtCfg.Issuer), jwt.WithAudience(g.jwtCfg.Audience))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// SetSessionCookies writes the session pair. The refresh cookie outlives
// the access cookie so the guard can rotate silently.
func (g *Guard) SetSessionCookies(w http.ResponseWriter, session *types.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    session.AccessToken,
		Path:     "/",
		MaxAge:   int(g.jwtCfg.AccessTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    session.RefreshToken,
		Path:     "/",
		MaxAge:   int(g.jwtCfg.RefreshTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (g *Guard) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   g.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	metrics.Get().GuardRedirectsTotal.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("path", r.URL.Path)))
	http.Redirect(w, r, target, http.StatusSeeOther)
}
