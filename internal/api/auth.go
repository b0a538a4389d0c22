package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// ingestAuth rejects notification-webhook requests that don't carry the
// configured shared-secret bearer token. The ingest endpoint is called by
// one trusted upstream, not a browser, so a static token (not a JWT) is
// the right fit — modeled on the teacher's RequireAuth for its own
// single-token-protected endpoints.
func ingestAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				WriteError(w, http.StatusUnauthorized, "invalid or missing ingest token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// readClaims is the JWT payload issued for read-API bearer tokens.
type readClaims struct {
	AppID string `json:"app_id"`
	jwt.RegisteredClaims
}

// jwtIssuer signs and verifies read-API bearer tokens (HS256), scoped to
// one app_id, grounded on the teacher pack's golang-jwt/jwt/v5 HMAC usage.
type jwtIssuer struct {
	secret []byte
	ttl    time.Duration
}

func newJWTIssuer(secret string, ttl time.Duration) *jwtIssuer {
	return &jwtIssuer{secret: []byte(secret), ttl: ttl}
}

func (j *jwtIssuer) issue(appID string) (string, error) {
	claims := readClaims{
		AppID: appID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(j.secret)
}

func (j *jwtIssuer) verify(tokenString string) (string, error) {
	claims := &readClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", http.ErrNoCookie
	}
	return claims.AppID, nil
}

type contextKey string

const appIDContextKey contextKey = "app_id"

func contextWithAppID(ctx context.Context, appID string) context.Context {
	return context.WithValue(ctx, appIDContextKey, appID)
}

// appIDFromContext returns the app_id stamped by readAuth, if any.
func appIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(appIDContextKey).(string)
	return v, ok
}

// issueReadTokenHandler mints a read-API bearer token for the requesting
// app, gated behind the same ingest shared secret (an operator-only
// action, not an end-user login flow).
func issueReadTokenHandler(issuer *jwtIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID := chi.URLParam(r, "appID")
		if appID == "" {
			WriteError(w, http.StatusBadRequest, "missing app id")
			return
		}
		token, err := issuer.issue(appID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to issue token")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

// readAuth validates a bearer JWT and confirms its app_id matches the
// {appID} route the caller is asking for — a token minted for one app
// must not read another app's data.
func readAuth(issuer *jwtIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			appID, err := issuer.verify(tokenString)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
			if routeAppID := chi.URLParam(r, "appID"); routeAppID != "" && routeAppID != appID {
				WriteError(w, http.StatusForbidden, "token not valid for this app")
				return
			}
			r = r.WithContext(contextWithAppID(r.Context(), appID))
			next.ServeHTTP(w, r)
		})
	}
}
