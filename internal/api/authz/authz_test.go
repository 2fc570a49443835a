package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	a := New("secret")

	tok, err := a.Issue(17, RoleAdmin, time.Hour)
	require.NoError(t, err)
	actor, err := a.Parse(tok)
	require.NoError(t, err)
	require.True(t, actor.Privileged)
	require.Equal(t, int64(17), *actor.UserID)

	tok, err = a.Issue(18, "customer", time.Hour)
	require.NoError(t, err)
	actor, err = a.Parse(tok)
	require.NoError(t, err)
	require.False(t, actor.Privileged)
}

func TestParse_Rejects(t *testing.T) {
	a := New("secret")

	expired, err := a.Issue(1, RoleAdmin, -time.Minute)
	require.NoError(t, err)
	_, err = a.Parse(expired)
	require.ErrorIs(t, err, ErrBadToken)

	other, err := New("other").Issue(1, RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = a.Parse(other)
	require.ErrorIs(t, err, ErrBadToken)

	// алгоритм none не принимаем
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Parse(none)
	require.ErrorIs(t, err, ErrBadToken)

	bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = a.Parse(bad)
	require.ErrorIs(t, err, ErrBadToken)
}

func TestMiddleware(t *testing.T) {
	a := New("secret")
	var got models.Actor
	var rejected error
	h := a.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		rejected = err
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFrom(r.Context())
	}))

	// без заголовка -> аноним
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.Actor{}, got)

	tok, err := a.Issue(3, RoleAdmin, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.True(t, got.Privileged)
	require.Equal(t, int64(3), *got.UserID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.ErrorIs(t, rejected, ErrBadToken)
}
