// Package authz turns bearer tokens into the caller identity the order services expect.
package authz

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const RoleAdmin = "admin"

var ErrBadToken = errors.New("invalid or expired token")

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
}

func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Parse validates an HS256 token and maps it to an Actor: sub is the user id and
// role "admin" makes the caller privileged.
func (a *Authenticator) Parse(token string) (models.Actor, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Actor{}, errors.Wrap(ErrBadToken, err.Error())
	}

	actor := models.Actor{Privileged: c.Role == RoleAdmin}
	if c.Subject != "" {
		id, err := strconv.ParseInt(c.Subject, 10, 64)
		if err != nil {
			return models.Actor{}, errors.Wrap(ErrBadToken, "sub is not a user id")
		}
		actor.UserID = &id
	}
	return actor, nil
}

// Issue signs a token for userID; used by tooling and tests.
func (a *Authenticator) Issue(userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}

type ctxKey struct{}

// Middleware puts the caller Actor into the request context. No Authorization
// header means an anonymous caller; a header with a bad token is rejected with onError.
func (a *Authenticator) Middleware(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := strings.TrimSpace(r.Header.Get("Authorization"))
			if h == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(h, "Bearer ")
			if !ok {
				onError(w, r, errors.Wrap(ErrBadToken, "expected bearer scheme"))
				return
			}
			actor, err := a.Parse(strings.TrimSpace(token))
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFrom returns the caller, or an anonymous Actor when none was set.
func ActorFrom(ctx context.Context) models.Actor {
	a, _ := ctx.Value(ctxKey{}).(models.Actor)
	return a
}
