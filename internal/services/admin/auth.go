package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const adminSubject = "admin"

var ErrUnauthenticated = errors.New("missing or invalid bearer token")

// Auth checks HS256 tokens whose subject is "admin". An empty secret disables it.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth { return &Auth{secret: []byte(secret)} }

func (a *Auth) Enabled() bool { return a != nil && len(a.secret) > 0 }

func (a *Auth) Verify(token string) error {
	if !a.Enabled() {
		return nil
	}
	if token == "" {
		return ErrUnauthenticated
	}
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject(adminSubject))
	if err != nil {
		return ErrUnauthenticated
	}
	return nil
}

// Issue mints an admin token valid for ttl.
func (a *Auth) Issue(now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Auth) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if err := a.Verify(bearer(ctx)); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return next(ctx, req)
	}
}

// HTTP guards the gateway routes with the same check.
func (a *Auth) HTTP(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Verify(stripBearer(r.Header.Get("Authorization"))); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func bearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return stripBearer(vals[0])
}

func stripBearer(v string) string {
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}
