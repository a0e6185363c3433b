package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vadimbarashkov/shortlink/internal/ratelimit"
)

const apiKeyHeader = "X-API-Key"

var errInvalidToken = errors.New("invalid bearer token")

type identityKey struct{}

// Identifier derives the rate-limit identity of a request. A verified bearer
// token wins over an API key, which wins over the client address.
type Identifier struct {
	secret  []byte
	apiKeys map[string]struct{}
}

func NewIdentifier(jwtSecret string, apiKeys []string) *Identifier {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}

	return &Identifier{
		secret:  []byte(jwtSecret),
		apiKeys: keys,
	}
}

// Identify resolves the identity of r. It fails only when a bearer token is
// present and cannot be verified.
func (i *Identifier) Identify(r *http.Request) (ratelimit.Identity, error) {
	const op = "http.Identifier.Identify"

	if auth := r.Header.Get("Authorization"); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			return ratelimit.Identity{}, fmt.Errorf("%s: %w", op, errInvalidToken)
		}

		subject, err := i.verify(strings.TrimSpace(token))
		if err != nil {
			return ratelimit.Identity{}, fmt.Errorf("%s: %w: %w", op, errInvalidToken, err)
		}

		return ratelimit.Identity{Class: ratelimit.ClassUser, Key: subject}, nil
	}

	if key := r.Header.Get(apiKeyHeader); key != "" {
		if _, ok := i.apiKeys[key]; ok {
			// Only a digest of the key identifies the caller.
			return ratelimit.Identity{
				Class: ratelimit.ClassAPIKey,
				Key:   strconv.FormatUint(xxhash.Sum64String(key), 16),
			}, nil
		}
	}

	return ratelimit.Identity{Class: ratelimit.ClassIP, Key: clientIP(r)}, nil
}

func (i *Identifier) verify(raw string) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("bearer tokens are not accepted")
	}

	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", errors.New("token has no subject")
	}

	return subject, nil
}

// Middleware stores the request identity in the context and rejects
// requests with an unverifiable bearer token.
func (i *Identifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := i.Identify(r)
		if err != nil {
			httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, unauthorizedResponse)
			return
		}

		httplog.LogEntrySetField(r.Context(), "identity", slog.StringValue(id.String()))

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) ratelimit.Identity {
	if id, ok := r.Context().Value(identityKey{}).(ratelimit.Identity); ok {
		return id
	}

	return ratelimit.Identity{Class: ratelimit.ClassIP, Key: clientIP(r)}
}

// clientIP returns the client address, which realIP has already resolved
// from trusted forwarding headers.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}
