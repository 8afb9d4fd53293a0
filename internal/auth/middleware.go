package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// PlayerHeader carries the player id when token auth is disabled.
const PlayerHeader = "X-Player-ID"

// Identifier names the player making a request.
type Identifier interface {
	Identify(r *http.Request) (string, error)
}

// HeaderIdentifier trusts the X-Player-ID header. Development only.
type HeaderIdentifier struct{}

func (HeaderIdentifier) Identify(r *http.Request) (string, error) {
	player := strings.TrimSpace(r.Header.Get(PlayerHeader))
	if player == "" {
		return "", ErrMissingToken
	}
	return player, nil
}

type contextKey struct{}

// WithPlayer stores the player id on ctx.
func WithPlayer(ctx context.Context, player string) context.Context {
	return context.WithValue(ctx, contextKey{}, player)
}

// PlayerFrom returns the player id set by Middleware, if any.
func PlayerFrom(ctx context.Context) (string, bool) {
	player, ok := ctx.Value(contextKey{}).(string)
	return player, ok && player != ""
}

// Middleware identifies the caller and stores the player on the request
// context. Anonymous requests pass through so read-only routes stay public;
// handlers that act for a player check PlayerFrom. A token that is present
// but invalid is rejected with 401.
func Middleware(id Identifier) func(http.Handler) http.Handler {
	logger := log.With().Str("component", "auth").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			player, err := id.Identify(r)
			switch {
			case err == nil:
				r = r.WithContext(WithPlayer(r.Context(), player))
			case errors.Is(err, ErrMissingToken):
			default:
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected token")
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
