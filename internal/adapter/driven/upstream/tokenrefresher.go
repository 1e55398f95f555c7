package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

var _ driven.TokenRefresher = (*TokenRefresher)(nil)

// TokenRefresher exchanges refresh tokens for fresh access tokens at the
// provider's OAuth token endpoint.
type TokenRefresher struct {
	conf *oauth2.Config
}

// NewTokenRefresher creates a refresher for the given OAuth client.
func NewTokenRefresher(clientID, clientSecret, tokenURL string) *TokenRefresher {
	return &TokenRefresher{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: tokenURL,
			},
		},
	}
}

// Refresh exchanges refreshToken for a new access token. A rejection by the
// authorization server (revoked or invalid grant) maps to ErrAuthExpired so
// callers can distinguish "user must re-link" from a transient outage.
func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	src := r.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			switch retrieveErr.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				return "", time.Time{}, fmt.Errorf("%w: token endpoint rejected refresh: %v", driven.ErrAuthExpired, err)
			}
		}
		return "", time.Time{}, fmt.Errorf("%w: token refresh: %v", driven.ErrUpstreamUnavailable, err)
	}

	return tok.AccessToken, tok.Expiry.UTC(), nil
}
