package driven

import (
	"context"
	"time"

	"github.com/evanhall/daybrief/internal/domain/model"
)

// ProviderClient defines the driven port for the upstream data provider's
// read API. Implementations map transport failures to ErrUpstreamUnavailable
// and authentication rejections to ErrAuthExpired. Only the sync worker calls
// this port; the interactive read path never does.
type ProviderClient interface {
	// FetchUnreadMessages retrieves the user's most recent unread messages.
	FetchUnreadMessages(ctx context.Context, accessToken string, maxResults int) ([]model.Message, error)

	// FetchUpcomingEvents retrieves the user's next calendar events.
	FetchUpcomingEvents(ctx context.Context, accessToken string, maxResults int) ([]model.CalendarEvent, error)
}

// TokenRefresher defines the driven port for the provider's OAuth token
// endpoint. Implementations return ErrAuthExpired when the refresh token has
// been revoked or rejected, and ErrUpstreamUnavailable on transport failure.
type TokenRefresher interface {
	// Refresh exchanges a refresh token for a new access token. expiresAt is
	// the zero time when the provider did not report an expiry.
	Refresh(ctx context.Context, refreshToken string) (accessToken string, expiresAt time.Time, err error)
}
