// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// expirySkew is subtracted from a stored expiry so a token is refreshed
// slightly before the provider would start rejecting it.
const expirySkew = 30 * time.Second

// CredentialVault resolves a user's stored credential to a currently valid
// access token, refreshing transparently when the stored token has expired.
// Callers never see refresh tokens or expiry bookkeeping.
type CredentialVault struct {
	creds     driven.CredentialStore
	refresher driven.TokenRefresher
	service   string
	now       func() time.Time

	// refreshMu serializes refreshes so concurrent callers holding the same
	// expired credential do not all hit the token endpoint.
	refreshMu sync.Mutex
}

// NewCredentialVault creates a vault over the given credential store and
// token refresher for one upstream service.
func NewCredentialVault(creds driven.CredentialStore, refresher driven.TokenRefresher, service string) *CredentialVault {
	return &CredentialVault{
		creds:     creds,
		refresher: refresher,
		service:   service,
		now:       time.Now,
	}
}

// AccessToken returns a currently valid access token for the user's stored
// credential. Returns ErrNotFound when no usable credential exists (including
// one that can no longer be decrypted) and ErrAuthExpired when the refresh
// token has been revoked and the user must reconnect the service.
func (v *CredentialVault) AccessToken(ctx context.Context, userID int64) (string, error) {
	cred, err := v.creds.Get(ctx, userID, v.service)
	if err != nil {
		if errors.Is(err, driven.ErrDecryptionFailure) {
			// Undecryptable blobs are indistinguishable from absent ones as
			// far as callers are concerned; the user has to re-link either way.
			slog.Warn("stored credential cannot be decrypted, treating as absent",
				"user_id", userID, "service", v.service)
			return "", fmt.Errorf("credential for user %d: %w", userID, driven.ErrNotFound)
		}
		return "", err
	}

	if v.usable(*cred) {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		return "", fmt.Errorf("%w: token expired and no refresh token stored", driven.ErrAuthExpired)
	}
	return v.refresh(ctx, userID)
}

// usable reports whether the stored access token can be handed out as-is.
// With a stored expiry the answer comes from the clock; without one we fall
// back to a transient oauth2.Token, whose Valid check accepts any non-empty
// token with no expiry.
func (v *CredentialVault) usable(cred model.Credential) bool {
	if cred.Expiry != nil {
		return v.now().Add(expirySkew).Before(*cred.Expiry)
	}
	transient := &oauth2.Token{AccessToken: cred.AccessToken}
	return transient.Valid()
}

// refresh exchanges the stored refresh token for a new access token and
// persists the result. The credential is re-read under the lock first, so a
// caller that lost the race to another refresh reuses its result instead of
// spending a second round trip on the token endpoint.
func (v *CredentialVault) refresh(ctx context.Context, userID int64) (string, error) {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	cred, err := v.creds.Get(ctx, userID, v.service)
	if err != nil {
		return "", err
	}
	if v.usable(*cred) {
		return cred.AccessToken, nil
	}

	accessToken, expiresAt, err := v.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		// Nothing is persisted on failure; the stored credential stays as-is
		// so a transient outage does not destroy a working refresh token.
		return "", fmt.Errorf("refresh credential for user %d: %w", userID, err)
	}

	cred.AccessToken = accessToken
	if expiresAt.IsZero() {
		cred.Expiry = nil
	} else {
		cred.Expiry = &expiresAt
	}

	if err := v.creds.Put(ctx, *cred); err != nil {
		// The new token is valid even if we could not persist it; the next
		// caller will refresh again.
		slog.Error("persist refreshed credential failed",
			"user_id", userID, "service", v.service, "error", err)
	} else {
		slog.Info("credential refreshed", "user_id", userID, "service", v.service)
	}

	return accessToken, nil
}
