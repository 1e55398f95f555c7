// Package driven declares the driven-side port interfaces and the sentinel
// errors that make up the application's failure taxonomy.
package driven

import "errors"

var (
	// ErrNotFound is returned when a requested credential, snapshot, or
	// record does not exist. Callers treat it as an ordinary miss.
	ErrNotFound = errors.New("not found")

	// ErrAuthExpired is returned when a token refresh fails because the
	// refresh token was revoked or rejected. The user must re-authorize.
	ErrAuthExpired = errors.New("authorization expired: user must reconnect the service")

	// ErrUpstreamUnavailable is returned on transient upstream provider
	// failures. The sync scheduler retries at the next trigger; it is never
	// retried inline on the read path.
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

	// ErrBrokerUnavailable is returned when the shared cache/broker cannot
	// be reached. Callers recover with a local fallback and log; the error
	// never surfaces to an interactive request.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrDecryptionFailure is returned when a stored credential cannot be
	// decrypted (rotated key or corrupted blob). The credential is treated
	// as absent; the user must re-authorize.
	ErrDecryptionFailure = errors.New("credential decryption failed")

	// ErrRateLimited is returned when a request would exceed its sliding
	// window limit. The request is rejected with no other side effect.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrEncryptionKeyNotSet is returned by credential operations when
	// DAYBRIEF_SECRET_KEY has not been configured.
	ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set DAYBRIEF_SECRET_KEY")
)
