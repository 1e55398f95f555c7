package model

import "time"

// Credential holds the per-user, per-service OAuth tokens for an upstream
// provider. Token values are plaintext at the domain boundary; the adapter
// layer encrypts them before persistence. Expiry is nil when the provider
// did not report one.
type Credential struct {
	ID           int64
	UserID       int64
	Service      string
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the stored expiry is known and in the past.
// A credential without a stored expiry is never considered expired here;
// callers fall back to the transient token's own validity check.
func (c Credential) Expired(now time.Time) bool {
	return c.Expiry != nil && now.After(*c.Expiry)
}
