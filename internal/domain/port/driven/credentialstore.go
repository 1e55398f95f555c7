package driven

import (
	"context"

	"github.com/evanhall/daybrief/internal/domain/model"
)

// CredentialStore defines the driven port for encrypted credential
// persistence. The adapter layer is responsible for encryption/decryption;
// this interface operates on plaintext token values at the domain boundary.
// At most one credential exists per (user, service).
type CredentialStore interface {
	// Get retrieves the decrypted credential for the given user and service.
	// Returns ErrNotFound if none is stored, ErrDecryptionFailure if the
	// stored blobs cannot be decrypted, and ErrEncryptionKeyNotSet if the
	// adapter was constructed without an encryption key.
	Get(ctx context.Context, userID int64, service string) (*model.Credential, error)

	// Put stores or replaces the credential for (cred.UserID, cred.Service),
	// encrypting the token values before write.
	Put(ctx context.Context, cred model.Credential) error

	// Delete removes the credential for the given user and service.
	// Deleting a missing credential is not an error.
	Delete(ctx context.Context, userID int64, service string) error
}
