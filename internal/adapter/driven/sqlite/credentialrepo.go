package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port
// interface. Token values are encrypted with AES-256-GCM before write and
// decrypted after read. A decrypt failure (rotated key, corrupted blob) is
// reported as driven.ErrDecryptionFailure, never a panic; callers treat such
// credentials as absent and prompt the user to re-authorize.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when credential storage is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage (all operations will
// return driven.ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Get retrieves the decrypted credential for the given user and service.
func (r *CredentialRepo) Get(ctx context.Context, userID int64, service string) (*model.Credential, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `
		SELECT id, user_id, service_name, access_token_encrypted, refresh_token_encrypted, expires_at, updated_at
		FROM service_tokens
		WHERE user_id = ? AND service_name = ?
	`

	var (
		cred             model.Credential
		accessEncrypted  string
		refreshEncrypted sql.NullString
		expiresAt        sql.NullString
		updatedAt        string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, userID, service).Scan(
		&cred.ID, &cred.UserID, &cred.Service, &accessEncrypted, &refreshEncrypted, &expiresAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential for user %d service %q: %w", userID, service, err)
	}

	cred.AccessToken, err = r.decrypt(accessEncrypted)
	if err != nil {
		return nil, fmt.Errorf("credential for user %d service %q: %w", userID, service, err)
	}

	if refreshEncrypted.Valid && refreshEncrypted.String != "" {
		cred.RefreshToken, err = r.decrypt(refreshEncrypted.String)
		if err != nil {
			return nil, fmt.Errorf("credential for user %d service %q: %w", userID, service, err)
		}
	}

	if expiresAt.Valid {
		t, err := parseTime(expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at for user %d service %q: %w", userID, service, err)
		}
		cred.Expiry = &t
	}

	if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for user %d service %q: %w", userID, service, err)
	}

	return &cred, nil
}

// Put stores or replaces the credential for (cred.UserID, cred.Service).
func (r *CredentialRepo) Put(ctx context.Context, cred model.Credential) error {
	accessEncrypted, err := r.encrypt(cred.AccessToken)
	if err != nil {
		return err
	}

	var refreshEncrypted any
	if cred.RefreshToken != "" {
		enc, err := r.encrypt(cred.RefreshToken)
		if err != nil {
			return err
		}
		refreshEncrypted = enc
	}

	var expiresAt any
	if cred.Expiry != nil {
		expiresAt = cred.Expiry.UTC()
	}

	const query = `
		INSERT INTO service_tokens (user_id, service_name, access_token_encrypted, refresh_token_encrypted, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, service_name) DO UPDATE SET
			access_token_encrypted = excluded.access_token_encrypted,
			refresh_token_encrypted = excluded.refresh_token_encrypted,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err = r.db.Writer.ExecContext(ctx, query,
		cred.UserID, cred.Service, accessEncrypted, refreshEncrypted, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("put credential for user %d service %q: %w", cred.UserID, cred.Service, err)
	}
	return nil
}

// Delete removes the credential for the given user and service.
func (r *CredentialRepo) Delete(ctx context.Context, userID int64, service string) error {
	const query = `DELETE FROM service_tokens WHERE user_id = ? AND service_name = ?`
	_, err := r.db.Writer.ExecContext(ctx, query, userID, service)
	if err != nil {
		return fmt.Errorf("delete credential for user %d service %q: %w", userID, service, err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext. Any failure maps
// to driven.ErrDecryptionFailure so callers can distinguish a rotated key
// from an ordinary storage error.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode: %v", driven.ErrDecryptionFailure, err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", driven.ErrDecryptionFailure)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", driven.ErrDecryptionFailure, err)
	}

	return string(plaintext), nil
}
