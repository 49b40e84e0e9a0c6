package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvbf/tournament-desk/models"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrKeyUsed    = errors.New("authorization key already redeemed")
	ErrKeyExpired = errors.New("authorization key expired")
	ErrKeyExists  = errors.New("authorization key already stored")
)

// Expiry reports whether a stored key is past its lifetime. A nil Expiry never expires a key.
type Expiry func(key models.AuthorizationKey) bool

// RecordStore keeps one tournament record per tournament id.
type RecordStore interface {
	Save(ctx context.Context, tournamentID string, record *models.TournamentRecord) error
	Load(ctx context.Context, tournamentID string) (*models.TournamentRecord, error)
}

// KeyStore keeps issued authorization keys for the key authority.
type KeyStore interface {
	// PutKey stores a new key. A key already stored under the same value is only replaced when it is
	// a used one-time key or expired; otherwise, and always for a repeated KeyUUID, it returns ErrKeyExists.
	PutKey(ctx context.Context, key models.AuthorizationKey, expired Expiry) error
	// ConsumeKey looks the key up and, for one-time keys, marks it used in the same transaction.
	// An expired key is reported with ErrKeyExpired and left as it was.
	ConsumeKey(ctx context.Context, value, redeemer string, expired Expiry) (*models.AuthorizationKey, error)
}

// replaceable decides whether next may take the place of stored.
func replaceable(stored, next models.AuthorizationKey, expired Expiry) error {
	switch {
	case stored.KeyUUID == next.KeyUUID:
		return fmt.Errorf("authorization key %s: %w", next.Value, ErrKeyExists)
	case stored.OneTime && stored.Used:
		return nil
	case expired != nil && expired(stored):
		return nil
	default:
		return fmt.Errorf("authorization key %s: %w", next.Value, ErrKeyExists)
	}
}

// consume applies the single-use rule to a stored key. It returns the key as redeemed.
func consume(key models.AuthorizationKey, redeemer string, expired Expiry) (models.AuthorizationKey, error) {
	if key.OneTime && key.Used {
		return key, ErrKeyUsed
	}
	if expired != nil && expired(key) {
		return key, ErrKeyExpired
	}
	key.Used = true
	key.RedeemedBy = redeemer
	return key, nil
}
