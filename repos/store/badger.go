package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nvbf/tournament-desk/models"
)

const conflictRetries = 3

// BadgerStore is the local durable cache. Values are msgpack encoded.
// Keys are "tournament:{id}" and "authkey:{value}".
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log}
}

func recordKey(tournamentID string) []byte {
	return []byte("tournament:" + tournamentID)
}

func authKeyKey(value string) []byte {
	return []byte("authkey:" + value)
}

func (b *BadgerStore) Save(_ context.Context, tournamentID string, record *models.TournamentRecord) error {
	bytes, err := msgpack.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding tournament %s: %w", tournamentID, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(tournamentID), bytes)
	})
	if err != nil {
		return fmt.Errorf("writing tournament %s: %w", tournamentID, err)
	}
	b.log.Debug("Tournament saved", slog.String("tournament_id", tournamentID), slog.Int("bytes", len(bytes)))
	return nil
}

func (b *BadgerStore) Load(_ context.Context, tournamentID string) (*models.TournamentRecord, error) {
	var bytes []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(tournamentID))
		if err != nil {
			return err
		}
		bytes, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("tournament %s: %w", tournamentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading tournament %s: %w", tournamentID, err)
	}

	var record models.TournamentRecord
	if err := msgpack.Unmarshal(bytes, &record); err != nil {
		return nil, fmt.Errorf("decoding tournament %s: %w", tournamentID, err)
	}
	return &record, nil
}

func (b *BadgerStore) PutKey(ctx context.Context, key models.AuthorizationKey, expired Expiry) error {
	bytes, err := msgpack.Marshal(key)
	if err != nil {
		return fmt.Errorf("encoding authorization key: %w", err)
	}
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = b.db.Update(func(txn *badger.Txn) error {
			stored, err := readKey(txn, key.Value)
			switch {
			case errors.Is(err, ErrNotFound):
			case err != nil:
				return err
			default:
				if err := replaceable(*stored, key, expired); err != nil {
					return err
				}
			}
			return txn.Set(authKeyKey(key.Value), bytes)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		b.log.DebugContext(ctx, "Authorization key put conflict, retrying", slog.Int("attempt", attempt+1))
	}
	return fmt.Errorf("storing authorization key %s: %w", key.Value, err)
}

func readKey(txn *badger.Txn, value string) (*models.AuthorizationKey, error) {
	item, err := txn.Get(authKeyKey(value))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("authorization key %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	bytes, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var key models.AuthorizationKey
	if err := msgpack.Unmarshal(bytes, &key); err != nil {
		return nil, fmt.Errorf("decoding authorization key %s: %w", value, err)
	}
	return &key, nil
}

// ConsumeKey relies on badger's optimistic transactions: of two concurrent consumers one commits
// and the other gets ErrConflict, retries, and then sees the key used.
func (b *BadgerStore) ConsumeKey(ctx context.Context, value, redeemer string, expired Expiry) (*models.AuthorizationKey, error) {
	var (
		result *models.AuthorizationKey
		err    error
	)
	for attempt := 0; attempt < conflictRetries; attempt++ {
		result, err = b.consumeOnce(value, redeemer, expired)
		if !errors.Is(err, badger.ErrConflict) {
			return result, err
		}
		b.log.DebugContext(ctx, "Authorization key consume conflict, retrying", slog.Int("attempt", attempt+1))
	}
	return nil, fmt.Errorf("consuming authorization key %s: %w", value, err)
}

func (b *BadgerStore) consumeOnce(value, redeemer string, expired Expiry) (*models.AuthorizationKey, error) {
	var result *models.AuthorizationKey
	err := b.db.Update(func(txn *badger.Txn) error {
		key, err := readKey(txn, value)
		if err != nil {
			return err
		}
		redeemed, err := consume(*key, redeemer, expired)
		if err != nil {
			result = key
			return err
		}
		encoded, err := msgpack.Marshal(redeemed)
		if err != nil {
			return err
		}
		result = &redeemed
		return txn.Set(authKeyKey(value), encoded)
	})
	return result, err
}
