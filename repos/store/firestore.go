package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nvbf/tournament-desk/models"
)

const (
	tournamentsCollection = "Tournaments"
	keysCollection        = "AuthorizationKeys"
)

// FirestoreStore keeps records and keys in Firestore, one document per tournament or key.
type FirestoreStore struct {
	firestoreClient *firestore.Client
	log             *slog.Logger
}

func NewFirestoreStore(firestoreClient *firestore.Client, log *slog.Logger) *FirestoreStore {
	return &FirestoreStore{firestoreClient: firestoreClient, log: log}
}

func (s *FirestoreStore) Save(ctx context.Context, tournamentID string, record *models.TournamentRecord) error {
	_, err := s.firestoreClient.Collection(tournamentsCollection).Doc(tournamentID).Set(ctx, record)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to write tournament to Firestore",
			slog.String("tournament_id", tournamentID),
			slog.Any("error", err),
		)
		return fmt.Errorf("writing tournament %s: %w", tournamentID, err)
	}
	return nil
}

func (s *FirestoreStore) Load(ctx context.Context, tournamentID string) (*models.TournamentRecord, error) {
	doc, err := s.firestoreClient.Collection(tournamentsCollection).Doc(tournamentID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("tournament %s: %w", tournamentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading tournament %s: %w", tournamentID, err)
	}

	var record models.TournamentRecord
	if err := doc.DataTo(&record); err != nil {
		// We control both what is written and the struct shape, so this is a consistency error.
		return nil, fmt.Errorf("consistency error. Converting %s to tournament record failed: %w", doc.Ref.ID, err)
	}
	return &record, nil
}

// PutKey creates the key document, or replaces one that may be replaced, inside a transaction.
func (s *FirestoreStore) PutKey(ctx context.Context, key models.AuthorizationKey, expired Expiry) error {
	docRef := s.firestoreClient.Collection(keysCollection).Doc(key.Value)

	err := s.firestoreClient.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if status.Code(err) == codes.NotFound {
			return tx.Create(docRef, key)
		}
		if err != nil {
			return err
		}

		var stored models.AuthorizationKey
		if err := doc.DataTo(&stored); err != nil {
			return fmt.Errorf("consistency error. Converting key %s failed: %w", key.Value, err)
		}
		if err := replaceable(stored, key, expired); err != nil {
			return err
		}
		return tx.Set(docRef, key)
	})
	if err != nil && !errors.Is(err, ErrKeyExists) {
		return fmt.Errorf("writing authorization key: %w", err)
	}
	return err
}

// ConsumeKey reads and marks the key inside one transaction so two redeemers cannot both win.
func (s *FirestoreStore) ConsumeKey(ctx context.Context, value, redeemer string, expired Expiry) (*models.AuthorizationKey, error) {
	docRef := s.firestoreClient.Collection(keysCollection).Doc(value)

	var result *models.AuthorizationKey
	err := s.firestoreClient.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("authorization key %s: %w", value, ErrNotFound)
		}
		if err != nil {
			return err
		}

		var key models.AuthorizationKey
		if err := doc.DataTo(&key); err != nil {
			return fmt.Errorf("consistency error. Converting key %s failed: %w", value, err)
		}
		redeemed, err := consume(key, redeemer, expired)
		if err != nil {
			result = &key
			return err
		}
		result = &redeemed
		return tx.Set(docRef, redeemed)
	})
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrKeyUsed) && !errors.Is(err, ErrKeyExpired) {
		s.log.ErrorContext(ctx, "Failed to consume authorization key", slog.Any("error", err))
	}
	return result, err
}
