package store

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbf/tournament-desk/models"
)

type backend interface {
	RecordStore
	KeyStore
}

func openBadger(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func backends(t *testing.T) map[string]backend {
	return map[string]backend{
		"memory": NewMemoryStore(),
		"badger": openBadger(t),
	}
}

func sampleRecord() *models.TournamentRecord {
	return &models.TournamentRecord{
		TournamentID:   "nevza-24",
		TournamentName: "Nevza Oddanesand",
		StartDate:      "2024-06-18",
		Participants: []models.Participant{
			{ParticipantID: "p1", ParticipantName: gofakeit.Name(), SignInStatus: models.SignedIn},
			{ParticipantID: "p2", ParticipantName: gofakeit.Name()},
		},
		Events:     []models.Event{{EventID: "e1", EventName: "Open", Entries: []string{"p1", "p2"}}},
		MatchUps:   []models.MatchUp{{MatchUpID: "m1", EventID: "e1", Sides: []string{"p1", "p2"}, Sets: []models.SetScore{{Side1: 21, Side2: 17}}}},
		Extensions: []models.Extension{{Name: "scoreboard", Value: json.RawMessage(`{"court":1}`)}},
		UpdatedAt:  1718700000000,
	}
}

func TestRecordStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			record := sampleRecord()
			require.NoError(t, s.Save(ctx, record.TournamentID, record))

			loaded, err := s.Load(ctx, record.TournamentID)
			require.NoError(t, err)
			if diff := cmp.Diff(record, loaded, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("loaded record mismatch (-want +got):\n%s", diff)
			}

			_, err = s.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRecordStore_SaveDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			record := sampleRecord()
			require.NoError(t, s.Save(ctx, record.TournamentID, record))
			record.Participants[0].ParticipantName = "changed after save"

			loaded, err := s.Load(ctx, record.TournamentID)
			require.NoError(t, err)
			assert.NotEqual(t, "changed after save", loaded.Participants[0].ParticipantName)
		})
	}
}

func TestKeyStore_ConsumeOneTime(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := models.AuthorizationKey{Value: "K3X9ZQ", OneTime: true, Scope: models.RoleOfficial, TournamentID: "nevza-24"}
			require.NoError(t, s.PutKey(ctx, key, nil))

			redeemed, err := s.ConsumeKey(ctx, "K3X9ZQ", "session-b", nil)
			require.NoError(t, err)
			assert.True(t, redeemed.Used)
			assert.Equal(t, "session-b", redeemed.RedeemedBy)
			assert.Equal(t, models.RoleOfficial, redeemed.Scope)

			_, err = s.ConsumeKey(ctx, "K3X9ZQ", "session-c", nil)
			assert.ErrorIs(t, err, ErrKeyUsed)

			_, err = s.ConsumeKey(ctx, "ZZZZZZ", "session-c", nil)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestKeyStore_ReusableKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutKey(ctx, models.AuthorizationKey{Value: "AAAAAA", Scope: models.RoleUser}, nil))

			for i := 0; i < 3; i++ {
				_, err := s.ConsumeKey(ctx, "AAAAAA", "session", nil)
				assert.NoError(t, err)
			}
		})
	}
}

func TestKeyStore_ConcurrentConsumeHasOneWinner(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutKey(ctx, models.AuthorizationKey{Value: "RACE01", OneTime: true}, nil))

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := s.ConsumeKey(ctx, "RACE01", gofakeit.UUID(), nil); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, wins)
		})
	}
}

func TestKeyStore_ReplayedPutKeepsKeyUsed(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := models.AuthorizationKey{Value: "K3X9ZQ", KeyUUID: "uuid-1", OneTime: true, Scope: models.RoleOfficial}
			require.NoError(t, s.PutKey(ctx, key, nil))
			_, err := s.ConsumeKey(ctx, "K3X9ZQ", "session-b", nil)
			require.NoError(t, err)

			assert.ErrorIs(t, s.PutKey(ctx, key, nil), ErrKeyExists)

			_, err = s.ConsumeKey(ctx, "K3X9ZQ", "session-c", nil)
			assert.ErrorIs(t, err, ErrKeyUsed)
		})
	}
}

func TestKeyStore_PutReplacesOnlySpentKeys(t *testing.T) {
	ctx := context.Background()
	expired := func(key models.AuthorizationKey) bool { return key.IssuedAt < 1000 }
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			live := models.AuthorizationKey{Value: "LIVE01", KeyUUID: "uuid-1", OneTime: true, IssuedAt: 2000}
			require.NoError(t, s.PutKey(ctx, live, expired))
			assert.ErrorIs(t, s.PutKey(ctx, models.AuthorizationKey{Value: "LIVE01", KeyUUID: "uuid-2", IssuedAt: 3000}, expired), ErrKeyExists)

			used := models.AuthorizationKey{Value: "USED01", KeyUUID: "uuid-3", OneTime: true, IssuedAt: 2000}
			require.NoError(t, s.PutKey(ctx, used, expired))
			_, err := s.ConsumeKey(ctx, "USED01", "session-b", expired)
			require.NoError(t, err)
			require.NoError(t, s.PutKey(ctx, models.AuthorizationKey{Value: "USED01", KeyUUID: "uuid-4", OneTime: true, IssuedAt: 3000}, expired))
			redeemed, err := s.ConsumeKey(ctx, "USED01", "session-c", expired)
			require.NoError(t, err)
			assert.Equal(t, "uuid-4", redeemed.KeyUUID)

			old := models.AuthorizationKey{Value: "OLDK01", KeyUUID: "uuid-5", IssuedAt: 500}
			require.NoError(t, s.PutKey(ctx, old, expired))
			require.NoError(t, s.PutKey(ctx, models.AuthorizationKey{Value: "OLDK01", KeyUUID: "uuid-6", IssuedAt: 3000}, expired))
		})
	}
}

func TestKeyStore_ExpiredKeyIsNotConsumed(t *testing.T) {
	ctx := context.Background()
	expired := func(key models.AuthorizationKey) bool { return key.IssuedAt < 1000 }
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutKey(ctx, models.AuthorizationKey{Value: "OLDK01", KeyUUID: "uuid-1", OneTime: true, IssuedAt: 500}, nil))

			key, err := s.ConsumeKey(ctx, "OLDK01", "session-b", expired)
			assert.ErrorIs(t, err, ErrKeyExpired)
			require.NotNil(t, key)
			assert.Equal(t, "uuid-1", key.KeyUUID)

			untouched, err := s.ConsumeKey(ctx, "OLDK01", "session-c", nil)
			require.NoError(t, err, "the expired attempt must not have used the key")
			assert.Equal(t, "session-c", untouched.RedeemedBy)
		})
	}
}
