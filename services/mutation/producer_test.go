package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbf/tournament-desk/models"
	"github.com/nvbf/tournament-desk/pkg/metrics"
	"github.com/nvbf/tournament-desk/repos/engine"
	"github.com/nvbf/tournament-desk/services/tournament"
)

var fixedNow = time.Date(2024, 6, 18, 10, 0, 0, 0, time.UTC)

type fixture struct {
	state    *tournament.State
	store    *FakeRecordStore
	notifier *FakeNotifier
	engine   *engine.Engine
	producer *Producer
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(record *models.TournamentRecord) *fixture {
	f := &fixture{
		state:    tournament.NewState(),
		store:    NewFakeRecordStore(),
		notifier: &FakeNotifier{},
		engine:   engine.New(),
	}
	if record != nil {
		f.state.Select(record)
	}
	f.producer = NewProducer(ProducerOptions{
		State:    f.state,
		Store:    f.store,
		Engine:   f.engine,
		Notifier: f.notifier,
		Metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
		Now:      func() time.Time { return fixedNow },
		Log:      discardLogger(),
	})
	return f
}

func baseRecord() *models.TournamentRecord {
	return &models.TournamentRecord{
		TournamentID:   "nevza-24",
		TournamentName: "Nevza Oddanesand",
		Participants:   []models.Participant{{ParticipantID: "p0", ParticipantName: "Ola Nordmann"}},
	}
}

func TestApply_AllSucceed(t *testing.T) {
	original := baseRecord()
	f := newFixture(original)

	ext := models.Extension{Name: "scoreboard", Value: json.RawMessage(`{"court":1}`)}
	batch := Batch{
		Op(engine.AddParticipants, engine.AddParticipantsParams{
			Participants: []models.Participant{{ParticipantID: "p1", ParticipantName: "Kari Nordmann"}},
		}),
		Op(engine.AddTournamentExtension, engine.ExtensionParams{Extension: ext}),
	}

	record, outcome := f.producer.Apply(context.Background(), batch)

	assert.True(t, outcome.Success)
	assert.Equal(t, 2, outcome.ModificationsCount)
	assert.Empty(t, outcome.Errors)
	assert.True(t, outcome.Persisted)
	require.Equal(t, 1, f.store.Saves())

	stored, err := f.store.Load(context.Background(), "nevza-24")
	require.NoError(t, err)
	_, hasP1 := stored.Participant("p1")
	_, hasExt := stored.Extension("scoreboard")
	assert.True(t, hasP1)
	assert.True(t, hasExt)
	assert.Equal(t, fixedNow.UnixMilli(), stored.UpdatedAt)

	_, current := f.state.Current()
	assert.Same(t, record, current, "the draft becomes the selected record")
	assert.Len(t, original.Participants, 1, "the original is never written to")
	assert.Empty(t, original.Extensions)
}

func TestApply_EmptySignInListFails(t *testing.T) {
	original := baseRecord()
	f := newFixture(original)

	record, outcome := f.producer.Apply(context.Background(), Batch{
		Op(engine.ModifySignInStatus, engine.SignInStatusParams{ParticipantIDs: []string{}, SignInState: models.SignedOut}),
	})

	assert.False(t, outcome.Success)
	assert.Zero(t, outcome.ModificationsCount)
	require.Len(t, outcome.Errors, 1)
	assert.NotEmpty(t, outcome.Errors[0].Message)
	assert.Equal(t, string(engine.ModifySignInStatus), outcome.Errors[0].Method)
	assert.Zero(t, f.store.Saves())
	assert.False(t, outcome.Persisted)
	assert.Same(t, original, record)

	assert.Equal(t, []NotificationKind{NotifyErrors}, f.notifier.Kinds())
	assert.Equal(t, 1, f.notifier.Last().Count)
}

func TestApply_NoTournamentSelected(t *testing.T) {
	f := newFixture(nil)
	called := 0
	f.engine.Register("tally", func(*models.TournamentRecord, json.RawMessage) engine.Result {
		called++
		return engine.Result{Success: true}
	})

	record, outcome := f.producer.Apply(context.Background(), Batch{{Method: "tally"}, {Method: "tally"}})

	assert.Nil(t, record)
	assert.Zero(t, outcome.ModificationsCount)
	assert.Zero(t, called, "no operation runs without a selection")
	require.Len(t, outcome.Errors, 1)
	assert.Equal(t, CodeNoTournament, outcome.Errors[0].Code)
	assert.Empty(t, outcome.Results)
	assert.Zero(t, f.store.Saves())
	assert.Equal(t, []NotificationKind{NotifyRefused}, f.notifier.Kinds())
}

func TestApply_UnresolvedMethodsAreSkipped(t *testing.T) {
	f := newFixture(baseRecord())

	batch := Batch{
		Op(engine.SetTournamentName, engine.TournamentNameParams{TournamentName: "Renamed"}),
		{Method: "generateDrawDefinition"},
		Op(engine.AddParticipants, engine.AddParticipantsParams{Participants: []models.Participant{{ParticipantID: "p1"}}}),
	}
	_, outcome := f.producer.Apply(context.Background(), batch)

	assert.Equal(t, len(batch)-1, outcome.ModificationsCount)
	assert.Empty(t, outcome.Errors)
	require.Len(t, outcome.Results, 3)
	assert.True(t, outcome.Results[1].Unresolved)
	assert.False(t, outcome.Results[1].Success)
	assert.Nil(t, outcome.Results[1].Error)
	assert.True(t, outcome.Success)
}

func TestApply_OnlyUnresolvedIsNoop(t *testing.T) {
	original := baseRecord()
	f := newFixture(original)

	record, outcome := f.producer.Apply(context.Background(), Batch{{Method: "nope"}, {Method: "alsoNope"}})

	assert.Same(t, original, record)
	assert.Zero(t, outcome.ModificationsCount)
	assert.Empty(t, outcome.Errors)
	assert.Zero(t, f.store.Saves())
	assert.Equal(t, []NotificationKind{NotifyNothingHappened}, f.notifier.Kinds())
}

func TestApply_PersistsIffModified(t *testing.T) {
	rename := Op(engine.SetTournamentName, engine.TournamentNameParams{TournamentName: "Renamed"})
	failing := Op(engine.RemoveTournamentExtension, engine.ExtensionNameParams{Name: "missing"})

	cases := []struct {
		name    string
		batch   Batch
		persist bool
	}{
		{"all success", Batch{rename}, true},
		{"all failure", Batch{failing, failing}, false},
		{"partial success", Batch{failing, rename}, true},
		{"only unresolved", Batch{{Method: "unknown"}}, false},
		{"empty", Batch{}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(baseRecord())
			_, outcome := f.producer.Apply(context.Background(), c.batch)

			assert.Equal(t, c.persist, outcome.ModificationsCount > 0)
			assert.Equal(t, c.persist, f.store.Saves() == 1)
			assert.Equal(t, c.persist, outcome.Persisted)
		})
	}
}

func TestApply_PartialSuccessPersistsButReportsErrors(t *testing.T) {
	f := newFixture(baseRecord())

	_, outcome := f.producer.Apply(context.Background(), Batch{
		Op(engine.SetTournamentName, engine.TournamentNameParams{TournamentName: "Renamed"}),
		Op(engine.RemoveTournamentExtension, engine.ExtensionNameParams{Name: "missing"}),
	})

	assert.False(t, outcome.Success)
	assert.Equal(t, 1, outcome.ModificationsCount)
	require.Len(t, outcome.Errors, 1)
	assert.Equal(t, engine.CodeExtensionMissing, outcome.Errors[0].Code)
	assert.Equal(t, 1, f.store.Saves())
	assert.Equal(t, "Renamed", outcome.Record.TournamentName)
	assert.Equal(t, []NotificationKind{NotifyErrors}, f.notifier.Kinds())
}

func TestApply_LaterEntriesSeeEarlierOnes(t *testing.T) {
	f := newFixture(baseRecord())

	_, outcome := f.producer.Apply(context.Background(), Batch{
		Op(engine.AddParticipants, engine.AddParticipantsParams{Participants: []models.Participant{{ParticipantID: "p1"}}}),
		Op(engine.ModifySignInStatus, engine.SignInStatusParams{ParticipantIDs: []string{"p1"}, SignInState: models.SignedIn}),
	})

	require.Equal(t, 2, outcome.ModificationsCount)
	i, ok := outcome.Record.Participant("p1")
	require.True(t, ok)
	assert.Equal(t, models.SignedIn, outcome.Record.Participants[i].SignInStatus)
}

func TestApply_PersistFailureKeepsCommit(t *testing.T) {
	f := newFixture(baseRecord())
	f.store.SaveFunc = func(context.Context, string, *models.TournamentRecord) error {
		return errors.New("disk full")
	}

	record, outcome := f.producer.Apply(context.Background(), Batch{
		Op(engine.SetTournamentName, engine.TournamentNameParams{TournamentName: "Renamed"}),
	})

	assert.Equal(t, 1, outcome.ModificationsCount)
	assert.False(t, outcome.Persisted)
	assert.Equal(t, "disk full", outcome.PersistError)
	_, current := f.state.Current()
	assert.Same(t, record, current)
	assert.Equal(t, "Renamed", current.TournamentName)
	assert.Contains(t, f.notifier.Kinds(), NotifyPersistFailed)
}

func TestApply_SameBatchTwiceCountsOnce(t *testing.T) {
	f := newFixture(baseRecord())
	batch := Batch{Op(engine.SetTournamentName, engine.TournamentNameParams{TournamentName: "Renamed"})}

	_, first := f.producer.Apply(context.Background(), batch)
	_, second := f.producer.Apply(context.Background(), batch)

	assert.Equal(t, 1, first.ModificationsCount)
	assert.Equal(t, 1, second.ModificationsCount)
	assert.Equal(t, first.Record.TournamentName, second.Record.TournamentName)
	assert.Len(t, second.Results, 1)
}

func TestApply_SelectionChangedKeepsNewSelection(t *testing.T) {
	f := newFixture(baseRecord())
	f.store.SaveFunc = func(ctx context.Context, id string, record *models.TournamentRecord) error {
		f.state.Select(&models.TournamentRecord{TournamentID: "other"})
		return nil
	}

	_, outcome := f.producer.Apply(context.Background(), Batch{
		Op(engine.SetTournamentName, engine.TournamentNameParams{TournamentName: "Renamed"}),
	})

	assert.Equal(t, 1, outcome.ModificationsCount)
	id, current := f.state.Current()
	assert.Equal(t, "other", id)
	assert.Empty(t, current.TournamentName)
}
