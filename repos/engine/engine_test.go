package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbf/tournament-desk/models"
)

func params(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func newEngine(record *models.TournamentRecord) *Engine {
	e := New()
	e.SetState(record)
	return e
}

func seededRecord() *models.TournamentRecord {
	return &models.TournamentRecord{
		TournamentID:   "nevza-24",
		TournamentName: "Nevza Oddanesand",
		Participants: []models.Participant{
			{ParticipantID: "p1", ParticipantName: "Ola Nordmann"},
			{ParticipantID: "p2", ParticipantName: "Kari Nordmann"},
		},
		Events: []models.Event{{EventID: "e1", EventName: "Open", Entries: []string{"p1", "p2"}}},
		MatchUps: []models.MatchUp{
			{MatchUpID: "m1", EventID: "e1", Sides: []string{"p1", "p2"}, MatchUpStatus: models.MatchUpToBePlayed},
		},
	}
}

func TestEngine_HasAndUnknownMethod(t *testing.T) {
	e := newEngine(seededRecord())

	assert.True(t, e.Has("addParticipants"))
	assert.False(t, e.Has("generateDrawDefinition"))

	res := e.Execute("generateDrawDefinition", nil)
	assert.False(t, res.Success)
}

func TestEngine_MissingRecord(t *testing.T) {
	e := New()
	res := e.Execute(string(SetTournamentName), params(t, TournamentNameParams{TournamentName: "x"}))

	require.NotNil(t, res.Error)
	assert.Equal(t, CodeMissingRecord, res.Error.Code)
}

func TestEngine_AddParticipants(t *testing.T) {
	record := seededRecord()
	e := newEngine(record)

	res := e.Execute(string(AddParticipants), params(t, AddParticipantsParams{
		Participants: []models.Participant{{ParticipantID: "p3", ParticipantName: "Per"}},
	}))
	require.True(t, res.Success)
	assert.Len(t, record.Participants, 3)

	res = e.Execute(string(AddParticipants), params(t, AddParticipantsParams{
		Participants: []models.Participant{{ParticipantID: "p4"}, {ParticipantID: "p1"}},
	}))
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeParticipantExists, res.Error.Code)
	assert.Equal(t, string(AddParticipants), res.Error.Method)
	assert.Len(t, record.Participants, 3, "a failed operation leaves the record untouched")
}

func TestEngine_ModifySignInStatus(t *testing.T) {
	record := seededRecord()
	e := newEngine(record)

	res := e.Execute(string(ModifySignInStatus), params(t, SignInStatusParams{
		ParticipantIDs: []string{},
		SignInState:    models.SignedOut,
	}))
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeMissingValue, res.Error.Code)
	assert.NotEmpty(t, res.Error.Message)

	res = e.Execute(string(ModifySignInStatus), params(t, SignInStatusParams{
		ParticipantIDs: []string{"p1", "unknown"},
		SignInState:    models.SignedIn,
	}))
	require.NotNil(t, res.Error)
	assert.Empty(t, record.Participants[0].SignInStatus)

	res = e.Execute(string(ModifySignInStatus), params(t, SignInStatusParams{
		ParticipantIDs: []string{"p1"},
		SignInState:    models.SignedIn,
	}))
	require.True(t, res.Success)
	assert.Equal(t, models.SignedIn, record.Participants[0].SignInStatus)
}

func TestEngine_Extensions(t *testing.T) {
	record := seededRecord()
	e := newEngine(record)

	ext := models.Extension{Name: "scoreboard", Value: json.RawMessage(`{"court":1}`)}
	require.True(t, e.Execute(string(AddTournamentExtension), params(t, ExtensionParams{Extension: ext})).Success)
	ext.Value = json.RawMessage(`{"court":2}`)
	require.True(t, e.Execute(string(AddTournamentExtension), params(t, ExtensionParams{Extension: ext})).Success)
	require.Len(t, record.Extensions, 1, "extensions are replaced by name")
	assert.JSONEq(t, `{"court":2}`, string(record.Extensions[0].Value))

	require.True(t, e.Execute(string(RemoveTournamentExtension), params(t, ExtensionNameParams{Name: "scoreboard"})).Success)
	assert.Empty(t, record.Extensions)
	assert.False(t, e.Execute(string(RemoveTournamentExtension), params(t, ExtensionNameParams{Name: "scoreboard"})).Success)
}

func TestEngine_EventsAndMatchUps(t *testing.T) {
	record := seededRecord()
	e := newEngine(record)

	require.True(t, e.Execute(string(AddEvent), params(t, AddEventParams{
		Event: models.Event{EventID: "e2", EventName: "Women"},
	})).Success)
	require.True(t, e.Execute(string(AddEventEntries), params(t, EventEntriesParams{
		EventID: "e2", ParticipantIDs: []string{"p1", "p2", "p1"},
	})).Success)
	assert.Equal(t, []string{"p1", "p2"}, record.Events[1].Entries)

	require.True(t, e.Execute(string(AddMatchUps), params(t, AddMatchUpsParams{
		MatchUps: []models.MatchUp{{MatchUpID: "m2", EventID: "e2", Sides: []string{"p1", "p2"}}},
	})).Success)
	assert.Equal(t, models.MatchUpToBePlayed, record.MatchUps[1].MatchUpStatus)

	res := e.Execute(string(AddMatchUps), params(t, AddMatchUpsParams{
		MatchUps: []models.MatchUp{{MatchUpID: "m3", EventID: "missing"}},
	}))
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeEventMissing, res.Error.Code)

	require.True(t, e.Execute(string(ScheduleMatchUp), params(t, ScheduleMatchUpParams{
		MatchUpID: "m2", Schedule: models.Schedule{ScheduledDate: "2024-06-18", CourtID: "c1"},
	})).Success)
	assert.Equal(t, "c1", record.MatchUps[1].Schedule.CourtID)

	require.True(t, e.Execute(string(PublishEvent), params(t, EventIDParams{EventID: "e2"})).Success)
	assert.True(t, record.Events[1].Published)
	require.True(t, e.Execute(string(UnPublishEvent), params(t, EventIDParams{EventID: "e2"})).Success)
	assert.False(t, record.Events[1].Published)

	require.True(t, e.Execute(string(DeleteEvents), params(t, EventIDsParams{EventIDs: []string{"e2"}})).Success)
	assert.Len(t, record.Events, 1)
	assert.Len(t, record.MatchUps, 1, "matchUps of a deleted event go with it")
}

func TestEngine_SetMatchUpStatus(t *testing.T) {
	record := seededRecord()
	e := newEngine(record)

	res := e.Execute(string(SetMatchUpStatus), params(t, MatchUpStatusParams{
		MatchUpID: "m1",
		Sets:      []models.SetScore{{Side1: 21, Side2: 20}},
	}))
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeInvalidScore, res.Error.Code)
	assert.Equal(t, models.MatchUpToBePlayed, record.MatchUps[0].MatchUpStatus)

	res = e.Execute(string(SetMatchUpStatus), params(t, MatchUpStatusParams{
		MatchUpID:     "m1",
		MatchUpStatus: models.MatchUpCompleted,
		Sets:          []models.SetScore{{Side1: 19, Side2: 21}, {Side1: 21, Side2: 15}, {Side1: 12, Side2: 15}},
	}))
	require.True(t, res.Success)
	assert.Equal(t, models.MatchUpCompleted, record.MatchUps[0].MatchUpStatus)
	assert.Equal(t, "p2", record.MatchUps[0].Winner)

	res = e.Execute(string(SetMatchUpStatus), params(t, MatchUpStatusParams{
		MatchUpID: "m1", MatchUpStatus: models.MatchUpToBePlayed,
	}))
	require.True(t, res.Success)
	assert.Empty(t, record.MatchUps[0].Winner)
	assert.Nil(t, record.MatchUps[0].Sets)
}

func TestEngine_DeleteParticipants(t *testing.T) {
	record := seededRecord()
	record.Participants = append(record.Participants, models.Participant{ParticipantID: "p3"})
	record.Events[0].Entries = append(record.Events[0].Entries, "p3")
	e := newEngine(record)

	res := e.Execute(string(DeleteParticipants), params(t, ParticipantIDsParams{ParticipantIDs: []string{"p1"}}))
	require.NotNil(t, res.Error, "placed participants cannot be deleted")

	require.True(t, e.Execute(string(DeleteParticipants), params(t, ParticipantIDsParams{ParticipantIDs: []string{"p3"}})).Success)
	assert.Len(t, record.Participants, 2)
	assert.Equal(t, []string{"p1", "p2"}, record.Events[0].Entries)
}

func TestEngine_InvalidParams(t *testing.T) {
	e := newEngine(seededRecord())

	res := e.Execute(string(SetTournamentName), json.RawMessage(`{"tournamentName": 7}`))
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeInvalidParams, res.Error.Code)

	res = e.Execute(string(SetTournamentName), nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeMissingValue, res.Error.Code)
}
