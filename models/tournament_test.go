package models

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTournamentRecord_Clone(t *testing.T) {
	record := &TournamentRecord{
		TournamentID:   "nevza-24",
		TournamentName: "Nevza Oddanesand",
		Participants:   []Participant{{ParticipantID: "p1", ParticipantName: "Ola Nordmann"}},
		Events:         []Event{{EventID: "e1", Entries: []string{"p1"}}},
		MatchUps:       []MatchUp{{MatchUpID: "m1", EventID: "e1", Sets: []SetScore{{Side1: 21, Side2: 18}}}},
		Extensions:     []Extension{{Name: "scoreboard", Value: json.RawMessage(`{"court":1}`)}},
		UpdatedAt:      1718700000000,
	}

	clone, err := record.Clone()
	require.NoError(t, err)
	if diff := cmp.Diff(record, clone); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}

	clone.Participants[0].SignInStatus = SignedIn
	clone.Events[0].Entries[0] = "p2"
	clone.MatchUps[0].Sets[0].Side1 = 0
	clone.Extensions[0].Value[2] = 'x'

	assert.Empty(t, record.Participants[0].SignInStatus)
	assert.Equal(t, "p1", record.Events[0].Entries[0])
	assert.Equal(t, 21, record.MatchUps[0].Sets[0].Side1)
	assert.JSONEq(t, `{"court":1}`, string(record.Extensions[0].Value))
}

func TestTournamentRecord_CloneNil(t *testing.T) {
	var record *TournamentRecord
	clone, err := record.Clone()
	assert.NoError(t, err)
	assert.Nil(t, clone)
}

func TestTournamentRecord_Lookups(t *testing.T) {
	record := &TournamentRecord{
		Participants: []Participant{{ParticipantID: "p1"}, {ParticipantID: "p2"}},
		Extensions:   []Extension{{Name: "scoreboard"}},
	}

	i, ok := record.Participant("p2")
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = record.Participant("p3")
	assert.False(t, ok)

	_, ok = record.Event("e1")
	assert.False(t, ok)

	i, ok = record.Extension("scoreboard")
	assert.True(t, ok)
	assert.Equal(t, 0, i)
}

func TestRole_IsValid(t *testing.T) {
	assert.True(t, RoleOfficial.IsValid())
	assert.False(t, Role("referee").IsValid())
	assert.Contains(t, PermissionsFor(RoleAdmin), PermissionIssueKeys)
	assert.NotContains(t, PermissionsFor(RoleOfficial), PermissionIssueKeys)
	assert.Equal(t, []Permission{PermissionView}, PermissionsFor(RoleUser))
}
