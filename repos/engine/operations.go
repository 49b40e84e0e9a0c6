package engine

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/nvbf/tournament-desk/models"
)

type AddParticipantsParams struct {
	Participants []models.Participant `json:"participants"`
}

type ParticipantIDsParams struct {
	ParticipantIDs []string `json:"participantIds"`
}

type SignInStatusParams struct {
	ParticipantIDs []string `json:"participantIds"`
	SignInState    string   `json:"signInState"`
}

type TournamentNameParams struct {
	TournamentName string `json:"tournamentName"`
}

type ExtensionParams struct {
	Extension models.Extension `json:"extension"`
}

type ExtensionNameParams struct {
	Name string `json:"name"`
}

type AddEventParams struct {
	Event models.Event `json:"event"`
}

type EventIDsParams struct {
	EventIDs []string `json:"eventIds"`
}

type EventIDParams struct {
	EventID string `json:"eventId"`
}

type EventEntriesParams struct {
	EventID        string   `json:"eventId"`
	ParticipantIDs []string `json:"participantIds"`
}

type AddMatchUpsParams struct {
	MatchUps []models.MatchUp `json:"matchUps"`
}

type ScheduleMatchUpParams struct {
	MatchUpID string          `json:"matchUpId"`
	Schedule  models.Schedule `json:"schedule"`
}

type MatchUpStatusParams struct {
	MatchUpID     string            `json:"matchUpId"`
	MatchUpStatus string            `json:"matchUpStatus"`
	Sets          []models.SetScore `json:"sets"`
}

func addParticipants(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params AddParticipantsParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	if len(params.Participants) == 0 {
		return failure("", CodeMissingValue, "missing participants")
	}
	seen := map[string]bool{}
	for _, p := range params.Participants {
		if strings.TrimSpace(p.ParticipantID) == "" {
			return failure("", CodeMissingValue, "participant without participantId")
		}
		if _, exists := record.Participant(p.ParticipantID); exists || seen[p.ParticipantID] {
			return failure("", CodeParticipantExists, fmt.Sprintf("participant %s already exists", p.ParticipantID))
		}
		seen[p.ParticipantID] = true
	}
	record.Participants = append(record.Participants, params.Participants...)
	return success()
}

func deleteParticipants(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params ParticipantIDsParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	if len(params.ParticipantIDs) == 0 {
		return failure("", CodeMissingValue, "missing participantIds")
	}
	for _, id := range params.ParticipantIDs {
		if _, ok := record.Participant(id); !ok {
			return failure("", CodeParticipantMissing, fmt.Sprintf("participant %s not found", id))
		}
	}
	for _, m := range record.MatchUps {
		for _, side := range m.Sides {
			if slices.Contains(params.ParticipantIDs, side) {
				return failure("", CodeInvalidParams, fmt.Sprintf("participant %s is placed in matchUp %s", side, m.MatchUpID))
			}
		}
	}
	record.Participants = slices.DeleteFunc(record.Participants, func(p models.Participant) bool {
		return slices.Contains(params.ParticipantIDs, p.ParticipantID)
	})
	for i := range record.Events {
		record.Events[i].Entries = slices.DeleteFunc(record.Events[i].Entries, func(id string) bool {
			return slices.Contains(params.ParticipantIDs, id)
		})
	}
	return success()
}

func modifySignInStatus(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params SignInStatusParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	if len(params.ParticipantIDs) == 0 {
		return failure("", CodeMissingValue, "missing participantIds")
	}
	if params.SignInState != models.SignedIn && params.SignInState != models.SignedOut {
		return failure("", CodeInvalidParams, fmt.Sprintf("invalid signInState %q", params.SignInState))
	}
	indexes := make([]int, 0, len(params.ParticipantIDs))
	for _, id := range params.ParticipantIDs {
		i, ok := record.Participant(id)
		if !ok {
			return failure("", CodeParticipantMissing, fmt.Sprintf("participant %s not found", id))
		}
		indexes = append(indexes, i)
	}
	for _, i := range indexes {
		record.Participants[i].SignInStatus = params.SignInState
	}
	return success()
}

func setTournamentName(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params TournamentNameParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	if strings.TrimSpace(params.TournamentName) == "" {
		return failure("", CodeMissingValue, "missing tournamentName")
	}
	record.TournamentName = params.TournamentName
	return success()
}

func addTournamentExtension(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params ExtensionParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	if params.Extension.Name == "" {
		return failure("", CodeMissingValue, "missing extension name")
	}
	if i, ok := record.Extension(params.Extension.Name); ok {
		record.Extensions[i] = params.Extension
		return success()
	}
	record.Extensions = append(record.Extensions, params.Extension)
	return success()
}

func removeTournamentExtension(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params ExtensionNameParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	i, ok := record.Extension(params.Name)
	if !ok {
		return failure("", CodeExtensionMissing, fmt.Sprintf("extension %q not found", params.Name))
	}
	record.Extensions = slices.Delete(record.Extensions, i, i+1)
	return success()
}

func addEvent(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params AddEventParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	if params.Event.EventID == "" {
		return failure("", CodeMissingValue, "missing eventId")
	}
	if _, exists := record.Event(params.Event.EventID); exists {
		return failure("", CodeEventExists, fmt.Sprintf("event %s already exists", params.Event.EventID))
	}
	for _, id := range params.Event.Entries {
		if _, ok := record.Participant(id); !ok {
			return failure("", CodeParticipantMissing, fmt.Sprintf("participant %s not found", id))
		}
	}
	record.Events = append(record.Events, params.Event)
	return success()
}

func deleteEvents(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params EventIDsParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	if len(params.EventIDs) == 0 {
		return failure("", CodeMissingValue, "missing eventIds")
	}
	for _, id := range params.EventIDs {
		if _, ok := record.Event(id); !ok {
			return failure("", CodeEventMissing, fmt.Sprintf("event %s not found", id))
		}
	}
	record.Events = slices.DeleteFunc(record.Events, func(e models.Event) bool {
		return slices.Contains(params.EventIDs, e.EventID)
	})
	record.MatchUps = slices.DeleteFunc(record.MatchUps, func(m models.MatchUp) bool {
		return slices.Contains(params.EventIDs, m.EventID)
	})
	return success()
}

func addEventEntries(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params EventEntriesParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	if len(params.ParticipantIDs) == 0 {
		return failure("", CodeMissingValue, "missing participantIds")
	}
	ei, ok := record.Event(params.EventID)
	if !ok {
		return failure("", CodeEventMissing, fmt.Sprintf("event %s not found", params.EventID))
	}
	for _, id := range params.ParticipantIDs {
		if _, ok := record.Participant(id); !ok {
			return failure("", CodeParticipantMissing, fmt.Sprintf("participant %s not found", id))
		}
	}
	event := &record.Events[ei]
	for _, id := range params.ParticipantIDs {
		if !slices.Contains(event.Entries, id) {
			event.Entries = append(event.Entries, id)
		}
	}
	return success()
}

func addMatchUps(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params AddMatchUpsParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	if len(params.MatchUps) == 0 {
		return failure("", CodeMissingValue, "missing matchUps")
	}
	seen := map[string]bool{}
	for _, m := range params.MatchUps {
		if m.MatchUpID == "" {
			return failure("", CodeMissingValue, "matchUp without matchUpId")
		}
		if _, exists := record.MatchUp(m.MatchUpID); exists || seen[m.MatchUpID] {
			return failure("", CodeMatchUpExists, fmt.Sprintf("matchUp %s already exists", m.MatchUpID))
		}
		if _, ok := record.Event(m.EventID); !ok {
			return failure("", CodeEventMissing, fmt.Sprintf("event %s not found", m.EventID))
		}
		for _, side := range m.Sides {
			if _, ok := record.Participant(side); !ok {
				return failure("", CodeParticipantMissing, fmt.Sprintf("participant %s not found", side))
			}
		}
		seen[m.MatchUpID] = true
	}
	for _, m := range params.MatchUps {
		if m.MatchUpStatus == "" {
			m.MatchUpStatus = models.MatchUpToBePlayed
		}
		record.MatchUps = append(record.MatchUps, m)
	}
	return success()
}

func scheduleMatchUp(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params ScheduleMatchUpParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	i, ok := record.MatchUp(params.MatchUpID)
	if !ok {
		return failure("", CodeMatchUpMissing, fmt.Sprintf("matchUp %s not found", params.MatchUpID))
	}
	record.MatchUps[i].Schedule = params.Schedule
	return success()
}

func setMatchUpStatus(record *models.TournamentRecord, raw json.RawMessage) Result {
	var params MatchUpStatusParams
	if res := decode(raw, &params); res != nil {
		return *res
	}
	i, ok := record.MatchUp(params.MatchUpID)
	if !ok {
		return failure("", CodeMatchUpMissing, fmt.Sprintf("matchUp %s not found", params.MatchUpID))
	}
	matchUp := &record.MatchUps[i]

	switch params.MatchUpStatus {
	case models.MatchUpToBePlayed:
		matchUp.MatchUpStatus = models.MatchUpToBePlayed
		matchUp.Sets = nil
		matchUp.Winner = ""
		return success()
	case models.MatchUpCompleted, "":
		result := tallySets(params.Sets)
		if !validateScore(result) {
			return failure("", CodeInvalidScore, fmt.Sprintf("invalid score for matchUp %s", params.MatchUpID))
		}
		if len(matchUp.Sides) != 2 {
			return failure("", CodeInvalidParams, fmt.Sprintf("matchUp %s has no two sides", params.MatchUpID))
		}
		matchUp.MatchUpStatus = models.MatchUpCompleted
		matchUp.Sets = slices.Clone(params.Sets)
		if result.Result.Side1 > result.Result.Side2 {
			matchUp.Winner = matchUp.Sides[0]
		} else {
			matchUp.Winner = matchUp.Sides[1]
		}
		return success()
	default:
		return failure("", CodeInvalidParams, fmt.Sprintf("invalid matchUpStatus %q", params.MatchUpStatus))
	}
}

func publishEvent(published bool) Operation {
	return func(record *models.TournamentRecord, raw json.RawMessage) Result {
		var params EventIDParams
		if res := decode(raw, &params); res != nil {
			return *res
		}
		i, ok := record.Event(params.EventID)
		if !ok {
			return failure("", CodeEventMissing, fmt.Sprintf("event %s not found", params.EventID))
		}
		record.Events[i].Published = published
		return success()
	}
}
