package models

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	SignedIn  = "SIGNED_IN"
	SignedOut = "SIGNED_OUT"

	MatchUpToBePlayed = "TO_BE_PLAYED"
	MatchUpCompleted  = "COMPLETED"
)

// TournamentRecord is the aggregate root. Everything a tournament owns is reached through it.
type TournamentRecord struct {
	TournamentID   string        `json:"tournamentId" firestore:"tournamentId"`
	TournamentName string        `json:"tournamentName" firestore:"tournamentName"`
	StartDate      string        `json:"startDate,omitempty" firestore:"startDate"`
	EndDate        string        `json:"endDate,omitempty" firestore:"endDate"`
	Participants   []Participant `json:"participants" firestore:"participants"`
	Events         []Event       `json:"events" firestore:"events"`
	MatchUps       []MatchUp     `json:"matchUps" firestore:"matchUps"`
	Extensions     []Extension   `json:"extensions" firestore:"extensions"`
	UpdatedAt      int64         `json:"updatedAt" firestore:"updatedAt"`
}

type Participant struct {
	ParticipantID   string `json:"participantId" firestore:"participantId"`
	ParticipantName string `json:"participantName" firestore:"participantName"`
	SignInStatus    string `json:"signInStatus,omitempty" firestore:"signInStatus"`
}

type Event struct {
	EventID   string   `json:"eventId" firestore:"eventId"`
	EventName string   `json:"eventName" firestore:"eventName"`
	EventType string   `json:"eventType,omitempty" firestore:"eventType"`
	Published bool     `json:"published" firestore:"published"`
	Entries   []string `json:"entries" firestore:"entries"`
}

type Schedule struct {
	ScheduledDate string `json:"scheduledDate,omitempty" firestore:"scheduledDate"`
	ScheduledTime string `json:"scheduledTime,omitempty" firestore:"scheduledTime"`
	CourtID       string `json:"courtId,omitempty" firestore:"courtId"`
}

// SetScore is the points each side scored in one set.
type SetScore struct {
	Side1 int `json:"side1" firestore:"side1"`
	Side2 int `json:"side2" firestore:"side2"`
}

type MatchUp struct {
	MatchUpID     string     `json:"matchUpId" firestore:"matchUpId"`
	EventID       string     `json:"eventId" firestore:"eventId"`
	Sides         []string   `json:"sides" firestore:"sides"`
	Schedule      Schedule   `json:"schedule" firestore:"schedule"`
	MatchUpStatus string     `json:"matchUpStatus" firestore:"matchUpStatus"`
	Sets          []SetScore `json:"sets,omitempty" firestore:"sets"`
	Winner        string     `json:"winner,omitempty" firestore:"winner"`
}

// Extension is a named, free-form JSON value attached to the tournament.
type Extension struct {
	Name  string          `json:"name" firestore:"name"`
	Value json.RawMessage `json:"value" firestore:"value"`
}

// Clone returns a deep copy of the record. The copy shares nothing with the receiver.
func (r *TournamentRecord) Clone() (*TournamentRecord, error) {
	if r == nil {
		return nil, nil
	}
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("clone tournament %s: %w", r.TournamentID, err)
	}
	var clone TournamentRecord
	if err := msgpack.Unmarshal(b, &clone); err != nil {
		return nil, fmt.Errorf("clone tournament %s: %w", r.TournamentID, err)
	}
	return &clone, nil
}

func (r *TournamentRecord) Participant(id string) (int, bool) {
	for i, p := range r.Participants {
		if p.ParticipantID == id {
			return i, true
		}
	}
	return -1, false
}

func (r *TournamentRecord) Event(id string) (int, bool) {
	for i, e := range r.Events {
		if e.EventID == id {
			return i, true
		}
	}
	return -1, false
}

func (r *TournamentRecord) MatchUp(id string) (int, bool) {
	for i, m := range r.MatchUps {
		if m.MatchUpID == id {
			return i, true
		}
	}
	return -1, false
}

func (r *TournamentRecord) Extension(name string) (int, bool) {
	for i, e := range r.Extensions {
		if e.Name == name {
			return i, true
		}
	}
	return -1, false
}

// ErrorInfo describes why a single operation failed.
type ErrorInfo struct {
	Method  string `json:"method,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
