package engine

import (
	"encoding/json"
	"fmt"

	"github.com/nvbf/tournament-desk/models"
)

// Method names an operation the engine exposes.
type Method string

const (
	AddParticipants           Method = "addParticipants"
	DeleteParticipants        Method = "deleteParticipants"
	ModifySignInStatus        Method = "modifySignInStatus"
	SetTournamentName         Method = "setTournamentName"
	AddTournamentExtension    Method = "addTournamentExtension"
	RemoveTournamentExtension Method = "removeTournamentExtension"
	AddEvent                  Method = "addEvent"
	DeleteEvents              Method = "deleteEvents"
	AddEventEntries           Method = "addEventEntries"
	AddMatchUps               Method = "addMatchUps"
	ScheduleMatchUp           Method = "scheduleMatchUp"
	SetMatchUpStatus          Method = "setMatchUpStatus"
	PublishEvent              Method = "publishEvent"
	UnPublishEvent            Method = "unPublishEvent"
)

// Error codes returned in Result.Error.
const (
	CodeInvalidParams      = "INVALID_VALUES"
	CodeMissingValue       = "MISSING_VALUE"
	CodeParticipantExists  = "EXISTING_PARTICIPANT"
	CodeParticipantMissing = "PARTICIPANT_NOT_FOUND"
	CodeEventExists        = "EXISTING_EVENT"
	CodeEventMissing       = "EVENT_NOT_FOUND"
	CodeMatchUpExists      = "EXISTING_MATCHUP"
	CodeMatchUpMissing     = "MATCHUP_NOT_FOUND"
	CodeExtensionMissing   = "EXTENSION_NOT_FOUND"
	CodeInvalidScore       = "INVALID_SCORE"
	CodeMissingRecord      = "MISSING_TOURNAMENT_RECORD"
)

// Result is what one operation reports back.
type Result struct {
	Success bool              `json:"success"`
	Error   *models.ErrorInfo `json:"error,omitempty"`
}

// Operation applies params to the record in place. It must leave the record untouched when it fails.
type Operation func(record *models.TournamentRecord, params json.RawMessage) Result

// Engine holds the working record and the table of operations.
// It is not safe for concurrent use; one caller drives it at a time.
type Engine struct {
	record     *models.TournamentRecord
	operations map[Method]Operation
}

func New() *Engine {
	e := &Engine{operations: make(map[Method]Operation)}
	e.Register(AddParticipants, addParticipants)
	e.Register(DeleteParticipants, deleteParticipants)
	e.Register(ModifySignInStatus, modifySignInStatus)
	e.Register(SetTournamentName, setTournamentName)
	e.Register(AddTournamentExtension, addTournamentExtension)
	e.Register(RemoveTournamentExtension, removeTournamentExtension)
	e.Register(AddEvent, addEvent)
	e.Register(DeleteEvents, deleteEvents)
	e.Register(AddEventEntries, addEventEntries)
	e.Register(AddMatchUps, addMatchUps)
	e.Register(ScheduleMatchUp, scheduleMatchUp)
	e.Register(SetMatchUpStatus, setMatchUpStatus)
	e.Register(PublishEvent, publishEvent(true))
	e.Register(UnPublishEvent, publishEvent(false))
	return e
}

func (e *Engine) Register(method Method, op Operation) {
	e.operations[method] = op
}

// SetState makes record the working record. The engine mutates it directly.
func (e *Engine) SetState(record *models.TournamentRecord) {
	e.record = record
}

func (e *Engine) GetState() *models.TournamentRecord {
	return e.record
}

func (e *Engine) Has(method string) bool {
	_, ok := e.operations[Method(method)]
	return ok
}

func (e *Engine) Execute(method string, params json.RawMessage) Result {
	op, ok := e.operations[Method(method)]
	if !ok {
		return failure(method, CodeInvalidParams, fmt.Sprintf("unknown method %s", method))
	}
	if e.record == nil {
		return failure(method, CodeMissingRecord, "missing tournament record")
	}
	res := op(e.record, params)
	if res.Error != nil && res.Error.Method == "" {
		res.Error.Method = method
	}
	return res
}

func success() Result {
	return Result{Success: true}
}

func failure(method, code, message string) Result {
	return Result{Error: &models.ErrorInfo{Method: method, Code: code, Message: message}}
}

func decode(params json.RawMessage, dst any) *Result {
	if len(params) == 0 {
		res := failure("", CodeMissingValue, "missing params")
		return &res
	}
	if err := json.Unmarshal(params, dst); err != nil {
		res := failure("", CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		return &res
	}
	return nil
}
