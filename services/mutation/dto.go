package mutation

import (
	"encoding/json"

	"github.com/nvbf/tournament-desk/models"
	"github.com/nvbf/tournament-desk/repos/engine"
)

// Codes for failures that concern the whole batch rather than one entry.
const (
	CodeNoTournament      = "NO_TOURNAMENT_SELECTED"
	CodeEmptyBatch        = "EMPTY_BATCH"
	CodeDraftFailed       = "DRAFT_FAILED"
	CodeDispatcherStopped = "DISPATCHER_STOPPED"
	CodeDispatchCancelled = "DISPATCH_CANCELLED"
)

// Entry is one named operation and its parameters.
type Entry struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Batch runs in order against one draft.
type Batch []Entry

// Op builds an entry from typed params. Params that cannot be encoded are sent as null.
func Op(method engine.Method, params any) Entry {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = nil
	}
	return Entry{Method: string(method), Params: raw}
}

// Methods lists the method names of the batch in order.
func (b Batch) Methods() []string {
	methods := make([]string, len(b))
	for i, e := range b {
		methods[i] = e.Method
	}
	return methods
}

type OperationResult struct {
	Method     string            `json:"method"`
	Success    bool              `json:"success"`
	Error      *models.ErrorInfo `json:"error,omitempty"`
	Unresolved bool              `json:"unresolved,omitempty"`
}

// Outcome is what a batch produced. Success means no entry failed and the batch was not refused.
// A failed write to the local store is reported in PersistError and does not undo the commit.
type Outcome struct {
	Success            bool                     `json:"success"`
	ModificationsCount int                      `json:"modificationsCount"`
	Results            []OperationResult        `json:"results"`
	Errors             []models.ErrorInfo       `json:"errors"`
	Record             *models.TournamentRecord `json:"-"`
	Persisted          bool                     `json:"persisted"`
	PersistError       string                   `json:"persistError,omitempty"`
}

type Callback func(outcome Outcome)

type Request struct {
	Methods  Batch    `json:"methods"`
	Callback Callback `json:"-"`
}

func refused(code, message string) Outcome {
	return Outcome{
		Results: []OperationResult{},
		Errors:  []models.ErrorInfo{{Code: code, Message: message}},
	}
}
