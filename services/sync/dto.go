package sync

import "github.com/nvbf/tournament-desk/models"

const ActionTournamentMutated = "TOURNAMENT_MUTATED"

// MutatedPayload announces a committed record to the other sessions.
type MutatedPayload struct {
	TournamentID string                   `json:"tournamentId"`
	Methods      []string                 `json:"methods"`
	UpdatedAt    int64                    `json:"updatedAt"`
	Record       *models.TournamentRecord `json:"record"`
}

type Status struct {
	SessionID    string `json:"sessionId"`
	TournamentID string `json:"tournamentId,omitempty"`
	UpdatedAt    int64  `json:"updatedAt"`
	Applied      int64  `json:"applied"`
	Ignored      int64  `json:"ignored"`
}
