package resend

import "github.com/nvbf/tournament-desk/models"

// KeyMail is an authorization key relayed to an operator who is not next to the issuer.
type KeyMail struct {
	To           string      `json:"to"`
	Key          string      `json:"key"`
	TournamentID string      `json:"tournamentId"`
	Scope        models.Role `json:"scope"`
}
