package tournament

import (
	"sync"

	"github.com/nvbf/tournament-desk/models"
)

// State is the selected tournament and its committed record. The record is swapped whole and
// must be treated as read-only by whoever reads it; changes go through a cloned draft.
type State struct {
	mu           sync.RWMutex
	tournamentID string
	record       *models.TournamentRecord
}

func NewState() *State {
	return &State{}
}

func (s *State) Select(record *models.TournamentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tournamentID = record.TournamentID
	s.record = record
}

func (s *State) Current() (string, *models.TournamentRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tournamentID, s.record
}

// Replace swaps in record if it belongs to the selected tournament.
func (s *State) Replace(record *models.TournamentRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record == nil || s.tournamentID == "" || record.TournamentID != s.tournamentID {
		return false
	}
	s.record = record
	return true
}

func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tournamentID = ""
	s.record = nil
}
