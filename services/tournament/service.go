package tournament

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/nvbf/tournament-desk/models"
	timehelper "github.com/nvbf/tournament-desk/pkg/timeHelper"
	"github.com/nvbf/tournament-desk/repos/store"
)

var (
	ErrNoTournament     = errors.New("no tournament selected")
	ErrInvalidRecord    = errors.New("invalid tournament record")
	ErrTournamentAbsent = errors.New("tournament not found")
)

type TournamentService struct {
	state *State
	store store.RecordStore
	log   *slog.Logger
}

func NewTournamentService(state *State, recordStore store.RecordStore, log *slog.Logger) *TournamentService {
	return &TournamentService{
		state: state,
		store: recordStore,
		log:   log,
	}
}

// Open loads a stored tournament and makes it the selected one.
func (s *TournamentService) Open(ctx context.Context, tournamentID string) (*models.TournamentRecord, error) {
	record, err := s.store.Load(ctx, tournamentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTournamentAbsent, tournamentID)
	}
	if err != nil {
		return nil, err
	}
	s.state.Select(record)
	s.log.InfoContext(ctx, "Tournament opened", slog.String("tournament_id", tournamentID))
	return record, nil
}

// Change swaps the selection to another stored tournament. The previous record is left as persisted.
func (s *TournamentService) Change(ctx context.Context, tournamentID string) (*models.TournamentRecord, error) {
	previous, _ := s.state.Current()
	record, err := s.Open(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "Tournament changed",
		slog.String("from", previous),
		slog.String("to", tournamentID),
	)
	return record, nil
}

// Import saves a record that came from outside and selects it.
func (s *TournamentService) Import(ctx context.Context, record *models.TournamentRecord) error {
	if record == nil || strings.TrimSpace(record.TournamentID) == "" {
		return fmt.Errorf("%w: missing tournamentId", ErrInvalidRecord)
	}
	if record.StartDate == "" {
		record.StartDate = timehelper.GetTodaysDateString()
	}
	if err := s.store.Save(ctx, record.TournamentID, record); err != nil {
		s.log.ErrorContext(ctx, "Failed to save imported tournament",
			slog.String("tournament_id", record.TournamentID),
			slog.Any("error", err),
		)
		return err
	}
	s.state.Select(record)
	s.log.InfoContext(ctx, "Tournament imported", slog.String("tournament_id", record.TournamentID))
	return nil
}

func (s *TournamentService) Clear(ctx context.Context) {
	tournamentID, _ := s.state.Current()
	s.state.Clear()
	s.log.InfoContext(ctx, "Tournament cleared", slog.String("tournament_id", tournamentID))
}

func (s *TournamentService) Current() (*models.TournamentRecord, error) {
	_, record := s.state.Current()
	if record == nil {
		return nil, ErrNoTournament
	}
	return record, nil
}

func (s *TournamentService) GetStats() (*Stats, error) {
	record, err := s.Current()
	if err != nil {
		return nil, err
	}
	return &Stats{
		TournamentID:   record.TournamentID,
		TournamentName: record.TournamentName,
		Participants:   len(record.Participants),
		SignedIn: lo.CountBy(record.Participants, func(p models.Participant) bool {
			return p.SignInStatus == models.SignedIn
		}),
		Events: len(record.Events),
		PublishedEvents: lo.CountBy(record.Events, func(e models.Event) bool {
			return e.Published
		}),
		MatchUps: len(record.MatchUps),
		ScheduledMatchUps: lo.CountBy(record.MatchUps, func(m models.MatchUp) bool {
			return m.Schedule.ScheduledDate != "" || m.Schedule.CourtID != ""
		}),
		CompletedMatchUps: lo.CountBy(record.MatchUps, func(m models.MatchUp) bool {
			return m.MatchUpStatus == models.MatchUpCompleted
		}),
	}, nil
}
