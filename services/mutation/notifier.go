package mutation

import (
	"context"
	"log/slog"
)

type NotificationKind string

const (
	NotifyErrors          NotificationKind = "errors"
	NotifyNothingHappened NotificationKind = "nothing_happened"
	NotifyRefused         NotificationKind = "refused"
	NotifyPersistFailed   NotificationKind = "persist_failed"
)

// Notification is the aggregated signal shown to the operator. It carries a count, not per-field detail.
type Notification struct {
	Kind         NotificationKind `json:"kind"`
	TournamentID string           `json:"tournamentId,omitempty"`
	Count        int              `json:"count"`
	Message      string           `json:"message,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) {
	level := slog.LevelInfo
	switch notification.Kind {
	case NotifyErrors, NotifyRefused:
		level = slog.LevelWarn
	case NotifyPersistFailed:
		level = slog.LevelError
	}
	n.log.Log(ctx, level, "Mutation notification",
		slog.String("kind", string(notification.Kind)),
		slog.String("tournament_id", notification.TournamentID),
		slog.Int("count", notification.Count),
		slog.String("message", notification.Message),
	)
}
