// Package notify is the fire-and-forget boundary to the notification
// collaborator. Delivery failures are logged and swallowed; they never
// abort the operation that requested the notification.
package notify

import (
	"context"

	"festival-scoring/internal/domain"

	"github.com/rs/zerolog"
)

type Notifier interface {
	// VolunteerNewRequest tells the assigned volunteer a recheck
	// request is waiting.
	VolunteerNewRequest(ctx context.Context, req *domain.RecheckRequest) error
	// ScoreFlagged tells admins a submission was flagged.
	ScoreFlagged(ctx context.Context, rec *domain.ScoreRecord) error
}

// LogNotifier is the default implementation: it records the intent so
// an out-of-band delivery pipeline (email) can be attached later.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) VolunteerNewRequest(ctx context.Context, req *domain.RecheckRequest) error {
	n.logger.Info().
		Str("request_id", req.ID).
		Str("volunteer", req.AssignedVolunteer).
		Str("event", req.EventName).
		Msg("notify: new recheck request for volunteer")
	return nil
}

func (n *LogNotifier) ScoreFlagged(ctx context.Context, rec *domain.ScoreRecord) error {
	n.logger.Info().
		Int64("score_id", rec.ID).
		Str("event_id", rec.EventID).
		Str("judge_id", rec.JudgeID).
		Str("severity", string(rec.AnomalySeverity)).
		Msg("notify: score flagged for admin review")
	return nil
}
