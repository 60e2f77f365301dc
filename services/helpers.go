package services

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Aksuiekbro/debetter-sub002/hub"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/Aksuiekbro/debetter-sub002/services")

// Settings are engine-wide defaults. Zero is honoured for
// DefaultJudgesPerMatch and PointsPerWin; see DefaultSettings.
type Settings struct {
	DefaultQuorum         int
	DefaultJudgesPerMatch int
	PointsPerWin          int
	// Now is the clock used for timestamps and deadlines.
	Now func() time.Time
}

func DefaultSettings() Settings {
	return Settings{DefaultQuorum: 1, DefaultJudgesPerMatch: 1, PointsPerWin: 1}
}

func (s Settings) withDefaults() Settings {
	if s.DefaultQuorum < 1 {
		s.DefaultQuorum = 1
	}
	if s.DefaultJudgesPerMatch < 0 {
		s.DefaultJudgesPerMatch = 0
	}
	if s.PointsPerWin < 0 {
		s.PointsPerWin = 0
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

func (s Settings) now() time.Time {
	return s.Now().UTC()
}

// Notifier publishes live events to subscribers of a room.
type Notifier interface {
	BroadcastToRoom(roomID string, message interface{})
}

func notify(n Notifier, tournamentID, eventType string, payload interface{}) {
	if n == nil {
		return
	}
	n.BroadcastToRoom(hub.TournamentRoom(tournamentID), hub.Message{
		Type:    eventType,
		Payload: payload,
		RoomID:  hub.TournamentRoom(tournamentID),
	})
}

func newID() string {
	return uuid.NewString()
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isValidTournamentTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.TournamentDraft:        {models.TournamentRegistration, models.TournamentCancelled},
		models.TournamentRegistration: {models.TournamentInProgress, models.TournamentCancelled},
		models.TournamentInProgress:   {models.TournamentCompleted, models.TournamentCancelled},
		models.TournamentCompleted:    {},
		models.TournamentCancelled:    {},
	}
	return slices.Contains(allowedTransitions[current], next)
}

func isValidPostingTransition(current, next models.PostingStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.PostingStatus][]models.PostingStatus{
		models.PostingScheduled:  {models.PostingInProgress, models.PostingCancelled},
		models.PostingInProgress: {models.PostingCompleted, models.PostingCancelled},
		models.PostingCompleted:  {},
		models.PostingCancelled:  {},
	}
	return slices.Contains(allowedTransitions[current], next)
}

// trimmed returns nil for nil or blank strings, otherwise the trimmed value.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func populatePostingMedia(p *models.Posting, uploader storage.FileUploader) {
	if p == nil || uploader == nil {
		return
	}
	if p.BallotKey != nil && *p.BallotKey != "" {
		url := uploader.GetPublicURL(*p.BallotKey)
		p.BallotURL = &url
	}
	if p.AudioKey != nil && *p.AudioKey != "" {
		url := uploader.GetPublicURL(*p.AudioKey)
		p.AudioURL = &url
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func logError(logger *slog.Logger, msg string, err error, attrs ...any) {
	if logger == nil {
		return
	}
	logger.Error(msg, append(attrs, slog.Any("error", err))...)
}
