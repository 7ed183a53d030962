package notify

import (
	"context"

	"reserva/internal/models"

	"github.com/rs/zerolog"
)

// LogSink записывает уведомления в лог. Транспорт по умолчанию, пока не
// подключена внешняя доставка.
type LogSink struct {
	logger *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, n models.Notification) error {
	s.logger.Info().
		Str("notification_id", n.ID).
		Str("user_id", n.UserID).
		Str("type", n.Type).
		Str("title", n.Title).
		Str("message", n.Message).
		Msg("notification delivered")
	return nil
}
