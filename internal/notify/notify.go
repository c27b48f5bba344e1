// Package notify fans a rendered report out to every configured channel.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
	"github.com/JakeFAU/gazette-watch/internal/metrics"
)

// Channel is a named notifier.
type Channel struct {
	Name     string
	Notifier gazette.Notifier
}

// Multi delivers to each channel in order. A failing channel does not stop
// the others; the failures are joined into the returned error.
type Multi struct {
	channels []Channel
	logger   *zap.Logger
}

// NewMulti creates a fan-out notifier.
func NewMulti(logger *zap.Logger, channels ...Channel) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{channels: channels, logger: logger}
}

// Len returns the number of channels.
func (m *Multi) Len() int { return len(m.channels) }

// Notify implements gazette.Notifier.
func (m *Multi) Notify(ctx context.Context, msg gazette.Message) error {
	var errs []error
	for _, ch := range m.channels {
		err := ch.Notifier.Notify(ctx, msg)
		switch {
		case errors.Is(err, ErrSkipped):
			m.logger.Warn("notification skipped", zap.String("channel", ch.Name), zap.Error(err))
			metrics.ObserveNotification(ch.Name, "skipped")
		case err != nil:
			m.logger.Error("notification failed", zap.String("channel", ch.Name), zap.Error(err))
			metrics.ObserveNotification(ch.Name, "failed")
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
		default:
			m.logger.Info("notification sent", zap.String("channel", ch.Name))
			metrics.ObserveNotification(ch.Name, "sent")
		}
	}
	return errors.Join(errs...)
}

// ErrSkipped marks a channel that chose not to deliver, e.g. missing credentials.
var ErrSkipped = errors.New("notification skipped")
