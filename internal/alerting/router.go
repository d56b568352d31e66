package alerting

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/config"
)

// Router fans a notification out to the channels it names.
type Router struct {
	channels map[string]Notifier
	logger   zerolog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger zerolog.Logger) *Router {
	return &Router{
		channels: make(map[string]Notifier),
		logger:   logger.With().Str("component", "alert_router").Logger(),
	}
}

// FromConfig registers every enabled channel. It returns nil when no channel is enabled.
func FromConfig(cfg config.AlertingConfig, logger zerolog.Logger) *Router {
	router := NewRouter(logger)
	if cfg.Telegram.Enabled {
		router.Register("telegram", NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.Timeout, logger))
	}
	if cfg.Slack.Enabled {
		router.Register("slack", NewSlackNotifier(cfg.Slack.Token, cfg.Slack.Channel, cfg.Slack.APIURL, logger))
	}
	if router.Len() == 0 {
		return nil
	}
	return router
}

// Register binds a channel name to a notifier.
func (r *Router) Register(name string, n Notifier) {
	r.channels[name] = n
}

// Len returns the number of registered channels.
func (r *Router) Len() int {
	return len(r.channels)
}

// Notify delivers to every named channel that is registered. Unknown channels are
// skipped with a warning. Delivery errors are joined.
func (r *Router) Notify(ctx context.Context, note Notification) error {
	var errs []error
	delivered := 0
	for _, name := range note.Channels {
		n, ok := r.channels[name]
		if !ok {
			r.logger.Warn().Str("channel", name).Msg("alert channel not configured")
			continue
		}
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		delivered++
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if delivered == 0 {
		return errors.New("no configured channel matched the alert")
	}
	return nil
}

var _ Notifier = (*Router)(nil)
