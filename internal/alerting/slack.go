package alerting

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// SlackNotifier posts alerts to a Slack channel through chat.postMessage.
type SlackNotifier struct {
	client  *slack.Client
	channel string
	logger  zerolog.Logger
}

// NewSlackNotifier builds a Slack notifier. apiURL overrides the API root and may be empty.
func NewSlackNotifier(token, channel, apiURL string, logger zerolog.Logger) *SlackNotifier {
	opts := []slack.Option{}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(apiURL, "/")+"/"))
	}
	return &SlackNotifier{
		client:  slack.New(token, opts...),
		channel: channel,
		logger:  logger.With().Str("component", "alert_slack").Logger(),
	}
}

// Notify sends the alert as a header plus a mrkdwn section.
func (n *SlackNotifier) Notify(ctx context.Context, note Notification) error {
	text := RenderMessage(note)
	header := fmt.Sprintf("tradecast %s alert: %s/%s", note.Kind, note.SeriesKind, note.SeriesName)

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, header, false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "```"+text+"```", false, false), nil, nil),
	}

	_, ts, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}

	n.logger.Info().
		Str("series", note.SeriesKind+"/"+note.SeriesName).
		Str("kind", note.Kind).
		Str("ts", ts).
		Msg("alert sent (Slack)")
	return nil
}

var _ Notifier = (*SlackNotifier)(nil)
