package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
)

// Alert kinds.
const (
	KindDegraded = "degraded"
	KindSwing    = "swing"
)

// Notification 封装告警上下文。
type Notification struct {
	SeriesKind    string
	SeriesName    string
	Kind          string
	Period        forecast.Period
	Tier          forecast.Tier
	Current       decimal.Decimal
	Projected     decimal.Decimal
	ChangePct     decimal.Decimal
	ThresholdPct  decimal.Decimal
	Direction     string
	Channels      []string
	CreatedAt     time.Time
	AdditionalMsg string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		if result.Description != "" {
			return fmt.Errorf("telegram 返回 ok=false: %s", result.Description)
		}
		return fmt.Errorf("telegram 返回 ok=false")
	}

	n.logger.Info().
		Str("series", note.SeriesKind+"/"+note.SeriesName).
		Str("kind", note.Kind).
		Str("period", note.Period.String()).
		Msg("告警已发送 (Telegram)")
	return nil
}

// RenderMessage formats a notification as plain text.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[tradecast %s alert]\n", note.Kind))
	builder.WriteString(fmt.Sprintf("Series: %s/%s\n", note.SeriesKind, note.SeriesName))
	builder.WriteString(fmt.Sprintf("Period: %s\n", note.Period))
	if note.Tier != "" {
		builder.WriteString(fmt.Sprintf("Tier: %s\n", note.Tier))
	}
	builder.WriteString(fmt.Sprintf("Current: %s\n", note.Current.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Projected: %s\n", note.Projected.StringFixed(2)))
	if note.Kind == KindSwing {
		builder.WriteString(fmt.Sprintf("Change: %s%% (threshold %s%%)\n", note.ChangePct.StringFixed(2), note.ThresholdPct.StringFixed(2)))
	}
	if note.Direction != "" {
		builder.WriteString(fmt.Sprintf("Direction: %s\n", note.Direction))
	}
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
