package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/alerting"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
)

// SimulateOptions describe a synthetic alert.
type SimulateOptions struct {
	Kind      string
	Name      string
	AlertKind string
	Current   decimal.Decimal
	Projected decimal.Decimal
}

// SimulateAlert 通过给定的当前值/预测值模拟一次告警流程。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	note, err := a.simulatedNotification(opts, time.Now().UTC())
	if err != nil {
		return err
	}
	return notifier.Notify(ctx, note)
}

func (a *App) simulatedNotification(opts SimulateOptions, now time.Time) (alerting.Notification, error) {
	note := alerting.Notification{
		SeriesKind:    opts.Kind,
		SeriesName:    opts.Name,
		Kind:          opts.AlertKind,
		Period:        forecast.PeriodOf(now).Next(),
		Current:       opts.Current,
		Projected:     opts.Projected,
		Direction:     string(forecast.DirectionFlat),
		Channels:      a.Config.Alerting.Channels,
		CreatedAt:     now,
		AdditionalMsg: "simulated alert",
	}

	switch opts.AlertKind {
	case alerting.KindSwing:
		if opts.Current.IsZero() {
			return note, errors.New("--current must be non-zero for a swing alert")
		}
		note.ChangePct = opts.Projected.Sub(opts.Current).Div(opts.Current.Abs()).Mul(decimal.NewFromInt(100))
		note.ThresholdPct = decimal.NewFromFloat(a.Config.Alerting.SwingPct)
		switch {
		case note.ChangePct.GreaterThan(decimal.NewFromFloat(0.5)):
			note.Direction = string(forecast.DirectionRising)
		case note.ChangePct.LessThan(decimal.NewFromFloat(-0.5)):
			note.Direction = string(forecast.DirectionFalling)
		}
	case alerting.KindDegraded:
		note.Tier = forecast.TierNaiveTrend
	default:
		return note, fmt.Errorf("unknown alert kind %q", opts.AlertKind)
	}
	return note, nil
}
