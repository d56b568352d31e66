package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/alerting"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/app"
)

var (
	simulateKind      string
	simulateName      string
	simulateAlertKind string
	simulateCurrent   float64
	simulateProjected float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次预测告警并发送到已配置通道",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateCurrent <= 0 || simulateProjected <= 0 {
			return errors.New("--current 与 --projected 必须大于 0")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Kind:      simulateKind,
			Name:      simulateName,
			AlertKind: simulateAlertKind,
			Current:   decimal.NewFromFloat(simulateCurrent),
			Projected: decimal.NewFromFloat(simulateProjected),
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateKind, "kind", "export", "序列类型")
	simulateCmd.Flags().StringVar(&simulateName, "name", "simulated", "序列名称")
	simulateCmd.Flags().StringVar(&simulateAlertKind, "alert", alerting.KindSwing, "告警类型: swing 或 degraded")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "当前实际值")
	simulateCmd.Flags().Float64Var(&simulateProjected, "projected", 0, "预测值")
}
