// pkg/alert/machine.go
package alert

import (
	"errors"
	"math"
)

// ErrNoReference 昨收价缺失或为零, 涨跌幅无定义
var ErrNoReference = errors.New("昨收价缺失, 无法计算涨跌幅")

// Action 单次评估的决策结果
type Action int

const (
	ActionNone   Action = iota // 无动作
	ActionNotify               // 越过阈值且未告警过: 发通知并标记
	ActionReset                // 回到阈值内且已告警: 清除标记, 不发通知
)

// PercentChange 计算涨跌幅(百分比), 保留两位小数
// 舍入规则: 四舍五入远离零(half away from zero), 对阈值边界行为全局一致
func PercentChange(lastPrice, prevClose float64) (float64, error) {
	if prevClose == 0 {
		return 0, ErrNoReference
	}
	pct := (lastPrice - prevClose) / prevClose * 100
	return round2(pct), nil
}

// round2 保留两位小数, half away from zero
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Evaluate 评估一条订阅是否需要状态迁移
// 告警是边沿触发: 持续越界只在第一次越界时通知一次
func Evaluate(threshold float64, alerted bool, percentChange float64) Action {
	crossed := math.Abs(percentChange) >= threshold

	switch {
	case crossed && !alerted:
		return ActionNotify
	case !crossed && alerted:
		return ActionReset
	default:
		return ActionNone
	}
}
