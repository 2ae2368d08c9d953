// pkg/alert/machine_test.go
package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name      string
		lastPrice float64
		prevClose float64
		want      float64
	}{
		{name: "上涨12%", lastPrice: 112, prevClose: 100, want: 12.0},
		{name: "上涨15%", lastPrice: 115, prevClose: 100, want: 15.0},
		{name: "上涨5%", lastPrice: 105, prevClose: 100, want: 5.0},
		{name: "下跌", lastPrice: 88, prevClose: 100, want: -12.0},
		{name: "无变化", lastPrice: 100, prevClose: 100, want: 0.0},
		{name: "保留两位小数", lastPrice: 100.567, prevClose: 100, want: 0.57},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PercentChange(tt.lastPrice, tt.prevClose)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPercentChangeNoReference(t *testing.T) {
	// 昨收价为零时涨跌幅无定义, 不允许除零
	_, err := PercentChange(100, 0)
	require.ErrorIs(t, err, ErrNoReference)
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	// 舍入规则: 恰好一半时远离零
	assert.Equal(t, 0.13, round2(0.125))
	assert.Equal(t, -0.13, round2(-0.125))
	assert.Equal(t, 10.0, round2(10.0))
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name          string
		threshold     float64
		alerted       bool
		percentChange float64
		want          Action
	}{
		{name: "越过阈值且未告警", threshold: 10, alerted: false, percentChange: 12, want: ActionNotify},
		{name: "下跌越过阈值", threshold: 10, alerted: false, percentChange: -12, want: ActionNotify},
		{name: "恰好等于阈值", threshold: 10, alerted: false, percentChange: 10, want: ActionNotify},
		{name: "越过阈值但已告警", threshold: 10, alerted: true, percentChange: 15, want: ActionNone},
		{name: "回到阈值内且已告警", threshold: 10, alerted: true, percentChange: 5, want: ActionReset},
		{name: "阈值内且未告警", threshold: 10, alerted: false, percentChange: 5, want: ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.threshold, tt.alerted, tt.percentChange)
			assert.Equal(t, tt.want, got)
		})
	}
}

// 阈值10%, 昨收100: 112触发 -> 115不重复 -> 105复位
func TestEvaluateScenario(t *testing.T) {
	threshold := 10.0
	alerted := false

	pct, err := PercentChange(112, 100)
	require.NoError(t, err)
	require.Equal(t, 12.0, pct)
	require.Equal(t, ActionNotify, Evaluate(threshold, alerted, pct))
	alerted = true

	pct, err = PercentChange(115, 100)
	require.NoError(t, err)
	require.Equal(t, 15.0, pct)
	require.Equal(t, ActionNone, Evaluate(threshold, alerted, pct))

	pct, err = PercentChange(105, 100)
	require.NoError(t, err)
	require.Equal(t, 5.0, pct)
	require.Equal(t, ActionReset, Evaluate(threshold, alerted, pct))
}
