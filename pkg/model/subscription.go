// pkg/model/subscription.go
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscription 工作区对某个标的的监控订阅
// 不变式: Alerted=true 时 LastAlerted 必须有值, Alerted=false 时必须为空,
// 该不变式由 Trigger/ResetAlert 维护, 不依赖存储层
type Subscription struct {
	ID           string     `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID  string     `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_instrument" json:"workspace_id"`
	InstrumentID string     `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_instrument" json:"instrument_id"`
	Threshold    float64    `gorm:"type:decimal(10,4);not null" json:"threshold"` // 涨跌幅阈值(百分比, 正数)
	Alerted      bool       `gorm:"default:false" json:"alerted"`
	LastAlerted  *time.Time `json:"last_alerted"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// 关联
	Workspace  Workspace  `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	Instrument Instrument `gorm:"foreignKey:InstrumentID" json:"instrument,omitempty"`
}

// NewSubscription 创建订阅, 阈值必须为正
func NewSubscription(workspaceID, instrumentID string, threshold float64) (*Subscription, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("阈值必须为正数: %.2f", threshold)
	}
	return &Subscription{
		WorkspaceID:  workspaceID,
		InstrumentID: instrumentID,
		Threshold:    threshold,
	}, nil
}

// Trigger 进入已告警状态
func (s *Subscription) Trigger(now time.Time) {
	s.Alerted = true
	s.LastAlerted = &now
}

// ResetAlert 回到未告警状态
func (s *Subscription) ResetAlert() {
	s.Alerted = false
	s.LastAlerted = nil
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
