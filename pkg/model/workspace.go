// pkg/model/workspace.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Workspace 聊天平台上的工作区
// PlatformID 是平台侧的稳定标识，首次接触时入库，本服务不负责删除
type Workspace struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	PlatformID string    `gorm:"uniqueIndex;not null" json:"platform_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// 关联
	Subscriptions []Subscription  `gorm:"foreignKey:WorkspaceID" json:"subscriptions,omitempty"`
	Assignment    *PlanAssignment `gorm:"foreignKey:WorkspaceID" json:"assignment,omitempty"`
}

func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	return nil
}
