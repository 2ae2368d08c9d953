// pkg/model/plan.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan 计费档位, 静态参考数据
type Plan struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"uniqueIndex;not null" json:"name"`
	Price      float64   `gorm:"type:decimal(10,2);default:0" json:"price"`
	MaxWatches int       `gorm:"not null" json:"max_watches"` // 该档位允许的最大监控数
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// PlanAssignment 工作区当前的计费档位分配
// 每个工作区恰好一行, 随工作区创建默认 Free, 状态变更原地覆盖, 不保留历史
type PlanAssignment struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID     string     `gorm:"type:uuid;uniqueIndex;not null" json:"workspace_id"`
	PlanID          string     `gorm:"type:uuid;not null" json:"plan_id"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date"` // 空表示不过期(Free 或待续期的付费档)
	EntitlementID   *string    `gorm:"uniqueIndex" json:"entitlement_id"`
	PurchaserID     *string    `json:"purchaser_id"`
	BillingPlatform *string    `json:"billing_platform"`
	// 计费事件上报的原始档位名, 留作审计, 映射表变更后仍可追溯
	OriginalPlanName *string   `json:"original_plan_name"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// 关联
	Plan Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

func (a *PlanAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
