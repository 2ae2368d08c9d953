// pkg/database/assignment.go
package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"StockRadar/pkg/model"
)

type AssignmentDB struct {
	db *gorm.DB
}

// GetByWorkspace 查询工作区当前的档位分配, 带档位信息
func (a *AssignmentDB) GetByWorkspace(workspaceID string) (*model.PlanAssignment, error) {
	var assignment model.PlanAssignment
	err := a.db.Preload("Plan").First(&assignment, "workspace_id = ?", workspaceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询档位分配失败: %w", err)
	}
	return &assignment, nil
}

// Save 整行覆盖工作区的档位分配, 对单行原子
// 每个工作区只有一行, 状态变更不保留历史
func (a *AssignmentDB) Save(assignment *model.PlanAssignment) error {
	err := a.db.Model(&model.PlanAssignment{}).
		Where("workspace_id = ?", assignment.WorkspaceID).
		Updates(map[string]interface{}{
			"plan_id":            assignment.PlanID,
			"start_date":         assignment.StartDate,
			"end_date":           assignment.EndDate,
			"entitlement_id":     assignment.EntitlementID,
			"purchaser_id":       assignment.PurchaserID,
			"billing_platform":   assignment.BillingPlatform,
			"original_plan_name": assignment.OriginalPlanName,
		}).Error
	if err != nil {
		return fmt.Errorf("覆盖档位分配失败: %w", err)
	}
	return nil
}
