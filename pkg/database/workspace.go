// pkg/database/workspace.go
package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"StockRadar/pkg/model"
)

type WorkspaceDB struct {
	db *gorm.DB
}

// Ensure 工作区首次接触时入库, 并在同一事务内分配默认档位
// 已存在则直接返回, 可重复调用
func (w *WorkspaceDB) Ensure(platformID, name, freePlanName string) (*model.Workspace, error) {
	var workspace model.Workspace
	err := w.db.First(&workspace, "platform_id = ?", platformID).Error
	if err == nil {
		return &workspace, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询工作区失败: %w", err)
	}

	err = w.db.Transaction(func(tx *gorm.DB) error {
		var plan model.Plan
		if err := tx.First(&plan, "name = ?", freePlanName).Error; err != nil {
			return fmt.Errorf("查询默认档位失败: %w", err)
		}

		workspace = model.Workspace{PlatformID: platformID, Name: name}
		if err := tx.Create(&workspace).Error; err != nil {
			return fmt.Errorf("创建工作区失败: %w", err)
		}

		assignment := model.PlanAssignment{
			WorkspaceID: workspace.ID,
			PlanID:      plan.ID,
			StartDate:   time.Now(),
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return fmt.Errorf("创建档位分配失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &workspace, nil
}

// GetByPlatformID 按平台ID查询工作区
func (w *WorkspaceDB) GetByPlatformID(platformID string) (*model.Workspace, error) {
	var workspace model.Workspace
	err := w.db.First(&workspace, "platform_id = ?", platformID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询工作区失败: %w", err)
	}
	return &workspace, nil
}

// ListAll 列出所有工作区
func (w *WorkspaceDB) ListAll() ([]*model.Workspace, error) {
	var workspaces []*model.Workspace
	if err := w.db.Find(&workspaces).Error; err != nil {
		return nil, fmt.Errorf("查询工作区列表失败: %w", err)
	}
	return workspaces, nil
}
