// pkg/database/plan.go
package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"StockRadar/pkg/model"
)

type PlanDB struct {
	db *gorm.DB
}

// GetByName 按名称查询档位
func (p *PlanDB) GetByName(name string) (*model.Plan, error) {
	var plan model.Plan
	err := p.db.First(&plan, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询档位失败: %w", err)
	}
	return &plan, nil
}

// GetByID 按ID查询档位
func (p *PlanDB) GetByID(id string) (*model.Plan, error) {
	var plan model.Plan
	err := p.db.First(&plan, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询档位失败: %w", err)
	}
	return &plan, nil
}

// Upsert 按名称写入档位, 已存在则更新价格与限额, 供种子数据导入使用
func (p *PlanDB) Upsert(plan *model.Plan) error {
	err := p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "max_watches", "updated_at"}),
	}).Create(plan).Error
	if err != nil {
		return fmt.Errorf("写入档位失败: %w", err)
	}
	return nil
}
