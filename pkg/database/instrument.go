// pkg/database/instrument.go
package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"StockRadar/pkg/model"
)

type InstrumentDB struct {
	db *gorm.DB
}

// GetByTicker 按代码查询标的
func (i *InstrumentDB) GetByTicker(ticker string) (*model.Instrument, error) {
	var instrument model.Instrument
	err := i.db.First(&instrument, "ticker = ?", ticker).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询标的失败: %w", err)
	}
	return &instrument, nil
}

// GetByID 按ID查询标的
func (i *InstrumentDB) GetByID(id string) (*model.Instrument, error) {
	var instrument model.Instrument
	err := i.db.First(&instrument, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询标的失败: %w", err)
	}
	return &instrument, nil
}

// Upsert 按代码写入标的, 已存在则更新名称, 供种子数据导入使用
func (i *InstrumentDB) Upsert(instrument *model.Instrument) error {
	err := i.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(instrument).Error
	if err != nil {
		return fmt.Errorf("写入标的失败: %w", err)
	}
	return nil
}

// Count 统计标的数量
func (i *InstrumentDB) Count() (int64, error) {
	var count int64
	err := i.db.Model(&model.Instrument{}).Count(&count).Error
	return count, err
}
