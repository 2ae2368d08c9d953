// pkg/database/subscription.go
package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"StockRadar/pkg/model"
)

type SubscriptionDB struct {
	db *gorm.DB
}

// Get 查询某工作区对某标的的订阅
func (s *SubscriptionDB) Get(workspaceID, instrumentID string) (*model.Subscription, error) {
	var subscription model.Subscription
	err := s.db.First(&subscription, "workspace_id = ? AND instrument_id = ?", workspaceID, instrumentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询订阅失败: %w", err)
	}
	return &subscription, nil
}

// ListByWorkspace 列出工作区的全部订阅, 带标的信息
func (s *SubscriptionDB) ListByWorkspace(workspaceID string) ([]*model.Subscription, error) {
	var subscriptions []*model.Subscription
	err := s.db.Where("workspace_id = ?", workspaceID).
		Preload("Instrument").
		Order("created_at ASC").
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("查询工作区订阅失败: %w", err)
	}
	return subscriptions, nil
}

// CountByWorkspace 统计工作区的订阅数量
func (s *SubscriptionDB) CountByWorkspace(workspaceID string) (int64, error) {
	var count int64
	err := s.db.Model(&model.Subscription{}).
		Where("workspace_id = ?", workspaceID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计订阅数量失败: %w", err)
	}
	return count, nil
}

// Create 创建订阅
func (s *SubscriptionDB) Create(subscription *model.Subscription) error {
	if err := s.db.Create(subscription).Error; err != nil {
		return fmt.Errorf("创建订阅失败: %w", err)
	}
	return nil
}

// UpdateThreshold 更新阈值, 同时清除告警状态
func (s *SubscriptionDB) UpdateThreshold(workspaceID, instrumentID string, threshold float64) error {
	err := s.db.Model(&model.Subscription{}).
		Where("workspace_id = ? AND instrument_id = ?", workspaceID, instrumentID).
		Updates(map[string]interface{}{
			"threshold":    threshold,
			"alerted":      false,
			"last_alerted": nil,
			"updated_at":   time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("更新阈值失败: %w", err)
	}
	return nil
}

// SetAlertState 持久化告警状态, 对单行原子
func (s *SubscriptionDB) SetAlertState(workspaceID, instrumentID string, alerted bool, lastAlerted *time.Time) error {
	err := s.db.Model(&model.Subscription{}).
		Where("workspace_id = ? AND instrument_id = ?", workspaceID, instrumentID).
		Updates(map[string]interface{}{
			"alerted":      alerted,
			"last_alerted": lastAlerted,
			"updated_at":   time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("更新告警状态失败: %w", err)
	}
	return nil
}

// Delete 删除订阅
func (s *SubscriptionDB) Delete(workspaceID, instrumentID string) error {
	result := s.db.Where("workspace_id = ? AND instrument_id = ?", workspaceID, instrumentID).
		Delete(&model.Subscription{})
	if result.Error != nil {
		return fmt.Errorf("删除订阅失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllByWorkspace 删除工作区全部订阅, 返回被删除的订阅
func (s *SubscriptionDB) DeleteAllByWorkspace(workspaceID string) ([]*model.Subscription, error) {
	var subscriptions []*model.Subscription
	err := s.db.Where("workspace_id = ?", workspaceID).
		Preload("Instrument").
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("查询工作区订阅失败: %w", err)
	}

	if len(subscriptions) == 0 {
		return nil, nil
	}

	err = s.db.Where("workspace_id = ?", workspaceID).Delete(&model.Subscription{}).Error
	if err != nil {
		return nil, fmt.Errorf("删除工作区订阅失败: %w", err)
	}
	return subscriptions, nil
}
