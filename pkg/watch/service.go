// pkg/watch/service.go
package watch

import (
	"errors"
	"fmt"
	"math"

	"StockRadar/pkg/config"
	"StockRadar/pkg/database"
	"StockRadar/pkg/model"
)

// ErrWatchLimit 工作区已达到当前档位允许的监控上限
var ErrWatchLimit = errors.New("已达到当前档位的监控数量上限")

// ErrUnknownTicker 标的代码不存在
var ErrUnknownTicker = errors.New("标的代码不存在")

// WatchResult watch 操作结果
type WatchResult int

const (
	WatchCreated          WatchResult = iota // 新建订阅
	WatchThresholdUpdated                    // 已有订阅, 更新阈值
	WatchUnchanged                           // 已有订阅且阈值相同
)

// UnwatchResult unwatch 操作结果
type UnwatchResult int

const (
	UnwatchRemoved  UnwatchResult = iota // 已移除
	UnwatchNotFound                      // 本来就没有订阅
)

// SubscriptionStore 订阅存储接口
type SubscriptionStore interface {
	Get(workspaceID, instrumentID string) (*model.Subscription, error)
	ListByWorkspace(workspaceID string) ([]*model.Subscription, error)
	CountByWorkspace(workspaceID string) (int64, error)
	Create(subscription *model.Subscription) error
	UpdateThreshold(workspaceID, instrumentID string, threshold float64) error
	Delete(workspaceID, instrumentID string) error
	DeleteAllByWorkspace(workspaceID string) ([]*model.Subscription, error)
}

// InstrumentStore 标的存储接口
type InstrumentStore interface {
	GetByTicker(ticker string) (*model.Instrument, error)
}

// WorkspaceStore 工作区存储接口
type WorkspaceStore interface {
	Ensure(platformID, name, freePlanName string) (*model.Workspace, error)
}

// AssignmentStore 档位分配读取接口, 用于监控上限检查
type AssignmentStore interface {
	GetByWorkspace(workspaceID string) (*model.PlanAssignment, error)
}

// Service watch/unwatch 操作服务
type Service struct {
	cfg           *config.Config
	workspaces    WorkspaceStore
	instruments   InstrumentStore
	subscriptions SubscriptionStore
	assignments   AssignmentStore
}

// NewService 创建watch服务
func NewService(
	cfg *config.Config,
	workspaces WorkspaceStore,
	instruments InstrumentStore,
	subscriptions SubscriptionStore,
	assignments AssignmentStore,
) *Service {
	return &Service{
		cfg:           cfg,
		workspaces:    workspaces,
		instruments:   instruments,
		subscriptions: subscriptions,
		assignments:   assignments,
	}
}

// Watch 订阅标的价格提醒
// 同一(工作区,标的)重复watch只原地更新阈值, 不产生第二条订阅
func (s *Service) Watch(workspacePlatformID, ticker string, threshold float64) (WatchResult, error) {
	threshold = math.Abs(threshold)

	workspace, err := s.workspaces.Ensure(workspacePlatformID, "", s.cfg.Billing.FreePlanName)
	if err != nil {
		return 0, err
	}

	instrument, err := s.instruments.GetByTicker(ticker)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, ErrUnknownTicker
		}
		return 0, err
	}

	existing, err := s.subscriptions.Get(workspace.ID, instrument.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return 0, err
	}

	// 已有订阅: 阈值相同无动作, 不同则原地更新
	if existing != nil {
		if existing.Threshold == threshold {
			return WatchUnchanged, nil
		}
		if err := s.subscriptions.UpdateThreshold(workspace.ID, instrument.ID, threshold); err != nil {
			return 0, err
		}
		return WatchThresholdUpdated, nil
	}

	// 新订阅前检查档位的监控上限
	if err := s.checkWatchLimit(workspace.ID); err != nil {
		return 0, err
	}

	subscription, err := model.NewSubscription(workspace.ID, instrument.ID, threshold)
	if err != nil {
		return 0, err
	}
	if err := s.subscriptions.Create(subscription); err != nil {
		return 0, err
	}
	return WatchCreated, nil
}

// Unwatch 取消订阅
func (s *Service) Unwatch(workspacePlatformID, ticker string) (UnwatchResult, error) {
	workspace, err := s.workspaces.Ensure(workspacePlatformID, "", s.cfg.Billing.FreePlanName)
	if err != nil {
		return 0, err
	}

	instrument, err := s.instruments.GetByTicker(ticker)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, ErrUnknownTicker
		}
		return 0, err
	}

	if err := s.subscriptions.Delete(workspace.ID, instrument.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return UnwatchNotFound, nil
		}
		return 0, err
	}
	return UnwatchRemoved, nil
}

// UnwatchAll 取消全部订阅, 返回被移除的标的代码
func (s *Service) UnwatchAll(workspacePlatformID string) ([]string, error) {
	workspace, err := s.workspaces.Ensure(workspacePlatformID, "", s.cfg.Billing.FreePlanName)
	if err != nil {
		return nil, err
	}

	removed, err := s.subscriptions.DeleteAllByWorkspace(workspace.ID)
	if err != nil {
		return nil, err
	}

	tickers := make([]string, 0, len(removed))
	for _, subscription := range removed {
		tickers = append(tickers, subscription.Instrument.Ticker)
	}
	return tickers, nil
}

// List 列出工作区全部订阅
func (s *Service) List(workspacePlatformID string) ([]*model.Subscription, error) {
	workspace, err := s.workspaces.Ensure(workspacePlatformID, "", s.cfg.Billing.FreePlanName)
	if err != nil {
		return nil, err
	}
	return s.subscriptions.ListByWorkspace(workspace.ID)
}

// checkWatchLimit 检查当前档位的监控数量上限
func (s *Service) checkWatchLimit(workspaceID string) error {
	assignment, err := s.assignments.GetByWorkspace(workspaceID)
	if err != nil {
		return fmt.Errorf("查询档位分配失败: %w", err)
	}

	count, err := s.subscriptions.CountByWorkspace(workspaceID)
	if err != nil {
		return err
	}

	if assignment.Plan.MaxWatches > 0 && count >= int64(assignment.Plan.MaxWatches) {
		return fmt.Errorf("%w: %s 档最多 %d 个", ErrWatchLimit, assignment.Plan.Name, assignment.Plan.MaxWatches)
	}
	return nil
}
