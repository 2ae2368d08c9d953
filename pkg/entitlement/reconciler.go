// pkg/entitlement/reconciler.go
package entitlement

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"StockRadar/pkg/config"
	"StockRadar/pkg/model"
)

// WorkspaceStore 工作区存储接口
type WorkspaceStore interface {
	Ensure(platformID, name, freePlanName string) (*model.Workspace, error)
}

// PlanStore 档位存储接口
type PlanStore interface {
	GetByName(name string) (*model.Plan, error)
}

// AssignmentStore 档位分配存储接口, 读当前行 + 整行覆盖
type AssignmentStore interface {
	GetByWorkspace(workspaceID string) (*model.PlanAssignment, error)
	Save(assignment *model.PlanAssignment) error
}

// Reconciler 计费权益对账器
// 消费计费平台的生命周期事件, 把每个工作区的档位分配收敛到一致状态
// 事件可能乱序/重复到达: 同一事件重放任意次结果相同, 过期事件直接丢弃
type Reconciler struct {
	cfg         *config.Config
	workspaces  WorkspaceStore
	plans       PlanStore
	assignments AssignmentStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex // 按工作区串行化事件处理
	now   func() time.Time
}

// NewReconciler 创建对账器
func NewReconciler(cfg *config.Config, workspaces WorkspaceStore, plans PlanStore, assignments AssignmentStore) *Reconciler {
	return &Reconciler{
		cfg:         cfg,
		workspaces:  workspaces,
		plans:       plans,
		assignments: assignments,
		locks:       make(map[string]*sync.Mutex),
		now:         time.Now,
	}
}

// HandleEvent 处理一条计费事件
// 返回错误仅代表存储故障, 由上游重投; 未知SKU和过期事件确认后丢弃
func (r *Reconciler) HandleEvent(ctx context.Context, event model.BillingEvent) error {
	workspace, err := r.workspaces.Ensure(event.WorkspaceID, "", r.cfg.Billing.FreePlanName)
	if err != nil {
		return fmt.Errorf("处理计费事件前确认工作区失败: %w", err)
	}

	lock := r.workspaceLock(workspace.ID)
	lock.Lock()
	defer lock.Unlock()

	switch event.Kind {
	case model.BillingEventGranted:
		return r.handleGranted(workspace, event)
	case model.BillingEventUpdated:
		return r.handleUpdated(workspace, event)
	case model.BillingEventRevoked:
		return r.handleRevoked(workspace, event)
	default:
		log.Printf("未知计费事件类型 %q, 已丢弃", event.Kind)
		return nil
	}
}

// handleGranted 新购买: 整行覆盖档位分配
// 同一 entitlement_id 已生效时为重放, 直接无视
func (r *Reconciler) handleGranted(workspace *model.Workspace, event model.BillingEvent) error {
	planName, ok := r.cfg.Billing.SKUPlans[event.SKUID]
	if !ok {
		log.Printf("未知SKU %q, 计费事件已丢弃", event.SKUID)
		return nil
	}

	assignment, err := r.assignments.GetByWorkspace(workspace.ID)
	if err != nil {
		return fmt.Errorf("查询档位分配失败: %w", err)
	}

	// 幂等重放
	if assignment.EntitlementID != nil && *assignment.EntitlementID == event.EntitlementID {
		return nil
	}

	plan, err := r.plans.GetByName(planName)
	if err != nil {
		return fmt.Errorf("查询档位 %s 失败: %w", planName, err)
	}

	now := r.now()
	endDate := now.AddDate(0, 0, r.cfg.Billing.TermDays) // 暂定周期, 待续期事件修正
	entitlementID := event.EntitlementID
	purchaserID := event.PurchaserID
	platform := "billing"
	originalName := planName

	assignment.PlanID = plan.ID
	assignment.StartDate = now
	assignment.EndDate = &endDate
	assignment.EntitlementID = &entitlementID
	assignment.PurchaserID = &purchaserID
	assignment.BillingPlatform = &platform
	assignment.OriginalPlanName = &originalName

	if err := r.assignments.Save(assignment); err != nil {
		return fmt.Errorf("写入档位分配失败: %w", err)
	}

	log.Printf("工作区 %s 获得档位 %s (entitlement %s)", workspace.PlatformID, planName, event.EntitlementID)
	return nil
}

// handleUpdated 续期或换档
// still_active=false 等价于撤销; 档位不变为续期, 只顺延到期时间;
// 档位变更按新购买整行覆盖
func (r *Reconciler) handleUpdated(workspace *model.Workspace, event model.BillingEvent) error {
	if !event.StillActive {
		return r.handleRevoked(workspace, event)
	}

	planName, ok := r.cfg.Billing.SKUPlans[event.SKUID]
	if !ok {
		log.Printf("未知SKU %q, 计费事件已丢弃", event.SKUID)
		return nil
	}

	assignment, err := r.assignments.GetByWorkspace(workspace.ID)
	if err != nil {
		return fmt.Errorf("查询档位分配失败: %w", err)
	}

	if assignment.Plan.Name == planName {
		// 续期必须命中当前 entitlement, 否则是过期事件
		if assignment.EntitlementID == nil || *assignment.EntitlementID != event.EntitlementID {
			log.Printf("工作区 %s 续期事件 entitlement %s 与当前分配不符, 已丢弃",
				workspace.PlatformID, event.EntitlementID)
			return nil
		}

		endDate := r.now().AddDate(0, 0, r.cfg.Billing.TermDays)
		assignment.EndDate = &endDate
		if err := r.assignments.Save(assignment); err != nil {
			return fmt.Errorf("写入档位分配失败: %w", err)
		}
		log.Printf("工作区 %s 档位 %s 已续期至 %s", workspace.PlatformID, planName, endDate.Format(time.RFC3339))
		return nil
	}

	// 换档等价于新购买
	return r.handleGranted(workspace, event)
}

// handleRevoked 取消或到期: 回落到默认档位
// 必须命中当前 entitlement_id, 迟到的撤销不能覆盖更新的授权
func (r *Reconciler) handleRevoked(workspace *model.Workspace, event model.BillingEvent) error {
	assignment, err := r.assignments.GetByWorkspace(workspace.ID)
	if err != nil {
		return fmt.Errorf("查询档位分配失败: %w", err)
	}

	if assignment.EntitlementID == nil || *assignment.EntitlementID != event.EntitlementID {
		log.Printf("工作区 %s 撤销事件 entitlement %s 与当前分配不符, 已丢弃",
			workspace.PlatformID, event.EntitlementID)
		return nil
	}

	freePlan, err := r.plans.GetByName(r.cfg.Billing.FreePlanName)
	if err != nil {
		return fmt.Errorf("查询默认档位失败: %w", err)
	}

	assignment.PlanID = freePlan.ID
	assignment.StartDate = r.now()
	assignment.EndDate = nil
	assignment.EntitlementID = nil
	assignment.PurchaserID = nil
	assignment.BillingPlatform = nil
	assignment.OriginalPlanName = nil

	if err := r.assignments.Save(assignment); err != nil {
		return fmt.Errorf("写入档位分配失败: %w", err)
	}

	log.Printf("工作区 %s 权益 %s 已撤销, 回落到 %s", workspace.PlatformID, event.EntitlementID, r.cfg.Billing.FreePlanName)
	return nil
}

// workspaceLock 获取工作区级别的互斥锁
func (r *Reconciler) workspaceLock(workspaceID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[workspaceID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[workspaceID] = lock
	}
	return lock
}
