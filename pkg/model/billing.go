// pkg/model/billing.go
package model

// BillingEventKind 计费生命周期事件类型
type BillingEventKind string

const (
	BillingEventGranted BillingEventKind = "granted" // 新购买
	BillingEventUpdated BillingEventKind = "updated" // 续期或换档
	BillingEventRevoked BillingEventKind = "revoked" // 取消或到期
)

// BillingEvent 计费平台推送的生命周期事件
// 可能乱序、重复到达, 幂等性由 entitlement.Reconciler 保证
type BillingEvent struct {
	Kind          BillingEventKind `json:"kind"`
	WorkspaceID   string           `json:"workspace_id"` // 平台侧工作区ID
	PurchaserID   string           `json:"purchaser_id"`
	EntitlementID string           `json:"entitlement_id"`
	SKUID         string           `json:"sku_id"`
	StillActive   bool             `json:"still_active"` // 仅 Updated 事件有意义
}
