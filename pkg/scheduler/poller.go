// pkg/scheduler/poller.go
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"StockRadar/pkg/alert"
	"StockRadar/pkg/config"
	"StockRadar/pkg/model"
	"StockRadar/pkg/pricesource"
)

// WorkspaceLister 工作区列表读取接口
type WorkspaceLister interface {
	ListAll() ([]*model.Workspace, error)
}

// SubscriptionStore 订阅存储接口, 调度器只需要读列表和写告警状态
type SubscriptionStore interface {
	ListByWorkspace(workspaceID string) ([]*model.Subscription, error)
	SetAlertState(workspaceID, instrumentID string, alerted bool, lastAlerted *time.Time) error
}

// ChannelNotifier 通知频道接口
type ChannelNotifier interface {
	EnsureAlertChannel(ctx context.Context, workspacePlatformID, channelName string) (handle string, created bool, err error)
	Send(ctx context.Context, channelHandle, message string) error
}

// AuditPublisher 告警审计流发布接口, 尽力而为
type AuditPublisher interface {
	Publish(subject string, data interface{}) error
}

// AlertNotice 发布到审计流的告警记录
type AlertNotice struct {
	WorkspaceID   string    `json:"workspace_id"`
	Ticker        string    `json:"ticker"`
	PercentChange float64   `json:"percent_change"`
	Threshold     float64   `json:"threshold"`
	Timestamp     time.Time `json:"timestamp"`
}

// Poller 轮询调度器
// 固定周期驱动所有工作区的订阅评估, 周期之间不重叠
type Poller struct {
	cfg           *config.Config
	workspaces    WorkspaceLister
	subscriptions SubscriptionStore
	quotes        pricesource.QuoteFetcher
	notifier      ChannelNotifier
	audit         AuditPublisher

	cron    *cron.Cron
	running atomic.Bool
	now     func() time.Time
}

// NewPoller 创建轮询调度器
// audit 可以为nil, 此时不发布审计事件
func NewPoller(
	cfg *config.Config,
	workspaces WorkspaceLister,
	subscriptions SubscriptionStore,
	quotes pricesource.QuoteFetcher,
	notifier ChannelNotifier,
	audit AuditPublisher,
) *Poller {
	return &Poller{
		cfg:           cfg,
		workspaces:    workspaces,
		subscriptions: subscriptions,
		quotes:        quotes,
		notifier:      notifier,
		audit:         audit,
		cron:          cron.New(),
		now:           time.Now,
	}
}

// Start 启动调度器
func (p *Poller) Start() error {
	spec := fmt.Sprintf("@every %s", p.cfg.Poll.Interval.Std())
	if _, err := p.cron.AddFunc(spec, p.onTick); err != nil {
		return fmt.Errorf("注册轮询任务失败: %w", err)
	}
	p.cron.Start()
	log.Printf("轮询调度器已启动, 周期 %s", p.cfg.Poll.Interval.Std())
	return nil
}

// Stop 停止调度器
func (p *Poller) Stop() {
	p.cron.Stop()
}

// onTick 定时触发入口, 上个周期未结束时本次直接跳过
func (p *Poller) onTick() {
	if !p.running.CompareAndSwap(false, true) {
		log.Println("上一轮询周期尚未结束, 跳过本次触发")
		return
	}
	defer p.running.Store(false)

	p.RunCycle(context.Background())
}

// RunCycle 执行一个完整的轮询周期
// 单个订阅或工作区的失败只记录日志, 不中断其他处理
func (p *Poller) RunCycle(ctx context.Context) {
	workspaces, err := p.workspaces.ListAll()
	if err != nil {
		log.Printf("查询工作区列表失败: %v", err)
		return
	}

	sem := make(chan struct{}, p.cfg.Poll.Concurrency)
	var wg sync.WaitGroup

	for _, workspace := range workspaces {
		wg.Add(1)
		sem <- struct{}{}
		go func(ws *model.Workspace) {
			defer wg.Done()
			defer func() { <-sem }()
			p.processWorkspace(ctx, ws)
		}(workspace)
	}

	wg.Wait()
}

// processWorkspace 处理单个工作区
// 同一工作区内订阅串行处理, 保证单条订阅的写入不会并发
func (p *Poller) processWorkspace(ctx context.Context, workspace *model.Workspace) {
	channelCtx, cancel := context.WithTimeout(ctx, p.cfg.Chat.Timeout.Std())
	handle, created, err := p.notifier.EnsureAlertChannel(channelCtx, workspace.PlatformID, p.cfg.Poll.AlertChannelName)
	cancel()
	if err != nil {
		log.Printf("工作区 %s 获取告警频道失败: %v", workspace.PlatformID, err)
		return
	}

	// 首次建频道时发一次性的激活公告
	if created {
		if err := p.sendMessage(ctx, handle, "📈 股票价格提醒已激活!"); err != nil {
			log.Printf("工作区 %s 发送激活公告失败: %v", workspace.PlatformID, err)
		}
		log.Printf("已为工作区 %s 创建告警频道 %s", workspace.PlatformID, p.cfg.Poll.AlertChannelName)
	}

	subscriptions, err := p.subscriptions.ListByWorkspace(workspace.ID)
	if err != nil {
		log.Printf("查询工作区 %s 订阅失败: %v", workspace.PlatformID, err)
		return
	}

	for _, subscription := range subscriptions {
		p.processSubscription(ctx, workspace, handle, subscription)
	}
}

// processSubscription 评估单条订阅并执行状态迁移
func (p *Poller) processSubscription(ctx context.Context, workspace *model.Workspace, channelHandle string, subscription *model.Subscription) {
	ticker := subscription.Instrument.Ticker

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.PriceSource.Timeout.Std())
	quote, err := p.quotes.FetchQuote(fetchCtx, ticker)
	cancel()
	if err != nil {
		// 行情源瞬时失败, 下个周期自然重试
		log.Printf("获取 %s 行情失败, 本周期跳过: %v", ticker, err)
		return
	}

	percentChange, err := alert.PercentChange(quote.LastPrice, quote.PrevClose)
	if err != nil {
		// 昨收价缺失属于数据问题, 同样跳过
		log.Printf("%s 行情数据异常, 本周期跳过: %v", ticker, err)
		return
	}

	switch alert.Evaluate(subscription.Threshold, subscription.Alerted, percentChange) {
	case alert.ActionNotify:
		p.notify(ctx, workspace, channelHandle, subscription, quote, percentChange)
	case alert.ActionReset:
		subscription.ResetAlert()
		p.setAlertState(workspace, subscription)
	}
}

// notify 发送告警并持久化已告警状态
// 先发通知后写状态: 进程在两步之间崩溃时宁可重复通知, 不可丢失通知
func (p *Poller) notify(ctx context.Context, workspace *model.Workspace, channelHandle string, subscription *model.Subscription, quote *model.Quote, percentChange float64) {
	ticker := subscription.Instrument.Ticker
	message := fmt.Sprintf("🚨 **%s** 价格异动: 涨跌幅 %.2f%%, 超过设定阈值 %.2f%% (最新价 %.2f)",
		ticker, percentChange, subscription.Threshold, quote.LastPrice)

	if err := p.sendMessage(ctx, channelHandle, message); err != nil {
		// 通知未送达就不标记, 下个周期重试
		log.Printf("工作区 %s 发送 %s 告警失败: %v", workspace.PlatformID, ticker, err)
		return
	}

	subscription.Trigger(p.now())
	p.setAlertState(workspace, subscription)

	if p.audit != nil {
		notice := AlertNotice{
			WorkspaceID:   workspace.PlatformID,
			Ticker:        ticker,
			PercentChange: percentChange,
			Threshold:     subscription.Threshold,
			Timestamp:     p.now(),
		}
		if err := p.audit.Publish("alerts.triggered", notice); err != nil {
			log.Printf("发布告警审计事件失败: %v", err)
		}
	}
}

// setAlertState 持久化告警状态, 失败立即重试一次
func (p *Poller) setAlertState(workspace *model.Workspace, subscription *model.Subscription) {
	err := p.subscriptions.SetAlertState(workspace.ID, subscription.InstrumentID, subscription.Alerted, subscription.LastAlerted)
	if err != nil {
		err = p.subscriptions.SetAlertState(workspace.ID, subscription.InstrumentID, subscription.Alerted, subscription.LastAlerted)
	}
	if err != nil {
		// 下个周期会重新评估同一订阅, 这里只留日志
		log.Printf("工作区 %s 订阅 %s 写入告警状态失败: %v",
			workspace.PlatformID, subscription.Instrument.Ticker, err)
	}
}

// sendMessage 带超时发送频道消息
func (p *Poller) sendMessage(ctx context.Context, channelHandle, message string) error {
	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.Chat.Timeout.Std())
	defer cancel()
	return p.notifier.Send(sendCtx, channelHandle, message)
}
