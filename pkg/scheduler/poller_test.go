// pkg/scheduler/poller_test.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockRadar/pkg/config"
	"StockRadar/pkg/model"
)

// fakeWorkspaceLister 固定工作区列表
type fakeWorkspaceLister struct {
	workspaces []*model.Workspace
}

func (f *fakeWorkspaceLister) ListAll() ([]*model.Workspace, error) {
	return f.workspaces, nil
}

// fakeSubscriptionStore 内存订阅存储
// ListByWorkspace 返回副本, 写入只通过 SetAlertState 生效, 和真实存储行为一致
type fakeSubscriptionStore struct {
	mu         sync.Mutex
	subs       []*model.Subscription
	failWrites int
	writeCalls int
}

func (f *fakeSubscriptionStore) ListByWorkspace(workspaceID string) ([]*model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Subscription
	for _, s := range f.subs {
		if s.WorkspaceID == workspaceID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeSubscriptionStore) SetAlertState(workspaceID, instrumentID string, alerted bool, lastAlerted *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls++
	if f.failWrites > 0 {
		f.failWrites--
		return errors.New("数据库写入失败")
	}
	for _, s := range f.subs {
		if s.WorkspaceID == workspaceID && s.InstrumentID == instrumentID {
			s.Alerted = alerted
			s.LastAlerted = lastAlerted
		}
	}
	return nil
}

func (f *fakeSubscriptionStore) get(workspaceID, instrumentID string) *model.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.WorkspaceID == workspaceID && s.InstrumentID == instrumentID {
			return s
		}
	}
	return nil
}

// fakeQuoteFetcher 内存行情源, block 非空时阻塞到通道关闭
type fakeQuoteFetcher struct {
	mu      sync.Mutex
	quotes  map[string]*model.Quote
	errs    map[string]error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeQuoteFetcher) FetchQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	quote, ok := f.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("未知标的: %s", symbol)
	}
	return quote, nil
}

func (f *fakeQuoteFetcher) setPrice(symbol string, lastPrice, prevClose float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quotes == nil {
		f.quotes = make(map[string]*model.Quote)
	}
	f.quotes[symbol] = &model.Quote{Symbol: symbol, LastPrice: lastPrice, PrevClose: prevClose}
}

// fakeNotifier 内存通知频道, 每个工作区第一次Ensure视为新建
type fakeNotifier struct {
	mu      sync.Mutex
	known   map[string]bool
	sendErr error
	sent    []string
}

func (f *fakeNotifier) EnsureAlertChannel(ctx context.Context, workspacePlatformID, channelName string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.known == nil {
		f.known = make(map[string]bool)
	}
	created := !f.known[workspacePlatformID]
	f.known[workspacePlatformID] = true
	return "chan-" + workspacePlatformID, created, nil
}

func (f *fakeNotifier) Send(ctx context.Context, channelHandle, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeNotifier) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, msg := range f.sent {
		if strings.Contains(msg, "价格异动") {
			count++
		}
	}
	return count
}

func (f *fakeNotifier) announceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, msg := range f.sent {
		if strings.Contains(msg, "已激活") {
			count++
		}
	}
	return count
}

// fakeAuditPublisher 记录发布到审计流的事件
type fakeAuditPublisher struct {
	mu       sync.Mutex
	subjects []string
	notices  []AlertNotice
}

func (f *fakeAuditPublisher) Publish(subject string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	if notice, ok := data.(AlertNotice); ok {
		f.notices = append(f.notices, notice)
	}
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Poll.Interval = config.Duration(time.Minute)
	cfg.Poll.Concurrency = 2
	cfg.Poll.AlertChannelName = "stock-alerts"
	cfg.Chat.Timeout = config.Duration(time.Second)
	cfg.PriceSource.Timeout = config.Duration(time.Second)
	return cfg
}

func newTestSubscription(workspaceID, instrumentID, ticker string, threshold float64) *model.Subscription {
	return &model.Subscription{
		ID:           "sub-" + instrumentID,
		WorkspaceID:  workspaceID,
		InstrumentID: instrumentID,
		Threshold:    threshold,
		Instrument:   model.Instrument{ID: instrumentID, Ticker: ticker},
	}
}

// 阈值10%: 112触发告警, 115不重复, 105复位
func TestRunCycleEdgeTriggered(t *testing.T) {
	workspace := &model.Workspace{ID: "ws-1", PlatformID: "guild-1"}
	lister := &fakeWorkspaceLister{workspaces: []*model.Workspace{workspace}}
	store := &fakeSubscriptionStore{subs: []*model.Subscription{
		newTestSubscription("ws-1", "ins-aapl", "AAPL", 10),
	}}
	quotes := &fakeQuoteFetcher{}
	notifier := &fakeNotifier{}
	audit := &fakeAuditPublisher{}

	p := NewPoller(testConfig(), lister, store, quotes, notifier, audit)
	fixedNow := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixedNow }

	// 第一周期: 涨12%, 越过阈值, 应触发告警
	quotes.setPrice("AAPL", 112, 100)
	p.RunCycle(context.Background())

	assert.Equal(t, 1, notifier.alertCount())
	sub := store.get("ws-1", "ins-aapl")
	require.NotNil(t, sub)
	assert.True(t, sub.Alerted)
	require.NotNil(t, sub.LastAlerted)
	assert.Equal(t, fixedNow, *sub.LastAlerted)

	require.Len(t, audit.notices, 1)
	assert.Equal(t, "alerts.triggered", audit.subjects[0])
	assert.Equal(t, "guild-1", audit.notices[0].WorkspaceID)
	assert.Equal(t, "AAPL", audit.notices[0].Ticker)
	assert.Equal(t, 12.0, audit.notices[0].PercentChange)

	// 第二周期: 涨15%, 仍在阈值外但已告警, 不重复通知
	quotes.setPrice("AAPL", 115, 100)
	p.RunCycle(context.Background())

	assert.Equal(t, 1, notifier.alertCount())
	assert.True(t, store.get("ws-1", "ins-aapl").Alerted)

	// 第三周期: 涨5%, 回到阈值内, 复位且不通知
	quotes.setPrice("AAPL", 105, 100)
	p.RunCycle(context.Background())

	assert.Equal(t, 1, notifier.alertCount())
	sub = store.get("ws-1", "ins-aapl")
	assert.False(t, sub.Alerted)
	assert.Nil(t, sub.LastAlerted)

	// 第四周期: 再次越过阈值, 重新触发
	quotes.setPrice("AAPL", 89, 100)
	p.RunCycle(context.Background())
	assert.Equal(t, 2, notifier.alertCount())
}

// 频道首次创建时发一次激活公告, 之后不再发
func TestRunCycleAnnouncesOnChannelCreate(t *testing.T) {
	workspace := &model.Workspace{ID: "ws-1", PlatformID: "guild-1"}
	lister := &fakeWorkspaceLister{workspaces: []*model.Workspace{workspace}}
	store := &fakeSubscriptionStore{}
	quotes := &fakeQuoteFetcher{}
	notifier := &fakeNotifier{}

	p := NewPoller(testConfig(), lister, store, quotes, notifier, nil)

	p.RunCycle(context.Background())
	assert.Equal(t, 1, notifier.announceCount())

	p.RunCycle(context.Background())
	p.RunCycle(context.Background())
	assert.Equal(t, 1, notifier.announceCount())
}

// 单个标的行情失败不影响同工作区的其他订阅
func TestRunCycleFailureIsolation(t *testing.T) {
	workspace := &model.Workspace{ID: "ws-1", PlatformID: "guild-1"}
	lister := &fakeWorkspaceLister{workspaces: []*model.Workspace{workspace}}
	store := &fakeSubscriptionStore{subs: []*model.Subscription{
		newTestSubscription("ws-1", "ins-aapl", "AAPL", 10),
		newTestSubscription("ws-1", "ins-tsla", "TSLA", 10),
	}}
	quotes := &fakeQuoteFetcher{errs: map[string]error{"AAPL": errors.New("行情源超时")}}
	quotes.setPrice("TSLA", 120, 100)
	notifier := &fakeNotifier{}

	p := NewPoller(testConfig(), lister, store, quotes, notifier, nil)
	p.RunCycle(context.Background())

	assert.Equal(t, 1, notifier.alertCount())
	assert.False(t, store.get("ws-1", "ins-aapl").Alerted)
	assert.True(t, store.get("ws-1", "ins-tsla").Alerted)
}

// 昨收价为零时该订阅跳过, 状态不变
func TestRunCycleZeroPrevClose(t *testing.T) {
	workspace := &model.Workspace{ID: "ws-1", PlatformID: "guild-1"}
	lister := &fakeWorkspaceLister{workspaces: []*model.Workspace{workspace}}
	store := &fakeSubscriptionStore{subs: []*model.Subscription{
		newTestSubscription("ws-1", "ins-ipo", "NEWCO", 10),
	}}
	quotes := &fakeQuoteFetcher{}
	quotes.setPrice("NEWCO", 50, 0)
	notifier := &fakeNotifier{}

	p := NewPoller(testConfig(), lister, store, quotes, notifier, nil)
	p.RunCycle(context.Background())

	assert.Equal(t, 0, notifier.alertCount())
	assert.False(t, store.get("ws-1", "ins-ipo").Alerted)
}

// 通知发送失败时不标记已告警, 下个周期重试
func TestRunCycleSendFailureKeepsUnalerted(t *testing.T) {
	workspace := &model.Workspace{ID: "ws-1", PlatformID: "guild-1"}
	lister := &fakeWorkspaceLister{workspaces: []*model.Workspace{workspace}}
	store := &fakeSubscriptionStore{subs: []*model.Subscription{
		newTestSubscription("ws-1", "ins-aapl", "AAPL", 10),
	}}
	quotes := &fakeQuoteFetcher{}
	quotes.setPrice("AAPL", 112, 100)
	notifier := &fakeNotifier{sendErr: errors.New("平台不可用")}

	p := NewPoller(testConfig(), lister, store, quotes, notifier, nil)
	p.RunCycle(context.Background())

	assert.Equal(t, 0, notifier.alertCount())
	assert.False(t, store.get("ws-1", "ins-aapl").Alerted)

	// 平台恢复后同一条件重新触发
	notifier.mu.Lock()
	notifier.sendErr = nil
	notifier.mu.Unlock()
	p.RunCycle(context.Background())

	assert.Equal(t, 1, notifier.alertCount())
	assert.True(t, store.get("ws-1", "ins-aapl").Alerted)
}

// 状态写入失败立即重试一次
func TestSetAlertStateRetriesOnce(t *testing.T) {
	workspace := &model.Workspace{ID: "ws-1", PlatformID: "guild-1"}
	lister := &fakeWorkspaceLister{workspaces: []*model.Workspace{workspace}}
	store := &fakeSubscriptionStore{
		subs:       []*model.Subscription{newTestSubscription("ws-1", "ins-aapl", "AAPL", 10)},
		failWrites: 1,
	}
	quotes := &fakeQuoteFetcher{}
	quotes.setPrice("AAPL", 112, 100)
	notifier := &fakeNotifier{}

	p := NewPoller(testConfig(), lister, store, quotes, notifier, nil)
	p.RunCycle(context.Background())

	assert.Equal(t, 2, store.writeCalls)
	assert.True(t, store.get("ws-1", "ins-aapl").Alerted)
}

// 上个周期未结束时定时触发直接跳过, 不并发执行
func TestOnTickSkipsWhileRunning(t *testing.T) {
	workspace := &model.Workspace{ID: "ws-1", PlatformID: "guild-1"}
	lister := &fakeWorkspaceLister{workspaces: []*model.Workspace{workspace}}
	store := &fakeSubscriptionStore{subs: []*model.Subscription{
		newTestSubscription("ws-1", "ins-aapl", "AAPL", 10),
	}}
	quotes := &fakeQuoteFetcher{
		block:   make(chan struct{}),
		entered: make(chan struct{}, 8),
	}
	quotes.setPrice("AAPL", 105, 100)
	notifier := &fakeNotifier{}

	p := NewPoller(testConfig(), lister, store, quotes, notifier, nil)

	done := make(chan struct{})
	go func() {
		p.onTick()
		close(done)
	}()

	// 第一轮已进入行情拉取并阻塞
	<-quotes.entered

	// 此时再次触发应直接返回
	p.onTick()

	close(quotes.block)
	<-done

	assert.Equal(t, 0, len(quotes.entered))
}
