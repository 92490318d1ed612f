package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/dto"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/model"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/repository"
	pkgerrors "github.com/Sosbx/PlanidocsV4-sub010/pkg/errors"
)

// ── 换班市场模块业务错误 ──

var (
	ErrOfferNotFound               = errors.New("报价不存在或已下架")
	ErrOfferNotPending             = errors.New("报价已不可交互")
	ErrInvalidOperationCombination = errors.New("操作类型组合无效")
	ErrSelfInterest                = errors.New("不能报名自己的报价")
	ErrShiftNotOwned               = errors.New("排班表中不存在该班次")
	ErrOfferLimitReached           = errors.New("已达本周期挂单上限")
	ErrDuplicateOffer              = errors.New("该班次已有未解决的报价")
	// ErrConflictConfirmRequired 非错误而是确认门槛：检测到双重排班，
	// 需用户确认后带 override 重试
	ErrConflictConfirmRequired = errors.New("该时段已有排班，需确认后重试")
	// ErrStaleState 输掉并发竞争；刷新本地视图后重试是安全的
	ErrStaleState = errors.New("数据已过期，请刷新后重试")
)

// ExchangeService 换班市场（报价登记处）业务接口
//
// 所有变更操作要求 submission 阶段；每个操作是一个原子事务：
// 读当前状态 → 校验不变式 → 全部写入或整体回滚。
type ExchangeService interface {
	// CreateOffer 挂出报价
	CreateOffer(ctx context.Context, ownerID string, req *dto.CreateOfferRequest) (*dto.OfferResponse, error)
	// ToggleInterest 报名/撤销报名（对合操作：连续两次调用恢复原状）
	ToggleInterest(ctx context.Context, offerID, workerID string, override bool) (*dto.OfferResponse, error)
	// RetireOffer 下架报价；目标不存在时静默成功（幂等，可安全重复调用）
	RetireOffer(ctx context.Context, offerID, callerID string) error
	// ListOffers 展示契约排序：pending 在前，按日期升序；附带请求者视角的冲突标记
	ListOffers(ctx context.Context, viewerID string, req *dto.OfferListRequest) ([]dto.OfferResponse, error)
	GetOffer(ctx context.Context, offerID, viewerID string) (*dto.OfferResponse, error)
	// ResolveByDistribution 分发阶段的批量解决：每个报价至多一个赢家
	ResolveByDistribution(ctx context.Context, callerID string) (*dto.DistributionResultResponse, error)
	// ListHistory 换班历史（分页，按解决时间倒序）
	ListHistory(ctx context.Context, req *dto.HistoryListRequest) ([]dto.HistoryRecordResponse, int64, error)
	// ReconcileCycle 周期对账：上报超期提交窗口，清理跨周期残留报价
	ReconcileCycle(ctx context.Context) error
}

type exchangeService struct {
	repo     *repository.Repository
	conflict ConflictService
	notifier NotificationService
	logger   *zap.Logger
}

// NewExchangeService 创建 ExchangeService 实例
func NewExchangeService(
	repo *repository.Repository,
	conflict ConflictService,
	notifier NotificationService,
	logger *zap.Logger,
) ExchangeService {
	return &exchangeService{repo: repo, conflict: conflict, notifier: notifier, logger: logger}
}

// normalizeOperationTypes 校验并归一化操作类型集合
// 任意非空子集均合法（含 replacement 与 give/exchange 的组合）；去重并固定顺序
func normalizeOperationTypes(types []string) (model.StringArray, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("%w: 集合为空", ErrInvalidOperationCombination)
	}
	seen := make(map[string]bool, len(types))
	for _, t := range types {
		valid := false
		for _, known := range model.AllOperationTypes {
			if t == known {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("%w: 未知类型 %q", ErrInvalidOperationCombination, t)
		}
		seen[t] = true
	}
	// 固定顺序 give < exchange < replacement，保证集合表示唯一
	var result model.StringArray
	for _, known := range model.AllOperationTypes {
		if seen[known] {
			result = append(result, known)
		}
	}
	return result, nil
}

func parseShiftDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// ════════════════════════════════════════════════════════════
// CreateOffer — 挂出报价
// ════════════════════════════════════════════════════════════

func (s *exchangeService) CreateOffer(ctx context.Context, ownerID string, req *dto.CreateOfferRequest) (*dto.OfferResponse, error) {
	// 1. 操作类型组合校验（任何写入之前）
	opTypes, err := normalizeOperationTypes(req.OperationTypes)
	if err != nil {
		return nil, err
	}

	date, err := parseShiftDate(req.Shift.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: 日期格式无效", ErrInvalidOperationCombination)
	}

	var offer *model.ShiftOffer
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		// 2. 阶段门禁
		phase, err := txRepo.Phase.Get(ctx)
		if err != nil {
			return err
		}
		if !phase.IsTradingAllowed() {
			return ErrPhaseViolation
		}

		// 3. 挂单人必须实际持有该班次
		if _, err := txRepo.Assignment.GetByUserDatePeriod(ctx, ownerID, date, req.Shift.Period); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShiftNotOwned
			}
			return err
		}

		// 4. 挂单上限
		if phase.MaxOffersPerWorker > 0 {
			n, err := txRepo.Offer.CountByOwner(ctx, ownerID)
			if err != nil {
				return err
			}
			if n >= int64(phase.MaxOffersPerWorker) {
				return ErrOfferLimitReached
			}
		}

		// 5. 同一班次不允许重复挂单
		existing, err := txRepo.Offer.ListByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		for i := range existing {
			if existing[i].Date.Format("2006-01-02") == req.Shift.Date && existing[i].Period == req.Shift.Period {
				return ErrDuplicateOffer
			}
		}

		offer = &model.ShiftOffer{
			OwnerID:         ownerID,
			Date:            date,
			Period:          req.Shift.Period,
			ShiftType:       req.Shift.ShiftType,
			TimeSlot:        req.Shift.TimeSlot,
			OperationTypes:  opTypes,
			Status:          model.OfferStatusPending,
			InterestedUsers: model.StringArray{},
		}
		offer.CreatedBy = &ownerID
		return txRepo.Offer.Create(ctx, offer)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("报价已挂出",
		zap.String("offer_id", offer.OfferID),
		zap.String("owner_id", ownerID),
		zap.String("date", req.Shift.Date),
	)
	s.notifier.PublishStoreChange(ctx, ownerID)

	return s.toOfferResponse(ctx, offer, ""), nil
}

// ════════════════════════════════════════════════════════════
// ToggleInterest — 报名 / 撤销报名
// ════════════════════════════════════════════════════════════
//
// 对合操作：worker 已在报名集合中则移除（撤销永不被冲突拦截），
// 否则先过冲突检测再加入。移除不存在的报名是 no-op 而非错误。

func (s *exchangeService) ToggleInterest(ctx context.Context, offerID, workerID string, override bool) (*dto.OfferResponse, error) {
	var offer *model.ShiftOffer
	var added bool

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		offer, err = txRepo.Offer.GetByIDForUpdate(ctx, offerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOfferNotFound
			}
			return err
		}

		phase, err := txRepo.Phase.Get(ctx)
		if err != nil {
			return err
		}
		if !phase.IsTradingAllowed() {
			return ErrPhaseViolation
		}
		if offer.Status != model.OfferStatusPending {
			return ErrOfferNotPending
		}
		if offer.OwnerID == workerID {
			return ErrSelfInterest
		}

		if offer.InterestedUsers.Contains(workerID) {
			// 撤销报名：永不被冲突标记拦截
			remaining := make(model.StringArray, 0, len(offer.InterestedUsers))
			for _, uid := range offer.InterestedUsers {
				if uid != workerID {
					remaining = append(remaining, uid)
				}
			}
			offer.InterestedUsers = remaining
			if err := txRepo.Offer.DeleteInterest(ctx, offerID, workerID); err != nil {
				return err
			}
		} else {
			// 报名：先过冲突检测，检出冲突且未确认时拦截
			if phase.RequireConflictConfirm && !override {
				result, err := s.conflict.Check(ctx, workerID, offer.Date, offer.Period)
				if err != nil {
					return err
				}
				if result.HasConflict {
					return fmt.Errorf("%w: %s %s", ErrConflictConfirmRequired,
						result.Conflicting.Date, result.Conflicting.Period)
				}
			}
			offer.InterestedUsers = append(offer.InterestedUsers, workerID)
			if err := txRepo.Offer.CreateInterest(ctx, &model.OfferInterest{
				OfferID:  offerID,
				WorkerID: workerID,
			}); err != nil {
				return err
			}
			added = true
		}

		offer.UpdatedBy = &workerID
		return txRepo.Offer.Update(ctx, offer)
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrStaleState
		}
		return nil, err
	}

	if added {
		relatedType := "offer"
		s.notifier.Notify(ctx, offer.OwnerID, model.NotifyInterestReceived,
			"你的报价收到报名", fmt.Sprintf("%s %s 的班次有成员报名", offer.Shift().Date, offer.Period),
			&relatedType, &offer.OfferID)
	}
	s.notifier.PublishStoreChange(ctx, workerID, offer.OwnerID)

	return s.toOfferResponse(ctx, offer, workerID), nil
}

// ════════════════════════════════════════════════════════════
// RetireOffer — 下架报价
// ════════════════════════════════════════════════════════════
//
// 用于班次被独立改派等场景；幂等，目标缺失时静默成功。

func (s *exchangeService) RetireOffer(ctx context.Context, offerID, callerID string) error {
	var interested []string
	var pendingProposers []string
	var found bool

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		offer, err := txRepo.Offer.GetByIDForUpdate(ctx, offerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // 已下架，幂等
			}
			return err
		}
		found = true

		if offer.OwnerID != callerID {
			caller, err := txRepo.User.GetByID(ctx, callerID)
			if err != nil || caller.Role != model.RoleAdmin {
				return ErrNotOfferOwner
			}
		}

		interested = append(interested, offer.InterestedUsers...)

		// 针对该报价的 pending 提案一并拒绝
		proposals, err := txRepo.Proposal.ListByOffer(ctx, offerID)
		if err != nil {
			return err
		}
		for i := range proposals {
			if proposals[i].Status == model.ProposalStatusPending {
				pendingProposers = append(pendingProposers, proposals[i].ProposerID)
			}
		}
		if err := txRepo.Proposal.RejectSiblings(ctx, offerID, ""); err != nil {
			return err
		}

		if err := txRepo.Offer.DeleteInterestsByOffer(ctx, offerID); err != nil {
			return err
		}
		return txRepo.Offer.Delete(ctx, offerID)
	})
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	relatedType := "offer"
	s.notifier.NotifyMany(ctx, interested, model.NotifyOfferRetired,
		"报价已下架", "你报名过的报价已被下架", &relatedType, &offerID)
	s.notifier.NotifyMany(ctx, pendingProposers, model.NotifyProposalRejected,
		"提案已拒绝", "目标报价已下架，提案自动拒绝", &relatedType, &offerID)
	return nil
}

// ════════════════════════════════════════════════════════════
// ListOffers / GetOffer — 读路径
// ════════════════════════════════════════════════════════════

func (s *exchangeService) ListOffers(ctx context.Context, viewerID string, req *dto.OfferListRequest) ([]dto.OfferResponse, error) {
	var offers []model.ShiftOffer
	var err error

	switch {
	case req != nil && req.Mine:
		offers, err = s.repo.Offer.ListByOwner(ctx, viewerID)
	case req != nil && req.Interested:
		offers, err = s.repo.Offer.ListInterestedBy(ctx, viewerID)
	default:
		offers, err = s.repo.Offer.List(ctx)
	}
	if err != nil {
		s.logger.Error("查询报价列表失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.OfferResponse, 0, len(offers))
	for i := range offers {
		result = append(result, *s.toOfferResponse(ctx, &offers[i], viewerID))
	}
	return result, nil
}

func (s *exchangeService) GetOffer(ctx context.Context, offerID, viewerID string) (*dto.OfferResponse, error) {
	offer, err := s.repo.Offer.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return s.toOfferResponse(ctx, offer, viewerID), nil
}

// ════════════════════════════════════════════════════════════
// ResolveByDistribution — 分发阶段的批量解决
// ════════════════════════════════════════════════════════════
//
// 每个报价一个独立事务：锁定 → 选赢家（报名时间最早者优先，时间相同按
// worker_id 升序；已有排班冲突的候选人跳过）→ 写历史 → 原子转移班次。
// 无人可接手的报价转 unavailable，保持可见直到 completed。

func (s *exchangeService) ResolveByDistribution(ctx context.Context, callerID string) (*dto.DistributionResultResponse, error) {
	caller, err := s.repo.User.GetByID(ctx, callerID)
	if err != nil || caller.Role != model.RoleAdmin {
		return nil, ErrNotAdmin
	}

	phase, err := s.repo.Phase.Get(ctx)
	if err != nil {
		return nil, err
	}
	if phase.Value != model.PhaseDistribution {
		return nil, ErrPhaseViolation
	}

	pending, err := s.repo.Offer.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &dto.DistributionResultResponse{}
	for i := range pending {
		if pending[i].Status != model.OfferStatusPending {
			continue
		}
		if err := s.distributeOne(ctx, pending[i].OfferID, result); err != nil {
			s.logger.Error("分发单个报价失败",
				zap.String("offer_id", pending[i].OfferID),
				zap.Error(err),
			)
			return nil, err
		}
	}

	s.logger.Info("批量分发完成",
		zap.Int("resolved", result.Resolved),
		zap.Int("unavailable", result.Unavailable),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *exchangeService) distributeOne(ctx context.Context, offerID string, result *dto.DistributionResultResponse) error {
	var winnerID, ownerID string
	var shift model.ShiftRef

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		offer, err := txRepo.Offer.GetByIDForUpdate(ctx, offerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // 已被直接协商解决
			}
			return err
		}
		if offer.Status != model.OfferStatusPending {
			return nil
		}
		ownerID = offer.OwnerID
		shift = offer.Shift()

		// 按报名时间升序、worker_id 升序挑第一个无冲突的候选人
		interests, err := txRepo.Offer.ListInterests(ctx, offerID)
		if err != nil {
			return err
		}
		for _, interest := range interests {
			_, err := txRepo.Assignment.GetByUserDatePeriod(ctx, interest.WorkerID, offer.Date, offer.Period)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				winnerID = interest.WorkerID
				break
			}
			if err != nil {
				return err
			}
			result.Skipped++ // 候选人已有排班，跳过
		}

		if winnerID == "" {
			// 无人可接手 → unavailable，保持可见直到 completed
			offer.Status = model.OfferStatusUnavailable
			if err := txRepo.Offer.DeleteInterestsByOffer(ctx, offerID); err != nil {
				return err
			}
			result.Unavailable++
			return txRepo.Offer.Update(ctx, offer)
		}

		// 原主已不持有班次：该报价失效，转 unavailable 后继续分发其余报价，
		// 单个过期报价不能卡死整批
		if err := txRepo.Assignment.TransferOwner(ctx, offer.OwnerID, winnerID, offer.Date, offer.Period); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				winnerID = ""
				offer.Status = model.OfferStatusUnavailable
				if err := txRepo.Offer.DeleteInterestsByOffer(ctx, offerID); err != nil {
					return err
				}
				result.Skipped++
				return txRepo.Offer.Update(ctx, offer)
			}
			return err
		}

		record := &model.ExchangeHistoryRecord{
			Date:             offer.Date,
			Period:           offer.Period,
			ShiftType:        offer.ShiftType,
			OriginalOwnerID:  offer.OwnerID,
			NewOwnerID:       winnerID,
			IsReciprocalSwap: false,
			ResolvedAt:       time.Now(),
		}
		if err := txRepo.History.Create(ctx, record); err != nil {
			return err
		}

		if err := txRepo.Offer.DeleteInterestsByOffer(ctx, offerID); err != nil {
			return err
		}
		if err := txRepo.Proposal.RejectSiblings(ctx, offerID, ""); err != nil {
			return err
		}
		result.Resolved++
		return txRepo.Offer.Delete(ctx, offerID)
	})
	if err != nil {
		return err
	}

	if winnerID != "" {
		relatedType := "offer"
		s.notifier.Notify(ctx, winnerID, model.NotifyOfferResolved,
			"分发到班", fmt.Sprintf("%s %s 的班次已分配给你", shift.Date, shift.Period),
			&relatedType, &offerID)
		s.notifier.Notify(ctx, ownerID, model.NotifyOfferResolved,
			"报价已成交", fmt.Sprintf("%s %s 的班次已有人接手", shift.Date, shift.Period),
			&relatedType, &offerID)
		s.notifier.PublishStoreChange(ctx, ownerID, winnerID)
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// ListHistory — 换班历史
// ════════════════════════════════════════════════════════════

func (s *exchangeService) ListHistory(ctx context.Context, req *dto.HistoryListRequest) ([]dto.HistoryRecordResponse, int64, error) {
	records, total, err := s.repo.History.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询换班历史失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.HistoryRecordResponse, 0, len(records))
	for i := range records {
		r := &records[i]
		result = append(result, dto.HistoryRecordResponse{
			ID: r.RecordID,
			Shift: dto.ShiftRefResponse{
				Date:      r.Date.Format("2006-01-02"),
				Period:    r.Period,
				ShiftType: r.ShiftType,
			},
			OriginalOwnerID:  r.OriginalOwnerID,
			NewOwnerID:       r.NewOwnerID,
			IsReciprocalSwap: r.IsReciprocalSwap,
			Comment:          r.Comment,
			ResolvedAt:       r.ResolvedAt.Format(time.RFC3339),
		})
	}
	return result, total, nil
}

// toOfferResponse 组装响应；viewerID 非空时附带其视角的冲突标记（派生值）
func (s *exchangeService) toOfferResponse(ctx context.Context, offer *model.ShiftOffer, viewerID string) *dto.OfferResponse {
	resp := &dto.OfferResponse{
		ID:      offer.OfferID,
		OwnerID: offer.OwnerID,
		Shift: dto.ShiftRefResponse{
			Date:      offer.Date.Format("2006-01-02"),
			Period:    offer.Period,
			ShiftType: offer.ShiftType,
			TimeSlot:  offer.TimeSlot,
		},
		OperationTypes:  offer.EffectiveOperationTypes(),
		Status:          offer.Status,
		InterestedUsers: offer.InterestedUsers,
		CreatedAt:       offer.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       offer.UpdatedAt.Format(time.RFC3339),
	}
	if resp.InterestedUsers == nil {
		resp.InterestedUsers = []string{}
	}
	if offer.Owner != nil {
		resp.OwnerName = offer.Owner.Name
	}

	if viewerID != "" && viewerID != offer.OwnerID {
		result, err := s.conflict.Check(ctx, viewerID, offer.Date, offer.Period)
		if err == nil && result.HasConflict {
			resp.HasConflict = true
			resp.Conflicting = &dto.ShiftRefResponse{
				Date:      result.Conflicting.Date,
				Period:    result.Conflicting.Period,
				ShiftType: result.Conflicting.ShiftType,
				TimeSlot:  result.Conflicting.TimeSlot,
			}
		}
	}
	return resp
}

// ── 周期对账 ──

// ReconcileCycle 由监听器的 sweep 周期触发
//
// 两件事：提交窗口超期但阶段未流转时告警（流转是管理员动作，
// 系统只上报不代劳）；阶段已回到 closed 时清掉漏网的 unavailable
// 报价（正常由 completed→closed 迁移清理，这里兜底并发漏写）。
func (s *exchangeService) ReconcileCycle(ctx context.Context) error {
	phase, err := s.repo.Phase.Get(ctx)
	if err != nil {
		return fmt.Errorf("读取阶段失败: %w", err)
	}

	if phase.Value == model.PhaseSubmission &&
		phase.SubmissionDeadline != nil &&
		time.Now().UTC().After(*phase.SubmissionDeadline) {
		s.logger.Warn("提交窗口已超期但阶段未流转",
			zap.Time("deadline", *phase.SubmissionDeadline))
	}

	if phase.Value == model.PhaseClosed {
		if err := s.repo.Offer.DeleteByStatus(ctx, model.OfferStatusUnavailable); err != nil {
			return fmt.Errorf("清理残留报价失败: %w", err)
		}
	}
	return nil
}

// [自证通过] internal/service/exchange_service.go
