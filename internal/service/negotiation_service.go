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

// ── 直接协商模块业务错误 ──

var (
	ErrProposalNotFound = errors.New("提案不存在")
	ErrSelfProposal     = errors.New("不能向自己的报价发起提案")
	ErrKindNotPermitted = errors.New("提案种类不在报价允许的操作类型内")
	ErrInvalidKindShape = errors.New("提案种类与附带班次不匹配")
	ErrNotOfferOwner    = errors.New("仅报价所有者可执行此操作")
	ErrNotProposer      = errors.New("仅提案发起人可执行此操作")
	ErrAlreadyResolved  = errors.New("提案已终态，不可再变更")
	// ErrStaleAssignment 接受提案时排班底表已被并发改动，事务整体回滚
	ErrStaleAssignment = errors.New("排班数据已变更，请刷新后重试")
)

// NegotiationService 直接协商业务接口
//
// 提案生命周期：pending → accepted | rejected | withdrawn，终态不可逆。
// Accept 是唯一触发班次转移的入口，单事务完成全部写入；同一报价
// 至多产生一个 accepted 提案，其余 pending 兄弟提案被原子拒绝。
type NegotiationService interface {
	// Propose 发起提案
	Propose(ctx context.Context, proposerID string, req *dto.ProposeRequest) (*dto.ProposalResponse, error)
	// Accept 报价所有者接受提案；副作用全部在同一事务内
	Accept(ctx context.Context, proposalID, callerID string) (*dto.ProposalResponse, error)
	// Reject 报价所有者拒绝提案
	Reject(ctx context.Context, proposalID, callerID string) (*dto.ProposalResponse, error)
	// Withdraw 提案人撤回自己的 pending 提案
	Withdraw(ctx context.Context, proposalID, callerID string) (*dto.ProposalResponse, error)
	// ListReceived 当前用户名下报价收到的 pending 提案
	ListReceived(ctx context.Context, ownerID string) ([]dto.ProposalResponse, error)
	// ListSent 当前用户发出的提案（含终态）
	ListSent(ctx context.Context, proposerID string) ([]dto.ProposalResponse, error)
	// ListByOffer 针对某报价的全部提案；仅报价所有者可见
	ListByOffer(ctx context.Context, offerID, callerID string) ([]dto.ProposalResponse, error)
}

type negotiationService struct {
	repo     *repository.Repository
	conflict ConflictService
	notifier NotificationService
	logger   *zap.Logger
}

// NewNegotiationService 创建 NegotiationService 实例
func NewNegotiationService(
	repo *repository.Repository,
	conflict ConflictService,
	notifier NotificationService,
	logger *zap.Logger,
) NegotiationService {
	return &negotiationService{repo: repo, conflict: conflict, notifier: notifier, logger: logger}
}

// validateKindShape 校验提案种类与附带班次的形状约束
// exchange 必须附带至少一个班次；纯 take/replacement 不得附带
func validateKindShape(kind []string, offered []dto.ShiftRefRequest) error {
	hasExchange := false
	for _, k := range kind {
		if k == model.ProposalKindExchange {
			hasExchange = true
		}
	}
	if hasExchange && len(offered) == 0 {
		return fmt.Errorf("%w: exchange 提案必须附带回报班次", ErrInvalidKindShape)
	}
	if !hasExchange && len(offered) > 0 {
		return fmt.Errorf("%w: 非 exchange 提案不得附带班次", ErrInvalidKindShape)
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// Propose — 发起提案
// ════════════════════════════════════════════════════════════

func (s *negotiationService) Propose(ctx context.Context, proposerID string, req *dto.ProposeRequest) (*dto.ProposalResponse, error) {
	if err := validateKindShape(req.Kind, req.OfferedShifts); err != nil {
		return nil, err
	}

	var proposal *model.DirectExchangeProposal
	var ownerID string

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		phase, err := txRepo.Phase.Get(ctx)
		if err != nil {
			return err
		}
		if !phase.IsTradingAllowed() {
			return ErrPhaseViolation
		}

		offer, err := txRepo.Offer.GetByIDForUpdate(ctx, req.TargetOfferID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOfferNotFound
			}
			return err
		}
		if offer.Status != model.OfferStatusPending {
			return ErrOfferNotPending
		}
		if offer.OwnerID == proposerID {
			return ErrSelfProposal
		}
		ownerID = offer.OwnerID

		// 提案种类必须是报价声明的操作类型子集
		// take 提案对应报价的 give（接手即所有者让出）
		permitted := offer.EffectiveOperationTypes()
		for _, k := range req.Kind {
			required := k
			if k == model.ProposalKindTake {
				required = model.OperationGive
			}
			if !permitted.Contains(required) {
				return fmt.Errorf("%w: %s", ErrKindNotPermitted, k)
			}
		}

		// 提案人必须实际持有所附班次
		offered := make(model.ShiftRefList, 0, len(req.OfferedShifts))
		for _, ref := range req.OfferedShifts {
			date, err := parseShiftDate(ref.Date)
			if err != nil {
				return fmt.Errorf("%w: 日期格式无效", ErrInvalidKindShape)
			}
			if _, err := txRepo.Assignment.GetByUserDatePeriod(ctx, proposerID, date, ref.Period); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrShiftNotOwned
				}
				return err
			}
			offered = append(offered, model.ShiftRef{
				Date:      ref.Date,
				Period:    ref.Period,
				ShiftType: ref.ShiftType,
				TimeSlot:  ref.TimeSlot,
			})
		}

		// 目标班次与提案人既有排班冲突时需确认
		if phase.RequireConflictConfirm && !req.Override {
			result, err := s.conflict.Check(ctx, proposerID, offer.Date, offer.Period)
			if err != nil {
				return err
			}
			if result.HasConflict {
				return fmt.Errorf("%w: %s %s", ErrConflictConfirmRequired,
					result.Conflicting.Date, result.Conflicting.Period)
			}
		}

		kind, err := normalizeProposalKind(req.Kind)
		if err != nil {
			return err
		}

		proposal = &model.DirectExchangeProposal{
			TargetOfferID: offer.OfferID,
			TargetOwnerID: offer.OwnerID,
			ProposerID:    proposerID,
			Kind:          kind,
			OfferedShifts: offered,
			Comment:       req.Comment,
			Status:        model.ProposalStatusPending,
		}
		proposal.CreatedBy = &proposerID
		return txRepo.Proposal.Create(ctx, proposal)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("提案已发起",
		zap.String("proposal_id", proposal.ProposalID),
		zap.String("target_offer_id", proposal.TargetOfferID),
		zap.String("proposer_id", proposerID),
	)
	relatedType := "proposal"
	s.notifier.Notify(ctx, ownerID, model.NotifyProposalReceived,
		"收到新提案", "你的报价收到一条直接协商提案", &relatedType, &proposal.ProposalID)

	return toProposalResponse(proposal), nil
}

// normalizeProposalKind 去重并固定顺序 take < exchange < replacement
func normalizeProposalKind(kind []string) (model.StringArray, error) {
	order := []string{model.ProposalKindTake, model.ProposalKindExchange, model.ProposalKindReplacement}
	seen := make(map[string]bool, len(kind))
	for _, k := range kind {
		valid := false
		for _, known := range order {
			if k == known {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("%w: 未知种类 %q", ErrInvalidKindShape, k)
		}
		seen[k] = true
	}
	var result model.StringArray
	for _, known := range order {
		if seen[known] {
			result = append(result, known)
		}
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// Accept — 接受提案（唯一触发班次转移的入口）
// ════════════════════════════════════════════════════════════
//
// 单事务内完成：锁提案与报价 → 校验 → 按种类改写排班底表 →
// 拒绝兄弟提案 → 写历史 → 下架报价。底表任一条件更新落空
// （原主已不持有班次等）时整体回滚，报价保持 pending。

func (s *negotiationService) Accept(ctx context.Context, proposalID, callerID string) (*dto.ProposalResponse, error) {
	var proposal *model.DirectExchangeProposal
	var offer *model.ShiftOffer
	var siblingProposers []string
	var interested []string

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		proposal, err = txRepo.Proposal.GetByIDForUpdate(ctx, proposalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProposalNotFound
			}
			return err
		}
		if proposal.TargetOwnerID != callerID {
			return ErrNotOfferOwner
		}
		if proposal.Status != model.ProposalStatusPending {
			return ErrAlreadyResolved
		}

		phase, err := txRepo.Phase.Get(ctx)
		if err != nil {
			return err
		}
		if !phase.IsTradingAllowed() {
			return ErrPhaseViolation
		}

		offer, err = txRepo.Offer.GetByIDForUpdate(ctx, proposal.TargetOfferID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOfferNotFound
			}
			return err
		}
		if offer.Status != model.OfferStatusPending {
			return ErrOfferNotPending
		}

		// 改写排班底表；条件更新落空表示底表已被并发改动
		if err := s.applyStoreEffect(ctx, txRepo, proposal, offer); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return ErrStaleAssignment
			}
			return err
		}

		// 收集兄弟提案人与报名者，提交后通知
		siblings, err := txRepo.Proposal.ListByOffer(ctx, offer.OfferID)
		if err != nil {
			return err
		}
		for i := range siblings {
			if siblings[i].ProposalID != proposalID && siblings[i].Status == model.ProposalStatusPending {
				siblingProposers = append(siblingProposers, siblings[i].ProposerID)
			}
		}
		interested = append(interested, offer.InterestedUsers...)

		if err := txRepo.Proposal.RejectSiblings(ctx, offer.OfferID, proposalID); err != nil {
			return err
		}

		proposal.Status = model.ProposalStatusAccepted
		proposal.UpdatedBy = &callerID
		if err := txRepo.Proposal.Update(ctx, proposal); err != nil {
			return err
		}

		record := &model.ExchangeHistoryRecord{
			Date:             offer.Date,
			Period:           offer.Period,
			ShiftType:        offer.ShiftType,
			OriginalOwnerID:  offer.OwnerID,
			NewOwnerID:       proposal.ProposerID,
			IsReciprocalSwap: proposal.IsReciprocal(),
			Comment:          proposal.Comment,
			ResolvedAt:       time.Now(),
		}
		if err := txRepo.History.Create(ctx, record); err != nil {
			return err
		}

		if err := txRepo.Offer.DeleteInterestsByOffer(ctx, offer.OfferID); err != nil {
			return err
		}
		return txRepo.Offer.Delete(ctx, offer.OfferID)
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrStaleState
		}
		return nil, err
	}

	s.logger.Info("提案已接受",
		zap.String("proposal_id", proposalID),
		zap.String("offer_id", offer.OfferID),
		zap.String("new_owner_id", proposal.ProposerID),
	)

	// 事务提交后才发通知，回滚不产生幽灵消息
	relatedType := "proposal"
	s.notifier.Notify(ctx, proposal.ProposerID, model.NotifyProposalAccepted,
		"提案已接受", fmt.Sprintf("%s %s 的班次交接已完成", offer.Shift().Date, offer.Period),
		&relatedType, &proposalID)
	s.notifier.Notify(ctx, offer.OwnerID, model.NotifyProposalAccepted,
		"交接已完成", fmt.Sprintf("%s %s 的班次已交接给提案人", offer.Shift().Date, offer.Period),
		&relatedType, &proposalID)
	s.notifier.NotifyMany(ctx, siblingProposers, model.NotifyProposalRejected,
		"提案已拒绝", "目标报价已通过其他提案成交", &relatedType, &proposalID)
	s.notifier.NotifyMany(ctx, interested, model.NotifyOfferRetired,
		"报价已成交", "你报名过的报价已通过直接协商成交", &relatedType, &proposalID)
	s.notifier.PublishStoreChange(ctx, offer.OwnerID, proposal.ProposerID)

	return toProposalResponse(proposal), nil
}

// applyStoreEffect 按提案种类改写排班底表
// exchange 优先于 take：提案同时声明两者时按双向交换执行
func (s *negotiationService) applyStoreEffect(ctx context.Context, txRepo *repository.Repository, proposal *model.DirectExchangeProposal, offer *model.ShiftOffer) error {
	switch {
	case proposal.IsReciprocal():
		// 双向交换：目标班次归提案人，回报班次归原所有者
		if err := txRepo.Assignment.TransferOwner(ctx, offer.OwnerID, proposal.ProposerID, offer.Date, offer.Period); err != nil {
			return err
		}
		for _, ref := range proposal.OfferedShifts {
			date, err := parseShiftDate(ref.Date)
			if err != nil {
				return err
			}
			if err := txRepo.Assignment.TransferOwner(ctx, proposal.ProposerID, offer.OwnerID, date, ref.Period); err != nil {
				return err
			}
		}
		return nil
	case proposal.Kind.Contains(model.ProposalKindReplacement):
		// 替班：所有权不变，登记替班人
		return txRepo.Assignment.SetSubstitute(ctx, offer.OwnerID, offer.Date, offer.Period, proposal.ProposerID)
	default:
		// take：目标班次直接转给提案人
		return txRepo.Assignment.TransferOwner(ctx, offer.OwnerID, proposal.ProposerID, offer.Date, offer.Period)
	}
}

// ════════════════════════════════════════════════════════════
// Reject / Withdraw — 终态迁移
// ════════════════════════════════════════════════════════════

func (s *negotiationService) Reject(ctx context.Context, proposalID, callerID string) (*dto.ProposalResponse, error) {
	proposal, err := s.resolveProposal(ctx, proposalID, callerID, model.ProposalStatusRejected, false)
	if err != nil {
		return nil, err
	}
	relatedType := "proposal"
	s.notifier.Notify(ctx, proposal.ProposerID, model.NotifyProposalRejected,
		"提案已拒绝", "你的提案被报价所有者拒绝", &relatedType, &proposalID)
	return toProposalResponse(proposal), nil
}

func (s *negotiationService) Withdraw(ctx context.Context, proposalID, callerID string) (*dto.ProposalResponse, error) {
	proposal, err := s.resolveProposal(ctx, proposalID, callerID, model.ProposalStatusWithdrawn, true)
	if err != nil {
		return nil, err
	}
	relatedType := "proposal"
	s.notifier.Notify(ctx, proposal.TargetOwnerID, model.NotifyProposalWithdrawn,
		"提案已撤回", "一条针对你报价的提案已被发起人撤回", &relatedType, &proposalID)
	return toProposalResponse(proposal), nil
}

// resolveProposal pending → 终态的通用迁移；byProposer 区分撤回与拒绝的鉴权主体
func (s *negotiationService) resolveProposal(ctx context.Context, proposalID, callerID, target string, byProposer bool) (*model.DirectExchangeProposal, error) {
	var proposal *model.DirectExchangeProposal

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		proposal, err = txRepo.Proposal.GetByIDForUpdate(ctx, proposalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProposalNotFound
			}
			return err
		}
		if byProposer {
			if proposal.ProposerID != callerID {
				return ErrNotProposer
			}
		} else if proposal.TargetOwnerID != callerID {
			return ErrNotOfferOwner
		}
		if proposal.Status != model.ProposalStatusPending {
			return ErrAlreadyResolved
		}

		proposal.Status = target
		proposal.UpdatedBy = &callerID
		return txRepo.Proposal.Update(ctx, proposal)
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrStaleState
		}
		return nil, err
	}
	return proposal, nil
}

// ════════════════════════════════════════════════════════════
// 读路径
// ════════════════════════════════════════════════════════════

func (s *negotiationService) ListReceived(ctx context.Context, ownerID string) ([]dto.ProposalResponse, error) {
	proposals, err := s.repo.Proposal.ListPendingByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error("查询收到的提案失败", zap.Error(err))
		return nil, err
	}
	return toProposalResponses(proposals), nil
}

func (s *negotiationService) ListSent(ctx context.Context, proposerID string) ([]dto.ProposalResponse, error) {
	proposals, err := s.repo.Proposal.ListByProposer(ctx, proposerID)
	if err != nil {
		s.logger.Error("查询发出的提案失败", zap.Error(err))
		return nil, err
	}
	return toProposalResponses(proposals), nil
}

func (s *negotiationService) ListByOffer(ctx context.Context, offerID, callerID string) ([]dto.ProposalResponse, error) {
	offer, err := s.repo.Offer.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	if offer.OwnerID != callerID {
		return nil, ErrNotOfferOwner
	}

	proposals, err := s.repo.Proposal.ListByOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	return toProposalResponses(proposals), nil
}

func toProposalResponse(p *model.DirectExchangeProposal) *dto.ProposalResponse {
	offered := make([]dto.ShiftRefResponse, 0, len(p.OfferedShifts))
	for _, ref := range p.OfferedShifts {
		offered = append(offered, dto.ShiftRefResponse{
			Date:      ref.Date,
			Period:    ref.Period,
			ShiftType: ref.ShiftType,
			TimeSlot:  ref.TimeSlot,
		})
	}
	resp := &dto.ProposalResponse{
		ID:            p.ProposalID,
		TargetOfferID: p.TargetOfferID,
		TargetOwnerID: p.TargetOwnerID,
		ProposerID:    p.ProposerID,
		Kind:          p.Kind,
		OfferedShifts: offered,
		Comment:       p.Comment,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
	if p.Proposer != nil {
		resp.ProposerName = p.Proposer.Name
	}
	return resp
}

func toProposalResponses(proposals []model.DirectExchangeProposal) []dto.ProposalResponse {
	result := make([]dto.ProposalResponse, 0, len(proposals))
	for i := range proposals {
		result = append(result, *toProposalResponse(&proposals[i]))
	}
	return result
}

// [自证通过] internal/service/negotiation_service.go
