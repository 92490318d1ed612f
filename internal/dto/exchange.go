package dto

// ── 换班市场模块 DTO ──

// ShiftRefRequest 班次引用（请求体）
type ShiftRefRequest struct {
	Date      string `json:"date"       binding:"required,datetime=2006-01-02"`
	Period    string `json:"period"     binding:"required,oneof=Morning Afternoon Evening Night"`
	ShiftType string `json:"shift_type" binding:"required,max=20"`
	TimeSlot  string `json:"time_slot"  binding:"omitempty,max=50"`
}

// CreateOfferRequest 挂出报价请求
type CreateOfferRequest struct {
	Shift          ShiftRefRequest `json:"shift"           binding:"required"`
	OperationTypes []string        `json:"operation_types" binding:"required,min=1,dive,oneof=give exchange replacement"`
}

// ToggleInterestRequest 报名/撤销报名请求
type ToggleInterestRequest struct {
	// Override 冲突确认：首次调用被 conflict 拦截后，用户确认再带 true 重试
	Override bool `json:"override"`
}

// OfferListRequest 报价列表查询参数
type OfferListRequest struct {
	Mine       bool `form:"mine"`       // 仅自己挂出的
	Interested bool `form:"interested"` // 仅自己报名过的
}

// ── 响应 ──

// ShiftRefResponse 班次引用（响应体）
type ShiftRefResponse struct {
	Date      string `json:"date"`
	Period    string `json:"period"`
	ShiftType string `json:"shift_type"`
	TimeSlot  string `json:"time_slot,omitempty"`
}

// OfferResponse 报价响应
type OfferResponse struct {
	ID              string           `json:"id"`
	OwnerID         string           `json:"owner_id"`
	OwnerName       string           `json:"owner_name,omitempty"`
	Shift           ShiftRefResponse `json:"shift"`
	OperationTypes  []string         `json:"operation_types"`
	Status          string           `json:"status"`
	InterestedUsers []string         `json:"interested_users"`
	// HasConflict 针对请求者视角的冲突标记（派生值，不持久化）
	HasConflict bool              `json:"has_conflict"`
	Conflicting *ShiftRefResponse `json:"conflicting,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// ConflictCheckResponse 冲突检测结果
type ConflictCheckResponse struct {
	HasConflict bool              `json:"has_conflict"`
	Conflicting *ShiftRefResponse `json:"conflicting,omitempty"`
}

// DistributionResultResponse 批量分发结果
type DistributionResultResponse struct {
	Resolved    int `json:"resolved"`    // 成交数
	Unavailable int `json:"unavailable"` // 无人接手转 unavailable 数
	Skipped     int `json:"skipped"`     // 候选人全部冲突被跳过的报名数
}

// ── 历史记录 ──

// HistoryListRequest 历史记录列表查询参数
type HistoryListRequest struct {
	PaginationRequest
}

// HistoryRecordResponse 换班历史记录响应
type HistoryRecordResponse struct {
	ID              string           `json:"id"`
	Shift           ShiftRefResponse `json:"shift"`
	OriginalOwnerID string           `json:"original_owner_id"`
	NewOwnerID      string           `json:"new_owner_id"`
	IsReciprocalSwap bool            `json:"is_reciprocal_swap"`
	Comment         string           `json:"comment,omitempty"`
	ResolvedAt      string           `json:"resolved_at"`
}

// [自证通过] internal/dto/exchange.go
