package dto

// ── 直接协商模块 DTO ──

// ProposeRequest 发起提案请求
type ProposeRequest struct {
	TargetOfferID string            `json:"target_offer_id" binding:"required,uuid"`
	Kind          []string          `json:"kind"            binding:"required,min=1,dive,oneof=take exchange replacement"`
	OfferedShifts []ShiftRefRequest `json:"offered_shifts"  binding:"omitempty,dive"`
	Comment       string            `json:"comment"         binding:"omitempty,max=500"`
	// Override 冲突确认，语义与报名一致
	Override bool `json:"override"`
}

// ── 响应 ──

// ProposalResponse 提案响应
type ProposalResponse struct {
	ID            string             `json:"id"`
	TargetOfferID string             `json:"target_offer_id"`
	TargetOwnerID string             `json:"target_owner_id"`
	ProposerID    string             `json:"proposer_id"`
	ProposerName  string             `json:"proposer_name,omitempty"`
	Kind          []string           `json:"kind"`
	OfferedShifts []ShiftRefResponse `json:"offered_shifts"`
	Comment       string             `json:"comment,omitempty"`
	Status        string             `json:"status"`
	CreatedAt     string             `json:"created_at"`
	UpdatedAt     string             `json:"updated_at"`
}

// [自证通过] internal/dto/negotiation.go
