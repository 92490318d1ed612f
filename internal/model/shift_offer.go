package model

import "time"

// ── 换班操作类型 ──

const (
	OperationGive        = "give"        // 让班：对方直接接手
	OperationExchange    = "exchange"    // 换班：对方以自己的班次交换
	OperationReplacement = "replacement" // 替班：对方代为值班，配额仍归原主
)

// AllOperationTypes 当前全部合法操作类型
var AllOperationTypes = []string{OperationGive, OperationExchange, OperationReplacement}

// OperationTypesFromLegacy 旧版单枚举 → 操作类型集合的固定映射。
// 仅在读取旧数据时调用，写路径一律使用显式集合表示。
func OperationTypesFromLegacy(legacy string) StringArray {
	switch legacy {
	case "both":
		return StringArray{OperationGive, OperationExchange}
	case OperationGive, OperationExchange, OperationReplacement:
		return StringArray{legacy}
	default:
		return nil
	}
}

// ── 报价状态 ──

const (
	OfferStatusPending     = "pending"     // 可报名、可协商
	OfferStatusUnavailable = "unavailable" // 分发后无人接手，展示但不可交互
)

// ShiftOffer 换班报价表 — 对应 shift_offers
// 一条记录表示某成员在提交期挂出的一个班次
type ShiftOffer struct {
	OfferID         string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"offer_id"`
	OwnerID         string      `gorm:"type:uuid;not null;index"                       json:"owner_id"`
	Date            time.Time   `gorm:"type:date;not null"                             json:"date"`
	Period          string      `gorm:"type:varchar(20);not null"                      json:"period"`
	ShiftType       string      `gorm:"type:varchar(20);not null"                      json:"shift_type"`
	TimeSlot        string      `gorm:"type:varchar(50)"                               json:"time_slot"`
	OperationTypes  StringArray `gorm:"type:text[];not null"                           json:"operation_types"`
	Status          string      `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"` // pending | unavailable
	InterestedUsers StringArray `gorm:"type:text[];not null;default:'{}'"              json:"interested_users"`
	VersionedModel

	// 关联
	Owner     *User           `gorm:"foreignKey:OwnerID;references:UserID" json:"owner,omitempty"`
	Interests []OfferInterest `gorm:"foreignKey:OfferID"                   json:"-"`
}

// TableName 指定表名
func (ShiftOffer) TableName() string { return "shift_offers" }

// EffectiveOperationTypes 读取侧的操作类型集合。
// 旧数据可能以单枚举落库（含 both），统一经固定映射展开；
// 写路径不经过这里，新报价一律存显式集合。
func (o *ShiftOffer) EffectiveOperationTypes() StringArray {
	if len(o.OperationTypes) == 1 {
		if mapped := OperationTypesFromLegacy(o.OperationTypes[0]); mapped != nil {
			return mapped
		}
	}
	return o.OperationTypes
}

// Shift 返回报价对应的班次引用
func (o *ShiftOffer) Shift() ShiftRef {
	return ShiftRef{
		Date:      o.Date.Format("2006-01-02"),
		Period:    o.Period,
		ShiftType: o.ShiftType,
		TimeSlot:  o.TimeSlot,
	}
}

// OfferInterest 报名记录表 — 对应 offer_interests
// interested_users 列是对外契约；本表额外保留报名时间，供分发定序使用
type OfferInterest struct {
	OfferID   string    `gorm:"type:uuid;primaryKey"               json:"offer_id"`
	WorkerID  string    `gorm:"type:uuid;primaryKey"               json:"worker_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (OfferInterest) TableName() string { return "offer_interests" }

// [自证通过] internal/model/shift_offer.go
