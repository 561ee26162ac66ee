package domain

import (
	"database/sql"
	"time"
)

// Role 用户角色（4 级层级，级别越高权限越大）
type Role string

const (
	RoleSystemAdmin Role = "SYSTEM_ADMIN"
	RoleFarmOwner   Role = "FARM_OWNER"
	RoleSupervisor  Role = "SUPERVISOR"
	RoleWorker      Role = "WORKER"
)

// Level 角色层级值（SYSTEM_ADMIN=4 … WORKER=1，未知角色=0）
func (r Role) Level() int {
	switch r {
	case RoleSystemAdmin:
		return 4
	case RoleFarmOwner:
		return 3
	case RoleSupervisor:
		return 2
	case RoleWorker:
		return 1
	default:
		return 0
	}
}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	return r.Level() > 0
}

// User 用户领域模型（对应 users 表）
type User struct {
	// 主键
	UserID string `db:"user_id"`

	// 账号信息
	Username     string `db:"username"`      // NOT NULL, unique
	Email        string `db:"email"`         // NOT NULL, unique
	PasswordHash []byte `db:"password_hash"` // NOT NULL, bcrypt

	// 基本信息
	FirstName string         `db:"first_name"`
	LastName  string         `db:"last_name"`
	Phone     sql.NullString `db:"phone"` // nullable
	Role      Role           `db:"role"`  // NOT NULL

	// 归属农场（SUPERVISOR 的主农场 / WORKER 的工作农场）
	AssignedFarmID sql.NullString `db:"assigned_farm_id"` // nullable FK farms

	// 状态
	IsActive           bool `db:"is_active"`            // default true
	MustChangePassword bool `db:"must_change_password"` // default false

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// FullName 姓名拼接（邮件与报表展示用）
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
