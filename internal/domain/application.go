package domain

import (
	"database/sql"
	"time"
)

// ApplicationStatus 农场主入驻申请状态
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

// FarmOwnerApplication 农场主入驻申请（对应 farm_owner_applications 表）
// 审批通过后由系统生成 FARM_OWNER 账号并回填 created_user_id
type FarmOwnerApplication struct {
	ApplicationID string         `db:"application_id"`
	FirstName     string         `db:"first_name"` // NOT NULL
	LastName      string         `db:"last_name"`  // NOT NULL
	Email         string         `db:"email"`      // NOT NULL, unique
	Phone         sql.NullString `db:"phone"`

	FarmName     string          `db:"farm_name"`     // NOT NULL
	FarmLocation string          `db:"farm_location"` // NOT NULL
	FarmSize     sql.NullFloat64 `db:"farm_size"`
	FarmType     sql.NullString  `db:"farm_type"`

	ExpectedUsers sql.NullInt64  `db:"expected_users"`
	Comments      sql.NullString `db:"comments"`

	Status        ApplicationStatus `db:"status"` // default PENDING
	ReviewedAt    sql.NullTime      `db:"reviewed_at"`
	ReviewNotes   sql.NullString    `db:"review_notes"`
	ReviewedByID  sql.NullString    `db:"reviewed_by_id"`  // FK users
	CreatedUserID sql.NullString    `db:"created_user_id"` // FK users

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
