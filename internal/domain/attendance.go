package domain

import (
	"database/sql"
	"time"
)

// AttendanceStatus 考勤状态
type AttendanceStatus string

const (
	AttendanceCheckedIn  AttendanceStatus = "CHECKED_IN"
	AttendanceCheckedOut AttendanceStatus = "CHECKED_OUT"
	AttendanceLate       AttendanceStatus = "LATE"
)

// 迟到判定：工作日 08:00 开始，15 分钟宽限
const (
	WorkDayStartHour   = 8
	LateGraceMinutes   = 15
)

// Attendance 考勤记录（对应 attendance_records 表）
type Attendance struct {
	AttendanceID string `db:"attendance_id"`
	UserID       string `db:"user_id"` // NOT NULL FK users
	FarmID       string `db:"farm_id"` // NOT NULL FK farms

	CheckInTime  time.Time    `db:"check_in_time"` // NOT NULL
	CheckOutTime sql.NullTime `db:"check_out_time"`

	CheckInLocation  sql.NullString `db:"check_in_location"`
	CheckOutLocation sql.NullString `db:"check_out_location"`
	Notes            sql.NullString `db:"notes"`

	TotalHours sql.NullFloat64  `db:"total_hours"`
	Status     AttendanceStatus `db:"status"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
