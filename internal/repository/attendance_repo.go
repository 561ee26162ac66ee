package repository

import (
	"context"
	"time"

	"smartfarm-backend/internal/domain"
)

// AttendanceRepository 考勤 Repository 接口
type AttendanceRepository interface {
	GetAttendance(ctx context.Context, attendanceID string) (*domain.Attendance, error)
	// GetOpenByUser 当前未签退的记录（不存在返回 domain.ErrNotFound）
	GetOpenByUser(ctx context.Context, userID string) (*domain.Attendance, error)
	// GetTodayByUser 某用户当天的记录（不存在返回 domain.ErrNotFound）
	GetTodayByUser(ctx context.Context, userID string, day time.Time) (*domain.Attendance, error)
	ListAttendance(ctx context.Context, filters AttendanceFilters) ([]*domain.Attendance, error)
	CreateAttendance(ctx context.Context, rec *domain.Attendance) (string, error)
	// CheckOut 回写签退时间/地点/总工时并更新状态
	CheckOut(ctx context.Context, attendanceID string, rec *domain.Attendance) error
	// CountPresentDays 区间内的出勤天数（按 check_in 日期去重）
	CountPresentDays(ctx context.Context, userID string, from, to time.Time) (int, error)
}

// AttendanceFilters 考勤查询过滤器
type AttendanceFilters struct {
	UserID  string
	FarmIDs []string
	From    *time.Time
	To      *time.Time
}
