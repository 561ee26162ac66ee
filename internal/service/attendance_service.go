package service

import (
	"context"
	"errors"
	"time"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/repository"

	"go.uber.org/zap"
)

// AttendanceView 对外考勤视图
type AttendanceView struct {
	AttendanceID     string  `json:"attendance_id"`
	UserID           string  `json:"user_id"`
	FarmID           string  `json:"farm_id"`
	CheckInTime      string  `json:"check_in_time"`
	CheckOutTime     string  `json:"check_out_time,omitempty"`
	CheckInLocation  string  `json:"check_in_location,omitempty"`
	CheckOutLocation string  `json:"check_out_location,omitempty"`
	Notes            string  `json:"notes,omitempty"`
	TotalHours       float64 `json:"total_hours,omitempty"`
	Status           string  `json:"status"`
}

// newAttendanceView 构造考勤视图
func newAttendanceView(a *domain.Attendance) *AttendanceView {
	v := &AttendanceView{
		AttendanceID: a.AttendanceID,
		UserID:       a.UserID,
		FarmID:       a.FarmID,
		CheckInTime:  a.CheckInTime.Format(time.RFC3339),
		Status:       string(a.Status),
	}
	if a.CheckOutTime.Valid {
		v.CheckOutTime = a.CheckOutTime.Time.Format(time.RFC3339)
	}
	if a.CheckInLocation.Valid {
		v.CheckInLocation = a.CheckInLocation.String
	}
	if a.CheckOutLocation.Valid {
		v.CheckOutLocation = a.CheckOutLocation.String
	}
	if a.Notes.Valid {
		v.Notes = a.Notes.String
	}
	if a.TotalHours.Valid {
		v.TotalHours = a.TotalHours.Float64
	}
	return v
}

// newAttendanceViews 批量构造考勤视图
func newAttendanceViews(records []*domain.Attendance) []*AttendanceView {
	views := make([]*AttendanceView, 0, len(records))
	for _, a := range records {
		views = append(views, newAttendanceView(a))
	}
	return views
}

// AttendanceService 考勤打卡
type AttendanceService struct {
	attendance repository.AttendanceRepository
	users      repository.UsersRepository
	resolver   *ActorResolver
	logger     *zap.Logger
}

// NewAttendanceService 创建考勤服务
func NewAttendanceService(
	attendance repository.AttendanceRepository,
	users repository.UsersRepository,
	resolver *ActorResolver,
	logger *zap.Logger,
) *AttendanceService {
	return &AttendanceService{
		attendance: attendance,
		users:      users,
		resolver:   resolver,
		logger:     logger,
	}
}

// lateDeadline 当日迟到判定线（08:15）
func lateDeadline(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(),
		domain.WorkDayStartHour, domain.LateGraceMinutes, 0, 0, t.Location())
}

// CheckInRequest 签到请求
type CheckInRequest struct {
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

// CheckIn 签到：无归属农场拒绝；存在未签退记录拒绝；08:15 后记 LATE
func (s *AttendanceService) CheckIn(ctx context.Context, actorID string, req *CheckInRequest) (*AttendanceView, error) {
	user, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !user.AssignedFarmID.Valid {
		return nil, domain.Validation("you are not assigned to a farm")
	}

	if _, err := s.attendance.GetOpenByUser(ctx, actorID); err == nil {
		return nil, domain.Validation("you are already checked in")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	status := domain.AttendanceCheckedIn
	if now.After(lateDeadline(now)) {
		status = domain.AttendanceLate
	}

	rec := &domain.Attendance{
		UserID:      actorID,
		FarmID:      user.AssignedFarmID.String,
		CheckInTime: now,
		Status:      status,
	}
	if req.Location != "" {
		rec.CheckInLocation.String, rec.CheckInLocation.Valid = req.Location, true
	}
	if req.Notes != "" {
		rec.Notes.String, rec.Notes.Valid = req.Notes, true
	}

	attendanceID, err := s.attendance.CreateAttendance(ctx, rec)
	if err != nil {
		return nil, err
	}
	created, err := s.attendance.GetAttendance(ctx, attendanceID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Worker checked in",
		zap.String("user_id", actorID),
		zap.String("farm_id", rec.FarmID),
		zap.String("status", string(status)),
	)
	return newAttendanceView(created), nil
}

// CheckOutRequest 签退请求
type CheckOutRequest struct {
	Location string `json:"location"`
}

// CheckOut 签退：必须存在未签退记录，回写总工时
func (s *AttendanceService) CheckOut(ctx context.Context, actorID string, req *CheckOutRequest) (*AttendanceView, error) {
	open, err := s.attendance.GetOpenByUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Validation("no open check-in found")
		}
		return nil, err
	}

	now := time.Now()
	patch := &domain.Attendance{Status: domain.AttendanceCheckedOut}
	patch.CheckOutTime.Time, patch.CheckOutTime.Valid = now, true
	patch.TotalHours.Float64 = now.Sub(open.CheckInTime).Hours()
	patch.TotalHours.Valid = true
	if req.Location != "" {
		patch.CheckOutLocation.String, patch.CheckOutLocation.Valid = req.Location, true
	}

	if err := s.attendance.CheckOut(ctx, open.AttendanceID, patch); err != nil {
		return nil, err
	}
	updated, err := s.attendance.GetAttendance(ctx, open.AttendanceID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Worker checked out",
		zap.String("user_id", actorID),
		zap.Float64("total_hours", patch.TotalHours.Float64),
	)
	return newAttendanceView(updated), nil
}

// TodayStatusResponse 当日考勤状态
type TodayStatusResponse struct {
	CheckedIn bool            `json:"checked_in"`
	Record    *AttendanceView `json:"record,omitempty"`
}

// TodayStatus 查询当日考勤
func (s *AttendanceService) TodayStatus(ctx context.Context, actorID string) (*TodayStatusResponse, error) {
	rec, err := s.attendance.GetTodayByUser(ctx, actorID, time.Now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &TodayStatusResponse{CheckedIn: false}, nil
		}
		return nil, err
	}
	return &TodayStatusResponse{CheckedIn: true, Record: newAttendanceView(rec)}, nil
}

// ListAttendanceRequest 考勤历史请求
type ListAttendanceRequest struct {
	UserID string `json:"user_id"`
	From   string `json:"from"` // YYYY-MM-DD
	To     string `json:"to"`
}

// ListAttendanceResponse 考勤历史响应
type ListAttendanceResponse struct {
	Records []*AttendanceView `json:"records"`
	Total   int               `json:"total"`
}

// ListAttendance 考勤历史：工人只能看自己，上级按农场可见范围
func (s *AttendanceService) ListAttendance(ctx context.Context, actorID string, req *ListAttendanceRequest) (*ListAttendanceResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	filters := repository.AttendanceFilters{UserID: req.UserID}
	switch actor.Role {
	case domain.RoleSystemAdmin:
		// 不限范围
	case domain.RoleWorker:
		filters.UserID = actorID
	default:
		farmIDs, _ := s.resolver.visibleFarmIDs(actor)
		if len(farmIDs) == 0 {
			return &ListAttendanceResponse{Records: []*AttendanceView{}}, nil
		}
		filters.FarmIDs = farmIDs
	}

	if req.From != "" {
		from, err := time.Parse("2006-01-02", req.From)
		if err != nil {
			return nil, domain.Validation("invalid from date, expected YYYY-MM-DD")
		}
		filters.From = &from
	}
	if req.To != "" {
		to, err := time.Parse("2006-01-02", req.To)
		if err != nil {
			return nil, domain.Validation("invalid to date, expected YYYY-MM-DD")
		}
		// 含当日
		end := to.AddDate(0, 0, 1)
		filters.To = &end
	}

	records, err := s.attendance.ListAttendance(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &ListAttendanceResponse{Records: newAttendanceViews(records), Total: len(records)}, nil
}
