package service

import (
	"context"
	"time"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/policy"
	"smartfarm-backend/internal/repository"

	"go.uber.org/zap"
)

// WorkerStatsView 单个工人的绩效统计
type WorkerStatsView struct {
	Worker          *UserView `json:"worker"`
	TotalTasks      int       `json:"total_tasks"`
	CompletedTasks  int       `json:"completed_tasks"`
	PendingTasks    int       `json:"pending_tasks"`
	InProgressTasks int       `json:"in_progress_tasks"`
	OverdueTasks    int       `json:"overdue_tasks"`
	CompletionRate  float64   `json:"completion_rate"`
	PresentDays     int       `json:"present_days"`
	TotalHours      float64   `json:"total_hours"`
}

// WorkerStatsService 工人绩效统计（主管/农场主视角）
type WorkerStatsService struct {
	users      repository.UsersRepository
	tasks      repository.TasksRepository
	attendance repository.AttendanceRepository
	resolver   *ActorResolver
	logger     *zap.Logger
}

// NewWorkerStatsService 创建工人统计服务
func NewWorkerStatsService(
	users repository.UsersRepository,
	tasks repository.TasksRepository,
	attendance repository.AttendanceRepository,
	resolver *ActorResolver,
	logger *zap.Logger,
) *WorkerStatsService {
	return &WorkerStatsService{
		users:      users,
		tasks:      tasks,
		attendance: attendance,
		resolver:   resolver,
		logger:     logger,
	}
}

// statsForWorker 聚合单个工人的任务与出勤指标
func (s *WorkerStatsService) statsForWorker(ctx context.Context, worker *domain.User, from, to time.Time) (*WorkerStatsView, error) {
	filters := repository.TaskFilters{AssignedToID: worker.UserID}
	byStatus, err := s.tasks.CountByStatus(ctx, filters)
	if err != nil {
		return nil, err
	}
	overdue, err := s.tasks.CountOverdue(ctx, filters, time.Now())
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}
	view := &WorkerStatsView{
		Worker:          newUserView(worker),
		TotalTasks:      total,
		CompletedTasks:  byStatus[domain.TaskCompleted],
		PendingTasks:    byStatus[domain.TaskPending],
		InProgressTasks: byStatus[domain.TaskInProgress],
		OverdueTasks:    overdue,
	}
	if total > 0 {
		view.CompletionRate = float64(view.CompletedTasks) / float64(total) * 100
	}

	presentDays, err := s.attendance.CountPresentDays(ctx, worker.UserID, from, to)
	if err != nil {
		return nil, err
	}
	view.PresentDays = presentDays

	records, err := s.attendance.ListAttendance(ctx, repository.AttendanceFilters{
		UserID: worker.UserID,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.TotalHours.Valid {
			view.TotalHours += rec.TotalHours.Float64
		}
	}
	return view, nil
}

// statsPeriod 统计区间（默认最近 30 天）
func statsPeriod(fromRaw, toRaw string) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now
	if fromRaw != "" {
		parsed, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return from, to, domain.Validation("invalid from date, expected YYYY-MM-DD")
		}
		from = parsed
	}
	if toRaw != "" {
		parsed, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return from, to, domain.Validation("invalid to date, expected YYYY-MM-DD")
		}
		to = parsed.AddDate(0, 0, 1)
	}
	return from, to, nil
}

// WorkerStatsRequest 工人统计请求
type WorkerStatsRequest struct {
	From string `json:"from"` // YYYY-MM-DD
	To   string `json:"to"`
}

// WorkerStatsResponse 工人统计响应
type WorkerStatsResponse struct {
	Stats []*WorkerStatsView `json:"stats"`
}

// TeamStats 可管理农场下全部工人的绩效（管理员为全平台工人）
func (s *WorkerStatsService) TeamStats(ctx context.Context, actorID string, req *WorkerStatsRequest) (*WorkerStatsResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleWorker {
		return nil, domain.ErrPermissionDenied
	}

	from, to, err := statsPeriod(req.From, req.To)
	if err != nil {
		return nil, err
	}

	filters := repository.UserFilters{
		Role:       domain.RoleWorker,
		ActiveOnly: true,
	}
	if actor.Role != domain.RoleSystemAdmin {
		farmIDs := managedFarmIDs(actor)
		if len(farmIDs) == 0 {
			return &WorkerStatsResponse{Stats: []*WorkerStatsView{}}, nil
		}
		filters.FarmIDs = farmIDs
	}

	workers, err := s.users.ListUsers(ctx, filters)
	if err != nil {
		return nil, err
	}

	stats := make([]*WorkerStatsView, 0, len(workers))
	for _, worker := range workers {
		view, err := s.statsForWorker(ctx, worker, from, to)
		if err != nil {
			return nil, err
		}
		stats = append(stats, view)
	}
	return &WorkerStatsResponse{Stats: stats}, nil
}

// WorkerStats 单个工人的绩效（本人或其可见上级）
func (s *WorkerStatsService) WorkerStats(ctx context.Context, actorID, workerID string, req *WorkerStatsRequest) (*WorkerStatsView, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	worker, err := s.users.GetUser(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if worker.Role != domain.RoleWorker {
		return nil, domain.ErrInvalidRole
	}
	if actorID != workerID {
		workerActor, err := s.resolver.ActorFor(ctx, worker)
		if err != nil {
			return nil, err
		}
		if !policy.CanViewUser(actor, workerActor) {
			return nil, domain.ErrPermissionDenied
		}
	}

	from, to, err := statsPeriod(req.From, req.To)
	if err != nil {
		return nil, err
	}
	return s.statsForWorker(ctx, worker, from, to)
}
