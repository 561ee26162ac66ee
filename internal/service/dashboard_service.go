package service

import (
	"context"
	"time"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/policy"
	"smartfarm-backend/internal/repository"

	"go.uber.org/zap"
)

// DashboardService 首页看板聚合
type DashboardService struct {
	users        repository.UsersRepository
	farms        repository.FarmsRepository
	tasks        repository.TasksRepository
	crops        repository.CropsRepository
	livestock    repository.LivestockRepository
	applications repository.ApplicationsRepository
	messages     repository.MessagesRepository
	attendance   repository.AttendanceRepository
	resolver     *ActorResolver
	logger       *zap.Logger
}

// NewDashboardService 创建看板服务
func NewDashboardService(
	users repository.UsersRepository,
	farms repository.FarmsRepository,
	tasks repository.TasksRepository,
	crops repository.CropsRepository,
	livestock repository.LivestockRepository,
	applications repository.ApplicationsRepository,
	messages repository.MessagesRepository,
	attendance repository.AttendanceRepository,
	resolver *ActorResolver,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		users:        users,
		farms:        farms,
		tasks:        tasks,
		crops:        crops,
		livestock:    livestock,
		applications: applications,
		messages:     messages,
		attendance:   attendance,
		resolver:     resolver,
		logger:       logger,
	}
}

// DashboardResponse 看板响应（按角色返回不同的统计集）
type DashboardResponse struct {
	Role  string         `json:"role"`
	Stats map[string]any `json:"stats"`
}

// Dashboard 按角色聚合看板统计
func (s *DashboardService) Dashboard(ctx context.Context, actorID string) (*DashboardResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var stats map[string]any
	switch actor.Role {
	case domain.RoleSystemAdmin:
		stats, err = s.adminStats(ctx)
	case domain.RoleFarmOwner:
		stats, err = s.ownerStats(ctx, actor)
	case domain.RoleSupervisor:
		stats, err = s.supervisorStats(ctx, actor)
	default:
		stats, err = s.workerStats(ctx, actor)
	}
	if err != nil {
		return nil, err
	}

	unread, err := s.messages.CountUnread(ctx, actorID)
	if err != nil {
		return nil, err
	}
	stats["unread_messages"] = unread

	return &DashboardResponse{Role: string(actor.Role), Stats: stats}, nil
}

// adminStats 平台级统计
func (s *DashboardService) adminStats(ctx context.Context) (map[string]any, error) {
	totalFarms, err := s.farms.CountFarms(ctx)
	if err != nil {
		return nil, err
	}
	owners, err := s.users.CountByRole(ctx, domain.RoleFarmOwner)
	if err != nil {
		return nil, err
	}
	supervisors, err := s.users.CountByRole(ctx, domain.RoleSupervisor)
	if err != nil {
		return nil, err
	}
	workers, err := s.users.CountByRole(ctx, domain.RoleWorker)
	if err != nil {
		return nil, err
	}
	pendingApps, err := s.applications.CountByStatus(ctx, domain.ApplicationPending)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.tasks.CountByStatus(ctx, repository.TaskFilters{})
	if err != nil {
		return nil, err
	}

	totalTasks := 0
	for _, n := range byStatus {
		totalTasks += n
	}
	return map[string]any{
		"total_farms":          totalFarms,
		"total_farm_owners":    owners,
		"total_supervisors":    supervisors,
		"total_workers":        workers,
		"pending_applications": pendingApps,
		"total_tasks":          totalTasks,
		"completed_tasks":      byStatus[domain.TaskCompleted],
	}, nil
}

// ownerStats 农场主统计（自有农场维度）
func (s *DashboardService) ownerStats(ctx context.Context, actor policy.Actor) (map[string]any, error) {
	stats := map[string]any{
		"total_farms": len(actor.OwnedFarmIDs),
	}
	if len(actor.OwnedFarmIDs) == 0 {
		stats["total_supervisors"] = 0
		stats["total_workers"] = 0
		stats["total_tasks"] = 0
		stats["total_crops"] = 0
		stats["total_livestock"] = 0
		return stats, nil
	}

	supervisors := 0
	workers := 0
	crops := 0
	livestock := 0
	for _, farmID := range actor.OwnedFarmIDs {
		n, err := s.users.CountByFarmAndRole(ctx, farmID, domain.RoleSupervisor)
		if err != nil {
			return nil, err
		}
		supervisors += n
		n, err = s.users.CountByFarmAndRole(ctx, farmID, domain.RoleWorker)
		if err != nil {
			return nil, err
		}
		workers += n
		n, err = s.crops.CountByFarm(ctx, farmID)
		if err != nil {
			return nil, err
		}
		crops += n
		n, err = s.livestock.CountByFarm(ctx, farmID)
		if err != nil {
			return nil, err
		}
		livestock += n
	}

	filters := repository.TaskFilters{FarmIDs: actor.OwnedFarmIDs}
	byStatus, err := s.tasks.CountByStatus(ctx, filters)
	if err != nil {
		return nil, err
	}
	overdue, err := s.tasks.CountOverdue(ctx, filters, time.Now())
	if err != nil {
		return nil, err
	}
	totalTasks := 0
	for _, n := range byStatus {
		totalTasks += n
	}

	stats["total_supervisors"] = supervisors
	stats["total_workers"] = workers
	stats["total_tasks"] = totalTasks
	stats["completed_tasks"] = byStatus[domain.TaskCompleted]
	stats["overdue_tasks"] = overdue
	stats["total_crops"] = crops
	stats["total_livestock"] = livestock
	return stats, nil
}

// supervisorStats 主管统计（归属农场 + 自建任务）
func (s *DashboardService) supervisorStats(ctx context.Context, actor policy.Actor) (map[string]any, error) {
	workers := 0
	if actor.AssignedFarmID != "" {
		n, err := s.users.CountByFarmAndRole(ctx, actor.AssignedFarmID, domain.RoleWorker)
		if err != nil {
			return nil, err
		}
		workers = n
	}

	filters := repository.TaskFilters{CreatedByID: actor.UserID}
	if actor.AssignedFarmID != "" {
		filters.FarmIDs = []string{actor.AssignedFarmID}
	}
	byStatus, err := s.tasks.CountByStatus(ctx, filters)
	if err != nil {
		return nil, err
	}
	overdue, err := s.tasks.CountOverdue(ctx, filters, time.Now())
	if err != nil {
		return nil, err
	}
	totalTasks := 0
	for _, n := range byStatus {
		totalTasks += n
	}

	return map[string]any{
		"supervised_farms": len(actor.SupervisedFarmIDs),
		"total_workers":    workers,
		"total_tasks":      totalTasks,
		"pending_tasks":    byStatus[domain.TaskPending],
		"in_progress":      byStatus[domain.TaskInProgress],
		"completed_tasks":  byStatus[domain.TaskCompleted],
		"overdue_tasks":    overdue,
	}, nil
}

// workerStats 工人统计（派给自己的任务 + 本月出勤）
func (s *DashboardService) workerStats(ctx context.Context, actor policy.Actor) (map[string]any, error) {
	filters := repository.TaskFilters{AssignedToID: actor.UserID}
	byStatus, err := s.tasks.CountByStatus(ctx, filters)
	if err != nil {
		return nil, err
	}
	overdue, err := s.tasks.CountOverdue(ctx, filters, time.Now())
	if err != nil {
		return nil, err
	}
	totalTasks := 0
	for _, n := range byStatus {
		totalTasks += n
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	presentDays, err := s.attendance.CountPresentDays(ctx, actor.UserID, monthStart, now)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"total_tasks":        totalTasks,
		"pending_tasks":      byStatus[domain.TaskPending],
		"in_progress":        byStatus[domain.TaskInProgress],
		"completed_tasks":    byStatus[domain.TaskCompleted],
		"overdue_tasks":      overdue,
		"present_days_month": presentDays,
	}, nil
}
