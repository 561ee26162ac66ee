package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/policy"
	"smartfarm-backend/internal/repository"

	"go.uber.org/zap"
)

// TaskView 对外任务视图
type TaskView struct {
	TaskID                  string  `json:"task_id"`
	Title                   string  `json:"title"`
	Description             string  `json:"description,omitempty"`
	Category                string  `json:"category,omitempty"`
	Status                  string  `json:"status"`
	Priority                string  `json:"priority"`
	AssignedToID            string  `json:"assigned_to_id"`
	CreatedByID             string  `json:"created_by_id"`
	FarmID                  string  `json:"farm_id"`
	DueDate                 string  `json:"due_date,omitempty"`
	StartedAt               string  `json:"started_at,omitempty"`
	CompletedAt             string  `json:"completed_at,omitempty"`
	EstimatedHours          float64 `json:"estimated_hours,omitempty"`
	ActualHours             float64 `json:"actual_hours,omitempty"`
	CompletionNotes         string  `json:"completion_notes,omitempty"`
	ReasonForDelay          string  `json:"reason_for_delay,omitempty"`
	EstimatedCompletionDate string  `json:"estimated_completion_date,omitempty"`
	PhotoURL                string  `json:"photo_url,omitempty"`
	CreatedAt               string  `json:"created_at"`
}

// newTaskView 构造任务视图
func newTaskView(t *domain.Task) *TaskView {
	v := &TaskView{
		TaskID:       t.TaskID,
		Title:        t.Title,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		AssignedToID: t.AssignedToID,
		CreatedByID:  t.CreatedByID,
		FarmID:       t.FarmID,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}
	if t.Description.Valid {
		v.Description = t.Description.String
	}
	if t.Category.Valid {
		v.Category = t.Category.String
	}
	if t.DueDate.Valid {
		v.DueDate = t.DueDate.Time.Format(time.RFC3339)
	}
	if t.StartedAt.Valid {
		v.StartedAt = t.StartedAt.Time.Format(time.RFC3339)
	}
	if t.CompletedAt.Valid {
		v.CompletedAt = t.CompletedAt.Time.Format(time.RFC3339)
	}
	if t.EstimatedHours.Valid {
		v.EstimatedHours = t.EstimatedHours.Float64
	}
	if t.ActualHours.Valid {
		v.ActualHours = t.ActualHours.Float64
	}
	if t.CompletionNotes.Valid {
		v.CompletionNotes = t.CompletionNotes.String
	}
	if t.ReasonForDelay.Valid {
		v.ReasonForDelay = t.ReasonForDelay.String
	}
	if t.EstimatedCompletionDate.Valid {
		v.EstimatedCompletionDate = t.EstimatedCompletionDate.Time.Format("2006-01-02")
	}
	if t.PhotoURL.Valid {
		v.PhotoURL = t.PhotoURL.String
	}
	return v
}

// newTaskViews 批量构造任务视图
func newTaskViews(tasks []*domain.Task) []*TaskView {
	views := make([]*TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, newTaskView(t))
	}
	return views
}

// TaskService 任务管理
type TaskService struct {
	tasks    repository.TasksRepository
	users    repository.UsersRepository
	farms    repository.FarmsRepository
	resolver *ActorResolver
	mail     *MailClient
	notify   *NotificationService
	logger   *zap.Logger
}

// NewTaskService 创建任务服务
func NewTaskService(
	tasks repository.TasksRepository,
	users repository.UsersRepository,
	farms repository.FarmsRepository,
	resolver *ActorResolver,
	mail *MailClient,
	notify *NotificationService,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		tasks:    tasks,
		users:    users,
		farms:    farms,
		resolver: resolver,
		mail:     mail,
		notify:   notify,
		logger:   logger,
	}
}

// scopedFilters 按调用者角色构造可见范围过滤器
// 第二个返回值为 false 表示可见范围为空集（无需查库）。
// 任务只属于主管/工人视角：主管看自建且在归属农场的任务，
// 工人看派给自己的，管理员和 owner 在任务列表里是空集
func (s *TaskService) scopedFilters(actor policy.Actor) (repository.TaskFilters, bool) {
	filters := repository.TaskFilters{}
	switch actor.Role {
	case domain.RoleSupervisor:
		if actor.AssignedFarmID == "" {
			return filters, false
		}
		filters.CreatedByID = actor.UserID
		filters.FarmIDs = []string{actor.AssignedFarmID}
	case domain.RoleWorker:
		filters.AssignedToID = actor.UserID
	default:
		return filters, false
	}
	return filters, true
}

// ListTasksRequest 任务列表请求
type ListTasksRequest struct {
	Status string `json:"status"`
}

// ListTasksResponse 任务列表响应
type ListTasksResponse struct {
	Tasks []*TaskView `json:"tasks"`
	Total int         `json:"total"`
}

// ListTasks 按角色可见范围列任务
func (s *TaskService) ListTasks(ctx context.Context, actorID string, req *ListTasksRequest) (*ListTasksResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	filters, ok := s.scopedFilters(actor)
	if !ok {
		return &ListTasksResponse{Tasks: []*TaskView{}}, nil
	}
	if req.Status != "" {
		status := domain.TaskStatus(strings.ToUpper(req.Status))
		if !status.Valid() {
			return nil, domain.Validation(fmt.Sprintf("unknown task status: %s", req.Status))
		}
		filters.Status = status
	}

	tasks, err := s.tasks.ListTasks(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &ListTasksResponse{Tasks: newTaskViews(tasks), Total: len(tasks)}, nil
}

// TodayTasks 当日到期的可见任务
func (s *TaskService) TodayTasks(ctx context.Context, actorID string) (*ListTasksResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	filters, ok := s.scopedFilters(actor)
	if !ok {
		return &ListTasksResponse{Tasks: []*TaskView{}}, nil
	}
	today := time.Now()
	filters.DueOn = &today

	tasks, err := s.tasks.ListTasks(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &ListTasksResponse{Tasks: newTaskViews(tasks), Total: len(tasks)}, nil
}

// GetTask 查看单个任务
func (s *TaskService) GetTask(ctx context.Context, actorID, taskID string) (*TaskView, error) {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewTask(actor, task) {
		return nil, domain.ErrPermissionDenied
	}
	return newTaskView(task), nil
}

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Priority       string  `json:"priority"`
	AssignedToID   string  `json:"assigned_to_id"`
	DueDate        string  `json:"due_date"` // RFC3339
	EstimatedHours float64 `json:"estimated_hours"`
}

// CreateTask 主管给同农场工人派任务
//
// 业务校验：创建者必须是已有归属农场的 SUPERVISOR，被派对象必须是
// 同农场的 WORKER。
func (s *TaskService) CreateTask(ctx context.Context, actorID string, req *CreateTaskRequest) (*TaskView, error) {
	if req.Title == "" {
		return nil, domain.Validation("title is required")
	}
	if req.AssignedToID == "" {
		return nil, domain.Validation("assigned_to_id is required")
	}

	_, creatorActor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	assignee, err := s.users.GetUser(ctx, req.AssignedToID)
	if err != nil {
		return nil, err
	}
	assigneeActor, err := s.resolver.ActorFor(ctx, assignee)
	if err != nil {
		return nil, err
	}
	if err := policy.CanCreateTask(creatorActor, assigneeActor); err != nil {
		return nil, mapTaskPolicyError(err)
	}

	task := &domain.Task{
		Title:        req.Title,
		Status:       domain.TaskPending,
		Priority:     domain.PriorityMedium,
		AssignedToID: req.AssignedToID,
		CreatedByID:  actorID,
		FarmID:       creatorActor.AssignedFarmID,
	}
	if req.Priority != "" {
		priority := domain.TaskPriority(strings.ToUpper(req.Priority))
		if !priority.Valid() {
			return nil, domain.Validation(fmt.Sprintf("unknown task priority: %s", req.Priority))
		}
		task.Priority = priority
	}
	if req.Description != "" {
		task.Description.String, task.Description.Valid = req.Description, true
	}
	if req.Category != "" {
		task.Category.String, task.Category.Valid = req.Category, true
	}
	if req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			return nil, domain.Validation("invalid due_date, expected RFC3339 timestamp")
		}
		task.DueDate.Time, task.DueDate.Valid = due, true
	}
	if req.EstimatedHours > 0 {
		task.EstimatedHours.Float64, task.EstimatedHours.Valid = req.EstimatedHours, true
	}

	taskID, err := s.tasks.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	created, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task created",
		zap.String("task_id", taskID),
		zap.String("assigned_to", req.AssignedToID),
		zap.String("created_by", actorID),
	)
	s.notifyAssignment(ctx, assignee, created)

	return newTaskView(created), nil
}

// mapTaskPolicyError 把策略错误映射为业务错误
func mapTaskPolicyError(err error) error {
	switch {
	case errors.Is(err, policy.ErrCreatorNotSupervisor):
		return fmt.Errorf("%w: only supervisors can create tasks", domain.ErrInvalidRole)
	case errors.Is(err, policy.ErrCreatorUnassigned):
		return fmt.Errorf("%w: supervisor has no assigned farm", domain.ErrPreconditionFailed)
	case errors.Is(err, policy.ErrAssigneeNotWorker):
		return fmt.Errorf("%w: tasks can only be assigned to workers", domain.ErrInvalidRole)
	case errors.Is(err, policy.ErrCrossFarmAssignment):
		return fmt.Errorf("%w: worker belongs to a different farm", domain.ErrInvalidAssignment)
	}
	return err
}

// notifyAssignment 任务派发：邮件 + 站内通知
func (s *TaskService) notifyAssignment(ctx context.Context, assignee *domain.User, task *domain.Task) {
	farmName := task.FarmID
	if farm, err := s.farms.GetFarm(ctx, task.FarmID); err == nil {
		farmName = farm.Name
	}
	due := ""
	if task.DueDate.Valid {
		due = task.DueDate.Time.Format("2006-01-02")
	}
	s.mail.SendTaskAssignment(assignee.Email, assignee.FullName(), task.Title, farmName, due)
	s.notify.Push(ctx, assignee.UserID, &Notification{
		Type:  "task",
		Title: "New task assigned",
		Body:  fmt.Sprintf("You have a new task on %s: %s", farmName, task.Title),
		RefID: task.TaskID,
	})
}

// UpdateTaskStatusRequest 任务状态变更请求
type UpdateTaskStatusRequest struct {
	Status                  string  `json:"status"`
	ActualHours             float64 `json:"actual_hours"`
	CompletionNotes         string  `json:"completion_notes"`
	ReasonForDelay          string  `json:"reason_for_delay"`
	EstimatedCompletionDate string  `json:"estimated_completion_date"` // YYYY-MM-DD
	PhotoURL                string  `json:"photo_url"`
}

// UpdateTaskStatus 变更任务状态（任意状态间可迁移，时间戳首次进入时补记）
func (s *TaskService) UpdateTaskStatus(ctx context.Context, actorID, taskID string, req *UpdateTaskStatusRequest) (*TaskView, error) {
	status := domain.TaskStatus(strings.ToUpper(req.Status))
	if !status.Valid() {
		return nil, domain.Validation(fmt.Sprintf("unknown task status: %s", req.Status))
	}

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !policy.CanUpdateTaskStatus(actor, task) {
		return nil, domain.ErrPermissionDenied
	}

	now := time.Now()
	patch := &domain.Task{Status: status}
	if status == domain.TaskInProgress && !task.StartedAt.Valid {
		patch.StartedAt.Time, patch.StartedAt.Valid = now, true
	}
	if status == domain.TaskCompleted && !task.CompletedAt.Valid {
		patch.CompletedAt.Time, patch.CompletedAt.Valid = now, true
	}
	if req.ActualHours > 0 {
		patch.ActualHours.Float64, patch.ActualHours.Valid = req.ActualHours, true
	}
	if req.CompletionNotes != "" {
		patch.CompletionNotes.String, patch.CompletionNotes.Valid = req.CompletionNotes, true
	}
	if req.ReasonForDelay != "" {
		patch.ReasonForDelay.String, patch.ReasonForDelay.Valid = req.ReasonForDelay, true
	}
	if req.EstimatedCompletionDate != "" {
		d, err := time.Parse("2006-01-02", req.EstimatedCompletionDate)
		if err != nil {
			return nil, domain.Validation("invalid estimated_completion_date, expected YYYY-MM-DD")
		}
		patch.EstimatedCompletionDate.Time, patch.EstimatedCompletionDate.Valid = d, true
	}
	if req.PhotoURL != "" {
		patch.PhotoURL.String, patch.PhotoURL.Valid = req.PhotoURL, true
	}

	if err := s.tasks.UpdateTask(ctx, taskID, patch); err != nil {
		return nil, err
	}
	updated, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task status updated",
		zap.String("task_id", taskID),
		zap.String("status", string(status)),
		zap.String("updated_by", actorID),
	)
	if status == domain.TaskCompleted && actorID == task.AssignedToID {
		s.notifyCompletion(ctx, updated)
	}

	return newTaskView(updated), nil
}

// notifyCompletion 完成回执发给创建主管（邮件 + 站内通知）
func (s *TaskService) notifyCompletion(ctx context.Context, task *domain.Task) {
	creator, err := s.users.GetUser(ctx, task.CreatedByID)
	if err != nil {
		s.logger.Warn("Failed to load task creator for completion email", zap.Error(err))
		return
	}
	worker, err := s.users.GetUser(ctx, task.AssignedToID)
	if err != nil {
		s.logger.Warn("Failed to load task assignee for completion email", zap.Error(err))
		return
	}
	s.mail.SendTaskCompletion(creator.Email, creator.FullName(), worker.FullName(), task.Title)
	s.notify.Push(ctx, creator.UserID, &Notification{
		Type:  "task",
		Title: "Task completed",
		Body:  fmt.Sprintf("%s marked the task %q as completed", worker.FullName(), task.Title),
		RefID: task.TaskID,
	})
}

// DeleteTask 删除任务（管理员或创建主管）
func (s *TaskService) DeleteTask(ctx context.Context, actorID, taskID string) error {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return err
	}
	if !policy.CanDeleteTask(actor, task) {
		return domain.ErrPermissionDenied
	}
	if err := s.tasks.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.logger.Info("Task deleted",
		zap.String("task_id", taskID),
		zap.String("deleted_by", actorID),
	)
	return nil
}

// TaskStatsResponse 任务统计响应
type TaskStatsResponse struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	Overdue    int            `json:"overdue"`
	Completed  int            `json:"completed"`
	InProgress int            `json:"in_progress"`
	Pending    int            `json:"pending"`
}

// TaskStats 可见范围内的任务统计
func (s *TaskService) TaskStats(ctx context.Context, actorID string) (*TaskStatsResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	filters, ok := s.scopedFilters(actor)
	if !ok {
		return &TaskStatsResponse{ByStatus: map[string]int{}}, nil
	}

	byStatus, err := s.tasks.CountByStatus(ctx, filters)
	if err != nil {
		return nil, err
	}
	overdue, err := s.tasks.CountOverdue(ctx, filters, time.Now())
	if err != nil {
		return nil, err
	}

	resp := &TaskStatsResponse{
		ByStatus: make(map[string]int, len(byStatus)),
		Overdue:  overdue,
	}
	for status, n := range byStatus {
		resp.ByStatus[string(status)] = n
		resp.Total += n
	}
	resp.Completed = byStatus[domain.TaskCompleted]
	resp.InProgress = byStatus[domain.TaskInProgress]
	resp.Pending = byStatus[domain.TaskPending]
	return resp, nil
}
