package repository

import (
	"context"
	"time"

	"smartfarm-backend/internal/domain"
)

// TasksRepository 任务 Repository 接口
type TasksRepository interface {
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, filters TaskFilters) ([]*domain.Task, error)
	CreateTask(ctx context.Context, task *domain.Task) (string, error)
	UpdateTask(ctx context.Context, taskID string, task *domain.Task) error
	DeleteTask(ctx context.Context, taskID string) error
	CountByStatus(ctx context.Context, filters TaskFilters) (map[domain.TaskStatus]int, error)
	CountOverdue(ctx context.Context, filters TaskFilters, now time.Time) (int, error)
}

// TaskFilters 任务查询过滤器，条件之间取交集；
// 全空表示不限范围（报表等内部聚合）
type TaskFilters struct {
	CreatedByID  string
	AssignedToID string
	FarmIDs      []string
	Status       domain.TaskStatus
	DueOn        *time.Time // 截止日为某一天（当日任务）
}
