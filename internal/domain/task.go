package domain

import (
	"database/sql"
	"time"
)

// TaskStatus 任务状态
// 状态机允许任意迁移（含回退），时间戳只在首次进入对应状态时补记
type TaskStatus string

const (
	TaskPending        TaskStatus = "PENDING"
	TaskInProgress     TaskStatus = "IN_PROGRESS"
	TaskCompleted      TaskStatus = "COMPLETED"
	TaskNotDone        TaskStatus = "NOT_DONE"
	TaskToBeDoneLater  TaskStatus = "TO_BE_DONE_LATER"
	TaskCancelled      TaskStatus = "CANCELLED"
)

// Valid 是否为已知状态
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskNotDone, TaskToBeDoneLater, TaskCancelled:
		return true
	}
	return false
}

// TaskPriority 任务优先级
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// Valid 是否为已知优先级
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task 任务领域模型（对应 tasks 表）
type Task struct {
	TaskID      string         `db:"task_id"`
	Title       string         `db:"title"` // NOT NULL
	Description sql.NullString `db:"description"`
	Category    sql.NullString `db:"category"`
	Status      TaskStatus     `db:"status"`   // default PENDING
	Priority    TaskPriority   `db:"priority"` // default MEDIUM

	AssignedToID string `db:"assigned_to_id"` // NOT NULL FK users（WORKER）
	CreatedByID  string `db:"created_by_id"`  // NOT NULL FK users（SUPERVISOR）
	FarmID       string `db:"farm_id"`        // NOT NULL FK farms

	DueDate     sql.NullTime `db:"due_date"`
	StartedAt   sql.NullTime `db:"started_at"`
	CompletedAt sql.NullTime `db:"completed_at"`

	EstimatedHours sql.NullFloat64 `db:"estimated_hours"`
	ActualHours    sql.NullFloat64 `db:"actual_hours"`

	CompletionNotes         sql.NullString `db:"completion_notes"`
	ReasonForDelay          sql.NullString `db:"reason_for_delay"`
	EstimatedCompletionDate sql.NullTime   `db:"estimated_completion_date"`
	PhotoURL                sql.NullString `db:"photo_url"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
