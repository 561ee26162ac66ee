package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartfarm-backend/internal/domain"

	"github.com/lib/pq"
)

// PostgresTasksRepository 任务 Repository 实现
type PostgresTasksRepository struct {
	db *sql.DB
}

// NewPostgresTasksRepository 创建任务 Repository
func NewPostgresTasksRepository(db *sql.DB) *PostgresTasksRepository {
	return &PostgresTasksRepository{db: db}
}

var _ TasksRepository = (*PostgresTasksRepository)(nil)

const taskColumns = `
	task_id::text,
	title,
	description,
	category,
	status,
	priority,
	assigned_to_id::text,
	created_by_id::text,
	farm_id::text,
	due_date,
	started_at,
	completed_at,
	estimated_hours,
	actual_hours,
	completion_notes,
	reason_for_delay,
	estimated_completion_date,
	photo_url,
	created_at,
	updated_at
`

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.TaskID,
		&task.Title,
		&task.Description,
		&task.Category,
		&task.Status,
		&task.Priority,
		&task.AssignedToID,
		&task.CreatedByID,
		&task.FarmID,
		&task.DueDate,
		&task.StartedAt,
		&task.CompletedAt,
		&task.EstimatedHours,
		&task.ActualHours,
		&task.CompletionNotes,
		&task.ReasonForDelay,
		&task.EstimatedCompletionDate,
		&task.PhotoURL,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask 获取任务
func (r *PostgresTasksRepository) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	if taskID == "" {
		return nil, domain.ErrNotFound
	}
	task, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE task_id = $1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return task, err
}

// buildTaskWhere 由过滤器拼接 WHERE 子句，所有条件取交集
// （主管视角需要 created_by 与 farm 同时命中）
func buildTaskWhere(filters TaskFilters) (string, []any) {
	args := []any{}
	argIdx := 1

	where := []string{"TRUE"}
	if filters.CreatedByID != "" {
		where = append(where, fmt.Sprintf("created_by_id = $%d", argIdx))
		args = append(args, filters.CreatedByID)
		argIdx++
	}
	if filters.AssignedToID != "" {
		where = append(where, fmt.Sprintf("assigned_to_id = $%d", argIdx))
		args = append(args, filters.AssignedToID)
		argIdx++
	}
	if len(filters.FarmIDs) > 0 {
		where = append(where, fmt.Sprintf("farm_id = ANY($%d::uuid[])", argIdx))
		args = append(args, pq.Array(filters.FarmIDs))
		argIdx++
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filters.Status)
		argIdx++
	}
	if filters.DueOn != nil {
		where = append(where, fmt.Sprintf("due_date::date = $%d::date", argIdx))
		args = append(args, *filters.DueOn)
		argIdx++
	}
	return strings.Join(where, " AND "), args
}

// ListTasks 按过滤器列出任务
func (r *PostgresTasksRepository) ListTasks(ctx context.Context, filters TaskFilters) ([]*domain.Task, error) {
	where, args := buildTaskWhere(filters)
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + where + ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CreateTask 创建任务
func (r *PostgresTasksRepository) CreateTask(ctx context.Context, task *domain.Task) (string, error) {
	if task == nil {
		return "", fmt.Errorf("task is required")
	}
	if task.Title == "" {
		return "", fmt.Errorf("title is required")
	}

	status := task.Status
	if status == "" {
		status = domain.TaskPending
	}
	priority := task.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	var taskID string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tasks (
			title, description, category, status, priority,
			assigned_to_id, created_by_id, farm_id,
			due_date, estimated_hours, photo_url
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING task_id::text
	`,
		task.Title,
		toAnyString(task.Description),
		toAnyString(task.Category),
		status,
		priority,
		task.AssignedToID,
		task.CreatedByID,
		task.FarmID,
		toAnyTime(task.DueDate),
		toAnyFloat(task.EstimatedHours),
		toAnyString(task.PhotoURL),
	).Scan(&taskID)
	if err != nil {
		return "", fmt.Errorf("failed to insert task: %w", err)
	}
	return taskID, nil
}

// UpdateTask 更新任务（状态机字段 + 执行备注，零值不更新）
func (r *PostgresTasksRepository) UpdateTask(ctx context.Context, taskID string, task *domain.Task) error {
	if taskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if task == nil {
		return fmt.Errorf("task is required")
	}

	updates := []string{"updated_at = NOW()"}
	args := []any{taskID}
	argIdx := 2

	if task.Title != "" {
		updates = append(updates, fmt.Sprintf("title = $%d", argIdx))
		args = append(args, task.Title)
		argIdx++
	}
	if task.Description.Valid {
		updates = append(updates, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, task.Description)
		argIdx++
	}
	if task.Category.Valid {
		updates = append(updates, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, task.Category)
		argIdx++
	}
	if task.Status != "" {
		updates = append(updates, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, task.Status)
		argIdx++
	}
	if task.Priority != "" {
		updates = append(updates, fmt.Sprintf("priority = $%d", argIdx))
		args = append(args, task.Priority)
		argIdx++
	}
	if task.DueDate.Valid {
		updates = append(updates, fmt.Sprintf("due_date = $%d", argIdx))
		args = append(args, task.DueDate)
		argIdx++
	}
	if task.StartedAt.Valid {
		updates = append(updates, fmt.Sprintf("started_at = $%d", argIdx))
		args = append(args, task.StartedAt)
		argIdx++
	}
	if task.CompletedAt.Valid {
		updates = append(updates, fmt.Sprintf("completed_at = $%d", argIdx))
		args = append(args, task.CompletedAt)
		argIdx++
	}
	if task.EstimatedHours.Valid {
		updates = append(updates, fmt.Sprintf("estimated_hours = $%d", argIdx))
		args = append(args, task.EstimatedHours)
		argIdx++
	}
	if task.ActualHours.Valid {
		updates = append(updates, fmt.Sprintf("actual_hours = $%d", argIdx))
		args = append(args, task.ActualHours)
		argIdx++
	}
	if task.CompletionNotes.Valid {
		updates = append(updates, fmt.Sprintf("completion_notes = $%d", argIdx))
		args = append(args, task.CompletionNotes)
		argIdx++
	}
	if task.ReasonForDelay.Valid {
		updates = append(updates, fmt.Sprintf("reason_for_delay = $%d", argIdx))
		args = append(args, task.ReasonForDelay)
		argIdx++
	}
	if task.EstimatedCompletionDate.Valid {
		updates = append(updates, fmt.Sprintf("estimated_completion_date = $%d", argIdx))
		args = append(args, task.EstimatedCompletionDate)
		argIdx++
	}
	if task.PhotoURL.Valid {
		updates = append(updates, fmt.Sprintf("photo_url = $%d", argIdx))
		args = append(args, task.PhotoURL)
		argIdx++
	}

	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE task_id = $1`, strings.Join(updates, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteTask 删除任务
func (r *PostgresTasksRepository) DeleteTask(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task_id is required")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByStatus 可见范围内按状态统计
func (r *PostgresTasksRepository) CountByStatus(ctx context.Context, filters TaskFilters) (map[domain.TaskStatus]int, error) {
	where, args := buildTaskWhere(filters)
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE `+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[domain.TaskStatus]int{}
	for rows.Next() {
		var status domain.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CountOverdue 可见范围内的逾期任务数（未完结且已过期）
func (r *PostgresTasksRepository) CountOverdue(ctx context.Context, filters TaskFilters, now time.Time) (int, error) {
	where, args := buildTaskWhere(filters)
	args = append(args, now)
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM tasks WHERE %s
		 AND due_date IS NOT NULL AND due_date < $%d
		 AND status NOT IN ('COMPLETED', 'CANCELLED')`,
		where, len(args))

	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// toAnyTime sql.NullTime → 驱动参数
func toAnyTime(nt sql.NullTime) any {
	if nt.Valid {
		return nt.Time
	}
	return nil
}

// toAnyFloat sql.NullFloat64 → 驱动参数
func toAnyFloat(nf sql.NullFloat64) any {
	if nf.Valid {
		return nf.Float64
	}
	return nil
}
