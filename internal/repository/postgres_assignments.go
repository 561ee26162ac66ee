package repository

import (
	"context"
	"database/sql"
	"fmt"

	"smartfarm-backend/internal/domain"
)

// PostgresAssignmentsRepository 主管-农场分配 Repository 实现
// 写操作都在单事务内完成：先 FOR UPDATE 锁定主管的 users 行，
// 容量 ≤2 与重复检查在持锁状态下进行，并发 Assign 不会超配
type PostgresAssignmentsRepository struct {
	db *sql.DB
}

// NewPostgresAssignmentsRepository 创建分配 Repository
func NewPostgresAssignmentsRepository(db *sql.DB) *PostgresAssignmentsRepository {
	return &PostgresAssignmentsRepository{db: db}
}

var _ AssignmentsRepository = (*PostgresAssignmentsRepository)(nil)

// ListFarmIDsBySupervisor 主管负责的农场（分配时间升序，首条即顺位提升对象）
func (r *PostgresAssignmentsRepository) ListFarmIDsBySupervisor(ctx context.Context, supervisorID string) ([]string, error) {
	if supervisorID == "" {
		return []string{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT farm_id::text FROM supervisor_farm_assignments
		 WHERE supervisor_id = $1 ORDER BY assigned_at ASC`,
		supervisorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSupervisorIDsByFarm 农场的在任主管
func (r *PostgresAssignmentsRepository) ListSupervisorIDsByFarm(ctx context.Context, farmID string) ([]string, error) {
	if farmID == "" {
		return []string{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT supervisor_id::text FROM supervisor_farm_assignments
		 WHERE farm_id = $1 ORDER BY assigned_at ASC`,
		farmID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// lockSupervisorRow 锁定主管行并读出当前主农场
func lockSupervisorRow(ctx context.Context, tx *sql.Tx, supervisorID string) (sql.NullString, error) {
	var assigned sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT assigned_farm_id::text FROM users WHERE user_id = $1 FOR UPDATE`,
		supervisorID,
	).Scan(&assigned)
	if err == sql.ErrNoRows {
		return assigned, domain.ErrNotFound
	}
	return assigned, err
}

// listAssignedTx 持锁状态下读主管的分配（升序）
func listAssignedTx(ctx context.Context, tx *sql.Tx, supervisorID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT farm_id::text FROM supervisor_farm_assignments
		 WHERE supervisor_id = $1 ORDER BY assigned_at ASC`,
		supervisorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Assign 追加分配
// 检查顺序：容量 → 重复；首条分配同时写 users.assigned_farm_id
func (r *PostgresAssignmentsRepository) Assign(ctx context.Context, supervisorID, farmID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockSupervisorRow(ctx, tx, supervisorID); err != nil {
		return err
	}

	assigned, err := listAssignedTx(ctx, tx, supervisorID)
	if err != nil {
		return fmt.Errorf("failed to list assignments: %w", err)
	}
	if len(assigned) >= domain.MaxSupervisedFarms {
		return domain.ErrCapacityExceeded
	}
	for _, id := range assigned {
		if id == farmID {
			return domain.ErrAlreadyAssigned
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO supervisor_farm_assignments (supervisor_id, farm_id) VALUES ($1, $2)`,
		supervisorID, farmID,
	); err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}

	// 首条分配确立主农场
	if len(assigned) == 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET assigned_farm_id = $2, updated_at = NOW() WHERE user_id = $1`,
			supervisorID, farmID,
		); err != nil {
			return fmt.Errorf("failed to set primary farm: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Remove 解除分配
// 解除的是主农场时，顺位提升最早的剩余分配；没有剩余则清空
func (r *PostgresAssignmentsRepository) Remove(ctx context.Context, supervisorID, farmID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	assigned, err := lockSupervisorRow(ctx, tx, supervisorID)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM supervisor_farm_assignments WHERE supervisor_id = $1 AND farm_id = $2`,
		supervisorID, farmID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotAssigned
	}

	if assigned.Valid && assigned.String == farmID {
		remaining, err := listAssignedTx(ctx, tx, supervisorID)
		if err != nil {
			return fmt.Errorf("failed to list remaining assignments: %w", err)
		}
		var next any
		if len(remaining) > 0 {
			next = remaining[0]
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET assigned_farm_id = $2, updated_at = NOW() WHERE user_id = $1`,
			supervisorID, next,
		); err != nil {
			return fmt.Errorf("failed to promote primary farm: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reassign 原子换岗：from 解除 + to 建立，全部成功或全部不生效
func (r *PostgresAssignmentsRepository) Reassign(ctx context.Context, supervisorID, fromFarmID, toFarmID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	assigned, err := lockSupervisorRow(ctx, tx, supervisorID)
	if err != nil {
		return err
	}

	current, err := listAssignedTx(ctx, tx, supervisorID)
	if err != nil {
		return fmt.Errorf("failed to list assignments: %w", err)
	}
	hasFrom := false
	for _, id := range current {
		if id == fromFarmID {
			hasFrom = true
		}
		if id == toFarmID {
			return domain.ErrAlreadyAssigned
		}
	}
	if !hasFrom {
		return domain.ErrNotAssigned
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM supervisor_farm_assignments WHERE supervisor_id = $1 AND farm_id = $2`,
		supervisorID, fromFarmID,
	); err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO supervisor_farm_assignments (supervisor_id, farm_id) VALUES ($1, $2)`,
		supervisorID, toFarmID,
	); err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}

	// 主农场指向 from 时跟随切换
	if assigned.Valid && assigned.String == fromFarmID {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET assigned_farm_id = $2, updated_at = NOW() WHERE user_id = $1`,
			supervisorID, toFarmID,
		); err != nil {
			return fmt.Errorf("failed to switch primary farm: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
