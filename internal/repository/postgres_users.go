package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"smartfarm-backend/internal/domain"

	"github.com/lib/pq"
)

// PostgresUsersRepository 用户 Repository 实现（强类型版本）
type PostgresUsersRepository struct {
	db *sql.DB
}

// NewPostgresUsersRepository 创建用户 Repository
func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

// 确保实现了接口
var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `
	user_id::text,
	username,
	email,
	password_hash,
	first_name,
	last_name,
	phone,
	role,
	assigned_farm_id::text,
	is_active,
	must_change_password,
	created_at,
	updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser 扫描单行用户
func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var phone, assignedFarmID sql.NullString
	err := row.Scan(
		&user.UserID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&phone,
		&user.Role,
		&assignedFarmID,
		&user.IsActive,
		&user.MustChangePassword,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Phone = phone
	user.AssignedFarmID = assignedFarmID
	return &user, nil
}

// GetUser 获取用户基本信息
func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return user, err
}

// GetUserByUsername 根据账号获取用户
func (r *PostgresUsersRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, domain.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return user, err
}

// GetUserByEmail 根据邮箱获取用户
func (r *PostgresUsersRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, domain.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return user, err
}

// ListUsers 按过滤器列出用户
func (r *PostgresUsersRepository) ListUsers(ctx context.Context, filters UserFilters) ([]*domain.User, error) {
	where := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filters.Role != "" {
		where = append(where, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, filters.Role)
		argIdx++
	}
	if len(filters.Roles) > 0 {
		roles := make([]string, 0, len(filters.Roles))
		for _, role := range filters.Roles {
			roles = append(roles, string(role))
		}
		where = append(where, fmt.Sprintf("role = ANY($%d)", argIdx))
		args = append(args, pq.Array(roles))
		argIdx++
	}
	if len(filters.FarmIDs) > 0 {
		where = append(where, fmt.Sprintf("assigned_farm_id = ANY($%d::uuid[])", argIdx))
		args = append(args, pq.Array(filters.FarmIDs))
		argIdx++
	}
	if filters.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}
	if filters.Search != "" {
		where = append(where, fmt.Sprintf(
			"(username ILIKE $%d OR email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)",
			argIdx, argIdx, argIdx, argIdx))
		args = append(args, "%"+filters.Search+"%")
		argIdx++
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY username ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateUser 创建用户
func (r *PostgresUsersRepository) CreateUser(ctx context.Context, user *domain.User) (string, error) {
	if user == nil {
		return "", fmt.Errorf("user is required")
	}
	if user.Username == "" {
		return "", fmt.Errorf("username is required")
	}
	if user.Email == "" {
		return "", fmt.Errorf("email is required")
	}
	if !user.Role.Valid() {
		return "", fmt.Errorf("role is required")
	}

	query := `
		INSERT INTO users (
			username, email, password_hash, first_name, last_name,
			phone, role, assigned_farm_id, is_active, must_change_password
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING user_id::text
	`

	var userID string
	err := r.db.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		toAnyString(user.Phone),
		user.Role,
		toAnyString(user.AssignedFarmID),
		user.IsActive,
		user.MustChangePassword,
	).Scan(&userID)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrDuplicate
		}
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	return userID, nil
}

// UpdateUser 更新用户（零值字段不更新）
func (r *PostgresUsersRepository) UpdateUser(ctx context.Context, userID string, user *domain.User) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if user == nil {
		return fmt.Errorf("user is required")
	}

	updates := []string{"updated_at = NOW()"}
	args := []any{userID}
	argIdx := 2

	if user.Username != "" {
		updates = append(updates, fmt.Sprintf("username = $%d", argIdx))
		args = append(args, user.Username)
		argIdx++
	}
	if user.Email != "" {
		updates = append(updates, fmt.Sprintf("email = $%d", argIdx))
		args = append(args, user.Email)
		argIdx++
	}
	if user.FirstName != "" {
		updates = append(updates, fmt.Sprintf("first_name = $%d", argIdx))
		args = append(args, user.FirstName)
		argIdx++
	}
	if user.LastName != "" {
		updates = append(updates, fmt.Sprintf("last_name = $%d", argIdx))
		args = append(args, user.LastName)
		argIdx++
	}
	if user.Phone.Valid {
		updates = append(updates, fmt.Sprintf("phone = $%d", argIdx))
		args = append(args, user.Phone)
		argIdx++
	}
	if user.Role != "" {
		updates = append(updates, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, user.Role)
		argIdx++
	}

	query := fmt.Sprintf(`UPDATE users SET %s WHERE user_id = $1`, strings.Join(updates, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdatePassword 更新密码哈希，可同时清除/设置强制改密标记
func (r *PostgresUsersRepository) UpdatePassword(ctx context.Context, userID string, passwordHash []byte, mustChange bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, must_change_password = $3, updated_at = NOW() WHERE user_id = $1`,
		userID, passwordHash, mustChange,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetActive 激活/停用（软删除）
func (r *PostgresUsersRepository) SetActive(ctx context.Context, userID string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, active,
	)
	if err != nil {
		return fmt.Errorf("failed to set user active flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetAssignedFarm 设置/清空归属农场（farmID 为 nil 时置 NULL）
func (r *PostgresUsersRepository) SetAssignedFarm(ctx context.Context, userID string, farmID *string) error {
	var arg any
	if farmID != nil {
		arg = *farmID
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET assigned_farm_id = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, arg,
	)
	if err != nil {
		return fmt.Errorf("failed to set assigned farm: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ClearAssignedFarmByFarm 农场删除前清空所有成员的归属
func (r *PostgresUsersRepository) ClearAssignedFarmByFarm(ctx context.Context, farmID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET assigned_farm_id = NULL, updated_at = NOW() WHERE assigned_farm_id = $1`,
		farmID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear assigned farm: %w", err)
	}
	return nil
}

// CountByRole 按角色统计活跃用户
func (r *PostgresUsersRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1 AND is_active = TRUE`, role,
	).Scan(&count)
	return count, err
}

// CountByFarmAndRole 按农场+角色统计活跃用户
func (r *PostgresUsersRepository) CountByFarmAndRole(ctx context.Context, farmID string, role domain.Role) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE assigned_farm_id = $1 AND role = $2 AND is_active = TRUE`,
		farmID, role,
	).Scan(&count)
	return count, err
}

// toAnyString sql.NullString → 驱动参数
func toAnyString(ns sql.NullString) any {
	if ns.Valid {
		return ns.String
	}
	return nil
}

// isUniqueViolation 唯一约束冲突（23505）
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
