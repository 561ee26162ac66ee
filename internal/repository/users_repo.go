package repository

import (
	"context"

	"smartfarm-backend/internal/domain"
)

// UsersRepository 用户 Repository 接口
// 使用强类型领域模型，不使用 map[string]any
type UsersRepository interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, filters UserFilters) ([]*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (string, error)
	UpdateUser(ctx context.Context, userID string, user *domain.User) error
	UpdatePassword(ctx context.Context, userID string, passwordHash []byte, mustChange bool) error
	SetActive(ctx context.Context, userID string, active bool) error
	SetAssignedFarm(ctx context.Context, userID string, farmID *string) error
	ClearAssignedFarmByFarm(ctx context.Context, farmID string) error
	CountByRole(ctx context.Context, role domain.Role) (int, error)
	CountByFarmAndRole(ctx context.Context, farmID string, role domain.Role) (int, error)
}

// UserFilters 用户查询过滤器
// FarmIDs 非空时限定 assigned_farm_id ∈ FarmIDs（角色可见范围查询用）
type UserFilters struct {
	Role       domain.Role
	Roles      []domain.Role
	FarmIDs    []string
	ActiveOnly bool
	Search     string // 模糊搜索：username, email, first_name, last_name
}
