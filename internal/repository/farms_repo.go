package repository

import (
	"context"

	"smartfarm-backend/internal/domain"
)

// FarmsRepository 农场 Repository 接口
type FarmsRepository interface {
	GetFarm(ctx context.Context, farmID string) (*domain.Farm, error)
	ListFarms(ctx context.Context) ([]*domain.Farm, error)
	ListFarmsByOwner(ctx context.Context, ownerID string) ([]*domain.Farm, error)
	ListFarmsByIDs(ctx context.Context, farmIDs []string) ([]*domain.Farm, error)
	CreateFarm(ctx context.Context, farm *domain.Farm) (string, error)
	UpdateFarm(ctx context.Context, farmID string, farm *domain.Farm) error
	DeleteFarm(ctx context.Context, farmID string) error
	CountFarms(ctx context.Context) (int, error)
}

// AssignmentsRepository 主管-农场分配 Repository 接口
// Assign/Remove/Reassign 在单事务内完成校验与写入：
// 事务首先 FOR UPDATE 锁定主管行，容量/重复检查与写入之间不会穿插并发修改
type AssignmentsRepository interface {
	// ListFarmIDsBySupervisor 返回主管负责的农场 ID（按分配时间升序）
	ListFarmIDsBySupervisor(ctx context.Context, supervisorID string) ([]string, error)
	// ListSupervisorIDsByFarm 返回农场的在任主管 ID
	ListSupervisorIDsByFarm(ctx context.Context, farmID string) ([]string, error)
	// Assign 追加分配；首条分配同时写 users.assigned_farm_id
	// 可能返回 domain.ErrCapacityExceeded / domain.ErrAlreadyAssigned
	Assign(ctx context.Context, supervisorID, farmID string) error
	// Remove 解除分配；若解除的是主农场则顺位提升剩余分配（或清空）
	// 可能返回 domain.ErrNotAssigned
	Remove(ctx context.Context, supervisorID, farmID string) error
	// Reassign 原子换岗：from 解除 + to 建立，主农场指向 from 时跟随切换
	// 可能返回 domain.ErrNotAssigned / domain.ErrAlreadyAssigned
	Reassign(ctx context.Context, supervisorID, fromFarmID, toFarmID string) error
}
