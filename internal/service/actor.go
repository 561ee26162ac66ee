package service

import (
	"context"
	"fmt"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/policy"
	"smartfarm-backend/internal/repository"
)

// ActorResolver 把用户 ID 补全成 policy.Actor（带关系数据的快照）
// 各 service 共用，避免每个方法重复拼 ownedFarms/supervisedFarms 查询
type ActorResolver struct {
	users       repository.UsersRepository
	farms       repository.FarmsRepository
	assignments repository.AssignmentsRepository
}

func NewActorResolver(users repository.UsersRepository, farms repository.FarmsRepository, assignments repository.AssignmentsRepository) *ActorResolver {
	return &ActorResolver{users: users, farms: farms, assignments: assignments}
}

// Resolve 取用户及其 Actor 快照
func (r *ActorResolver) Resolve(ctx context.Context, userID string) (*domain.User, policy.Actor, error) {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return nil, policy.Actor{}, err
	}
	actor, err := r.ActorFor(ctx, user)
	if err != nil {
		return nil, policy.Actor{}, err
	}
	return user, actor, nil
}

// ActorFor 由已加载的用户构建 Actor
func (r *ActorResolver) ActorFor(ctx context.Context, user *domain.User) (policy.Actor, error) {
	var supervised, owned []string
	var err error

	switch user.Role {
	case domain.RoleSupervisor:
		supervised, err = r.assignments.ListFarmIDsBySupervisor(ctx, user.UserID)
		if err != nil {
			return policy.Actor{}, fmt.Errorf("failed to load supervised farms: %w", err)
		}
	case domain.RoleFarmOwner:
		farms, err := r.farms.ListFarmsByOwner(ctx, user.UserID)
		if err != nil {
			return policy.Actor{}, fmt.Errorf("failed to load owned farms: %w", err)
		}
		owned = make([]string, 0, len(farms))
		for _, f := range farms {
			owned = append(owned, f.FarmID)
		}
	}

	return policy.NewActor(user, supervised, owned), nil
}

// visibleFarmIDs 角色可见的农场 ID 集合
// 管理员返回 (nil, true)：true 表示“全部可见”，调用方据此走全量查询。
// owner 为自有农场加上归属农场（去重）；主管和工人仅归属农场
func (r *ActorResolver) visibleFarmIDs(actor policy.Actor) ([]string, bool) {
	switch actor.Role {
	case domain.RoleSystemAdmin:
		return nil, true
	case domain.RoleFarmOwner:
		ids := make([]string, 0, len(actor.OwnedFarmIDs)+1)
		ids = append(ids, actor.OwnedFarmIDs...)
		if actor.AssignedFarmID != "" {
			dup := false
			for _, id := range ids {
				if id == actor.AssignedFarmID {
					dup = true
					break
				}
			}
			if !dup {
				ids = append(ids, actor.AssignedFarmID)
			}
		}
		return ids, false
	case domain.RoleSupervisor, domain.RoleWorker:
		if actor.AssignedFarmID != "" {
			return []string{actor.AssignedFarmID}, false
		}
		return []string{}, false
	}
	return []string{}, false
}
