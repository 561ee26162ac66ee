// Package policy 集中所有角色权限判定。
// 全部为纯函数：输入是调用者/目标的快照（Actor），不做任何 I/O，
// service 层负责先把关系数据（负责/拥有的农场）查出来再调用。
package policy

import (
	"smartfarm-backend/internal/domain"
)

// Actor 权限判定所需的用户快照
// SupervisedFarmIDs 仅 SUPERVISOR 有值；OwnedFarmIDs 仅 FARM_OWNER 有值
type Actor struct {
	UserID            string
	Role              domain.Role
	AssignedFarmID    string // 空串表示未分配
	SupervisedFarmIDs []string
	OwnedFarmIDs      []string
}

// NewActor 从领域模型构建 Actor（关系列表由调用方补充）
func NewActor(u *domain.User, supervisedFarmIDs, ownedFarmIDs []string) Actor {
	a := Actor{
		UserID:            u.UserID,
		Role:              u.Role,
		SupervisedFarmIDs: supervisedFarmIDs,
		OwnedFarmIDs:      ownedFarmIDs,
	}
	if u.AssignedFarmID.Valid {
		a.AssignedFarmID = u.AssignedFarmID.String
	}
	return a
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// CanAccessFarm 单个农场的可见性：
// SYSTEM_ADMIN 全部；FARM_OWNER 自有或归属；SUPERVISOR / WORKER 仅归属农场。
// 主管按 assignedFarm 判定，负责中的第二农场不扩大可见范围
func CanAccessFarm(a Actor, farm *domain.Farm) bool {
	if farm == nil {
		return false
	}
	switch a.Role {
	case domain.RoleSystemAdmin:
		return true
	case domain.RoleFarmOwner:
		if farm.OwnerID.Valid && farm.OwnerID.String == a.UserID {
			return true
		}
		return a.AssignedFarmID != "" && a.AssignedFarmID == farm.FarmID
	case domain.RoleSupervisor, domain.RoleWorker:
		return a.AssignedFarmID != "" && a.AssignedFarmID == farm.FarmID
	}
	return false
}

// CanManageFarm 农场的修改/删除：仅 SYSTEM_ADMIN 或该农场的 owner。
// owner_id 可为空（申请审批前的过渡态），空 owner 时只有管理员能操作
func CanManageFarm(a Actor, farm *domain.Farm) bool {
	if farm == nil {
		return false
	}
	if a.Role == domain.RoleSystemAdmin {
		return true
	}
	if a.Role != domain.RoleFarmOwner {
		return false
	}
	return farm.OwnerID.Valid && farm.OwnerID.String == a.UserID
}

// CanManageAssignment 主管分配操作（assign/remove/reassign）的授权：
// SYSTEM_ADMIN，或目标农场的 owner
func CanManageAssignment(a Actor, farm *domain.Farm) bool {
	return CanManageFarm(a, farm)
}

// CanCreateRole 创建账号的角色约束：
// 管理员可建任意角色；owner 可建 SUPERVISOR/WORKER；主管只能建 WORKER
func CanCreateRole(creator domain.Role, target domain.Role) bool {
	if !target.Valid() {
		return false
	}
	switch creator {
	case domain.RoleSystemAdmin:
		return true
	case domain.RoleFarmOwner:
		return target == domain.RoleSupervisor || target == domain.RoleWorker
	case domain.RoleSupervisor:
		return target == domain.RoleWorker
	}
	return false
}

// CanViewUser 用户详情可见性：本人总是可见，其余按 CanMessage 的关系边放开，
// 管理员全量可见
func CanViewUser(viewer, target Actor) bool {
	if viewer.Role == domain.RoleSystemAdmin {
		return true
	}
	if viewer.UserID == target.UserID {
		return true
	}
	return CanMessage(viewer, target) || CanMessage(target, viewer)
}

// CanMessage 定向消息授权边（有向判定，入参顺序即发送方向）：
//   SYSTEM_ADMIN    → FARM_OWNER
//   FARM_OWNER      → SYSTEM_ADMIN、归属农场属自有的 SUPERVISOR
//   SUPERVISOR      → 归属农场的 owner、同归属农场的 WORKER
//   WORKER          → 同归属农场的 SUPERVISOR
//
// 主管一侧始终按 assignedFarm 判定：负责两个农场的主管只在其归属
// 农场的通信边上可达，负责关系不额外开边
func CanMessage(sender, recipient Actor) bool {
	if sender.UserID == recipient.UserID {
		return false
	}
	switch sender.Role {
	case domain.RoleSystemAdmin:
		return recipient.Role == domain.RoleFarmOwner
	case domain.RoleFarmOwner:
		if recipient.Role == domain.RoleSystemAdmin {
			return true
		}
		if recipient.Role == domain.RoleSupervisor {
			return recipient.AssignedFarmID != "" && contains(sender.OwnedFarmIDs, recipient.AssignedFarmID)
		}
		return false
	case domain.RoleSupervisor:
		if sender.AssignedFarmID == "" {
			return false
		}
		if recipient.Role == domain.RoleFarmOwner {
			return contains(recipient.OwnedFarmIDs, sender.AssignedFarmID)
		}
		if recipient.Role == domain.RoleWorker {
			return sender.AssignedFarmID == recipient.AssignedFarmID
		}
		return false
	case domain.RoleWorker:
		if recipient.Role != domain.RoleSupervisor {
			return false
		}
		return sender.AssignedFarmID != "" && sender.AssignedFarmID == recipient.AssignedFarmID
	}
	return false
}

// CanViewConversation 会话双方任一方向可达即可读取历史
func CanViewConversation(a, b Actor) bool {
	return CanMessage(a, b) || CanMessage(b, a)
}

// CanCreateTask 任务创建：仅 SUPERVISOR，且
//   - 创建者已有归属农场
//   - 被派工人是 WORKER 且与创建者同农场
func CanCreateTask(creator, assignee Actor) error {
	if creator.Role != domain.RoleSupervisor {
		return ErrCreatorNotSupervisor
	}
	if creator.AssignedFarmID == "" {
		return ErrCreatorUnassigned
	}
	if assignee.Role != domain.RoleWorker {
		return ErrAssigneeNotWorker
	}
	if assignee.AssignedFarmID != creator.AssignedFarmID {
		return ErrCrossFarmAssignment
	}
	return nil
}

// CanUpdateTaskStatus 任务状态变更：仅创建主管或被派工人，
// 管理员和 owner 均不可代改
func CanUpdateTaskStatus(a Actor, task *domain.Task) bool {
	if task == nil {
		return false
	}
	if a.Role == domain.RoleSupervisor && a.UserID == task.CreatedByID {
		return true
	}
	return a.UserID == task.AssignedToID
}

// CanDeleteTask 任务删除：仅创建主管
func CanDeleteTask(a Actor, task *domain.Task) bool {
	if task == nil {
		return false
	}
	return a.Role == domain.RoleSupervisor && a.UserID == task.CreatedByID
}

// CanViewTask 任务可见性：任务只属于主管/工人视角，
// 主管看自建且仍在归属农场的任务，工人只看派给自己的，其余角色为空
func CanViewTask(a Actor, task *domain.Task) bool {
	if task == nil {
		return false
	}
	switch a.Role {
	case domain.RoleSupervisor:
		return a.UserID == task.CreatedByID && a.AssignedFarmID != "" && a.AssignedFarmID == task.FarmID
	case domain.RoleWorker:
		return a.UserID == task.AssignedToID
	}
	return false
}
