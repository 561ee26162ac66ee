package policy

import (
	"database/sql"
	"testing"

	"smartfarm-backend/internal/domain"

	"github.com/stretchr/testify/require"
)

func actor(id string, role domain.Role, assignedFarm string, supervised, owned []string) Actor {
	return Actor{
		UserID:            id,
		Role:              role,
		AssignedFarmID:    assignedFarm,
		SupervisedFarmIDs: supervised,
		OwnedFarmIDs:      owned,
	}
}

func farm(id, ownerID string) *domain.Farm {
	f := &domain.Farm{FarmID: id}
	if ownerID != "" {
		f.OwnerID = sql.NullString{String: ownerID, Valid: true}
	}
	return f
}

func TestCanAccessFarm(t *testing.T) {
	f1 := farm("farm-1", "owner-1")
	f2 := farm("farm-2", "owner-2")

	admin := actor("admin", domain.RoleSystemAdmin, "", nil, nil)
	owner := actor("owner-1", domain.RoleFarmOwner, "", nil, []string{"farm-1"})
	sup := actor("sup-1", domain.RoleSupervisor, "farm-1", []string{"farm-1"}, nil)
	worker := actor("w-1", domain.RoleWorker, "farm-1", nil, nil)
	drifter := actor("w-2", domain.RoleWorker, "", nil, nil)

	require.True(t, CanAccessFarm(admin, f1))
	require.True(t, CanAccessFarm(admin, f2))
	require.True(t, CanAccessFarm(owner, f1))
	require.False(t, CanAccessFarm(owner, f2))
	require.True(t, CanAccessFarm(sup, f1))
	require.False(t, CanAccessFarm(sup, f2))
	require.True(t, CanAccessFarm(worker, f1))
	require.False(t, CanAccessFarm(worker, f2))
	require.False(t, CanAccessFarm(drifter, f1))
	require.False(t, CanAccessFarm(admin, nil))
}

func TestCanAccessFarm_SupervisorAssignedFarmOnly(t *testing.T) {
	fa := farm("farm-a", "owner-1")
	fb := farm("farm-b", "owner-1")

	// 主管即便被安排负责多个农场，访问范围仍以归属农场为准
	sup := actor("sup-1", domain.RoleSupervisor, "farm-a", []string{"farm-a", "farm-b"}, nil)
	require.True(t, CanAccessFarm(sup, fa))
	require.False(t, CanAccessFarm(sup, fb))

	unassigned := actor("sup-2", domain.RoleSupervisor, "", []string{"farm-a"}, nil)
	require.False(t, CanAccessFarm(unassigned, fa))
}

func TestCanAccessFarm_OwnerAssignedFarm(t *testing.T) {
	// owner 同时挂靠别人的农场时，两边都可见
	own := farm("farm-1", "owner-1")
	hosting := farm("farm-2", "owner-2")
	owner := actor("owner-1", domain.RoleFarmOwner, "farm-2", nil, []string{"farm-1"})

	require.True(t, CanAccessFarm(owner, own))
	require.True(t, CanAccessFarm(owner, hosting))
	require.False(t, CanAccessFarm(owner, farm("farm-3", "owner-3")))
}

func TestCanManageFarm_NilOwner(t *testing.T) {
	orphan := farm("farm-x", "")
	owner := actor("owner-1", domain.RoleFarmOwner, "", nil, []string{"farm-x"})
	admin := actor("admin", domain.RoleSystemAdmin, "", nil, nil)

	// owner 为空的农场只有管理员能改
	require.False(t, CanManageFarm(owner, orphan))
	require.True(t, CanManageFarm(admin, orphan))
}

func TestCanManageAssignment(t *testing.T) {
	f1 := farm("farm-1", "owner-1")

	require.True(t, CanManageAssignment(actor("admin", domain.RoleSystemAdmin, "", nil, nil), f1))
	require.True(t, CanManageAssignment(actor("owner-1", domain.RoleFarmOwner, "", nil, nil), f1))
	require.False(t, CanManageAssignment(actor("owner-2", domain.RoleFarmOwner, "", nil, nil), f1))
	require.False(t, CanManageAssignment(actor("sup-1", domain.RoleSupervisor, "", []string{"farm-1"}, nil), f1))
	require.False(t, CanManageAssignment(actor("w-1", domain.RoleWorker, "farm-1", nil, nil), f1))
}

func TestCanCreateRole(t *testing.T) {
	cases := []struct {
		creator domain.Role
		target  domain.Role
		want    bool
	}{
		{domain.RoleSystemAdmin, domain.RoleSystemAdmin, true},
		{domain.RoleSystemAdmin, domain.RoleFarmOwner, true},
		{domain.RoleSystemAdmin, domain.RoleWorker, true},
		{domain.RoleFarmOwner, domain.RoleFarmOwner, false},
		{domain.RoleFarmOwner, domain.RoleSupervisor, true},
		{domain.RoleFarmOwner, domain.RoleWorker, true},
		{domain.RoleSupervisor, domain.RoleSupervisor, false},
		{domain.RoleSupervisor, domain.RoleWorker, true},
		{domain.RoleWorker, domain.RoleWorker, false},
		{domain.RoleSystemAdmin, domain.Role("BOGUS"), false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, CanCreateRole(c.creator, c.target), "%s -> %s", c.creator, c.target)
	}
}

func TestCanMessage_Edges(t *testing.T) {
	admin := actor("admin", domain.RoleSystemAdmin, "", nil, nil)
	owner := actor("owner-1", domain.RoleFarmOwner, "", nil, []string{"farm-1", "farm-2"})
	otherOwner := actor("owner-2", domain.RoleFarmOwner, "", nil, []string{"farm-9"})
	sup := actor("sup-1", domain.RoleSupervisor, "farm-1", []string{"farm-1"}, nil)
	otherSup := actor("sup-2", domain.RoleSupervisor, "farm-9", []string{"farm-9"}, nil)
	worker := actor("w-1", domain.RoleWorker, "farm-1", nil, nil)
	otherWorker := actor("w-2", domain.RoleWorker, "farm-9", nil, nil)

	// admin ↔ owner
	require.True(t, CanMessage(admin, owner))
	require.True(t, CanMessage(owner, admin))
	// admin 不直接联系主管/工人
	require.False(t, CanMessage(admin, sup))
	require.False(t, CanMessage(admin, worker))

	// owner ↔ 自有农场的主管
	require.True(t, CanMessage(owner, sup))
	require.True(t, CanMessage(sup, owner))
	require.False(t, CanMessage(owner, otherSup))
	require.False(t, CanMessage(otherSup, owner))
	require.False(t, CanMessage(otherOwner, sup))

	// owner 不直接联系工人
	require.False(t, CanMessage(owner, worker))
	require.False(t, CanMessage(worker, owner))

	// supervisor ↔ 同农场工人
	require.True(t, CanMessage(sup, worker))
	require.True(t, CanMessage(worker, sup))
	require.False(t, CanMessage(sup, otherWorker))
	require.False(t, CanMessage(otherWorker, sup))

	// 同级之间不可达
	require.False(t, CanMessage(sup, otherSup))
	require.False(t, CanMessage(worker, otherWorker))

	// 不能给自己发
	require.False(t, CanMessage(admin, admin))
}

func TestCanMessage_SupervisorEdgesUseAssignedFarm(t *testing.T) {
	// 主管负责多个农场但只归属 farm-a：
	// farm-b 的工人与 owner 对其不可达，反向同样不可达
	sup := actor("sup-1", domain.RoleSupervisor, "farm-a", []string{"farm-a", "farm-b"}, nil)
	workerA := actor("w-a", domain.RoleWorker, "farm-a", nil, nil)
	workerB := actor("w-b", domain.RoleWorker, "farm-b", nil, nil)
	ownerB := actor("owner-b", domain.RoleFarmOwner, "", nil, []string{"farm-b"})

	require.True(t, CanMessage(sup, workerA))
	require.True(t, CanMessage(workerA, sup))
	require.False(t, CanMessage(sup, workerB))
	require.False(t, CanMessage(workerB, sup))
	require.False(t, CanMessage(sup, ownerB))
	require.False(t, CanMessage(ownerB, sup))

	// 未归属任何农场的主管没有任何可达边
	floating := actor("sup-2", domain.RoleSupervisor, "", []string{"farm-a"}, nil)
	require.False(t, CanMessage(floating, workerA))
	require.False(t, CanMessage(floating, ownerB))
}

func TestCanViewConversation(t *testing.T) {
	sup := actor("sup-1", domain.RoleSupervisor, "farm-1", []string{"farm-1"}, nil)
	worker := actor("w-1", domain.RoleWorker, "farm-1", nil, nil)
	stranger := actor("w-9", domain.RoleWorker, "farm-9", nil, nil)

	require.True(t, CanViewConversation(sup, worker))
	require.True(t, CanViewConversation(worker, sup))
	require.False(t, CanViewConversation(worker, stranger))
}

func TestCanCreateTask(t *testing.T) {
	sup := actor("sup-1", domain.RoleSupervisor, "farm-1", []string{"farm-1"}, nil)
	unassignedSup := actor("sup-2", domain.RoleSupervisor, "", nil, nil)
	worker := actor("w-1", domain.RoleWorker, "farm-1", nil, nil)
	farWorker := actor("w-2", domain.RoleWorker, "farm-9", nil, nil)
	owner := actor("owner-1", domain.RoleFarmOwner, "", nil, []string{"farm-1"})

	require.NoError(t, CanCreateTask(sup, worker))
	require.ErrorIs(t, CanCreateTask(owner, worker), ErrCreatorNotSupervisor)
	require.ErrorIs(t, CanCreateTask(unassignedSup, worker), ErrCreatorUnassigned)
	require.ErrorIs(t, CanCreateTask(sup, sup), ErrAssigneeNotWorker)
	require.ErrorIs(t, CanCreateTask(sup, farWorker), ErrCrossFarmAssignment)
}

func TestTaskMutationGates(t *testing.T) {
	task := &domain.Task{TaskID: "t-1", CreatedByID: "sup-1", AssignedToID: "w-1", FarmID: "farm-1"}

	admin := actor("admin", domain.RoleSystemAdmin, "", nil, nil)
	creator := actor("sup-1", domain.RoleSupervisor, "farm-1", []string{"farm-1"}, nil)
	assignee := actor("w-1", domain.RoleWorker, "farm-1", nil, nil)
	otherSup := actor("sup-2", domain.RoleSupervisor, "farm-1", []string{"farm-1"}, nil)
	otherWorker := actor("w-2", domain.RoleWorker, "farm-1", nil, nil)

	// 任务只归创建它的主管与被指派的工人管，管理员也不能越权改动
	require.False(t, CanUpdateTaskStatus(admin, task))
	require.True(t, CanUpdateTaskStatus(creator, task))
	require.True(t, CanUpdateTaskStatus(assignee, task))
	require.False(t, CanUpdateTaskStatus(otherSup, task))
	require.False(t, CanUpdateTaskStatus(otherWorker, task))

	require.False(t, CanDeleteTask(admin, task))
	require.True(t, CanDeleteTask(creator, task))
	require.False(t, CanDeleteTask(assignee, task))
	require.False(t, CanDeleteTask(otherSup, task))
}

func TestCanViewTask(t *testing.T) {
	task := &domain.Task{TaskID: "t-1", CreatedByID: "sup-1", AssignedToID: "w-1", FarmID: "farm-1"}

	// 可见性限定在创建主管与被指派工人，其余角色一律不可见
	require.False(t, CanViewTask(actor("admin", domain.RoleSystemAdmin, "", nil, nil), task))
	require.False(t, CanViewTask(actor("owner-1", domain.RoleFarmOwner, "", nil, []string{"farm-1"}), task))
	require.True(t, CanViewTask(actor("sup-1", domain.RoleSupervisor, "farm-1", []string{"farm-1"}, nil), task))
	require.False(t, CanViewTask(actor("sup-1", domain.RoleSupervisor, "", nil, nil), task))
	require.False(t, CanViewTask(actor("sup-3", domain.RoleSupervisor, "farm-1", []string{"farm-1"}, nil), task))
	require.True(t, CanViewTask(actor("w-1", domain.RoleWorker, "farm-1", nil, nil), task))
	require.False(t, CanViewTask(actor("w-2", domain.RoleWorker, "farm-1", nil, nil), task))
}
