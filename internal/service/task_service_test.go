package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"smartfarm-backend/internal/config"
	"smartfarm-backend/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type taskFixture struct {
	users  *fakeUsersRepo
	tasks  *fakeTasksRepo
	notify *NotificationService
	svc    *TaskService

	admin      *domain.User
	supervisor *domain.User
	worker     *domain.User
	farm       *domain.Farm
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	users := newFakeUsersRepo()
	farms := newFakeFarmsRepo()
	assignments := newFakeAssignmentsRepo(users)
	tasks := newFakeTasksRepo()
	resolver := NewActorResolver(users, farms, assignments)
	mail := NewMailClient(config.MailConfig{}, zap.NewNop())
	notify := NewNotificationService(newFakeKV(), users, mail, config.MailConfig{}, zap.NewNop())
	svc := NewTaskService(tasks, users, farms, resolver, mail, notify, zap.NewNop())

	fx := &taskFixture{users: users, tasks: tasks, notify: notify, svc: svc}
	fx.admin = users.put(&domain.User{Username: "admin", Email: "admin@test.local", Role: domain.RoleSystemAdmin, IsActive: true})
	fx.supervisor = users.put(&domain.User{Username: "sup", Email: "sup@test.local", Role: domain.RoleSupervisor, IsActive: true})
	fx.farm = farms.put(&domain.Farm{Name: "North Field", Location: "north", Size: 10, SizeUnit: "hectares"})
	require.NoError(t, assignments.Assign(context.Background(), fx.supervisor.UserID, fx.farm.FarmID))
	fx.worker = users.put(&domain.User{
		Username: "worker", Email: "worker@test.local", Role: domain.RoleWorker, IsActive: true,
		AssignedFarmID: sql.NullString{String: fx.farm.FarmID, Valid: true},
	})
	return fx
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("supervisor assigns own farm worker", func(t *testing.T) {
		fx := newTaskFixture(t)
		view, err := fx.svc.CreateTask(ctx, fx.supervisor.UserID, &CreateTaskRequest{
			Title:        "Irrigate field 3",
			AssignedToID: fx.worker.UserID,
		})
		require.NoError(t, err)
		require.Equal(t, string(domain.TaskPending), view.Status)
		require.Equal(t, string(domain.PriorityMedium), view.Priority)
		require.Equal(t, fx.farm.FarmID, view.FarmID)
		require.Equal(t, fx.supervisor.UserID, view.CreatedByID)
	})

	t.Run("title required", func(t *testing.T) {
		fx := newTaskFixture(t)
		_, err := fx.svc.CreateTask(ctx, fx.supervisor.UserID, &CreateTaskRequest{AssignedToID: fx.worker.UserID})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("only supervisors create tasks", func(t *testing.T) {
		fx := newTaskFixture(t)
		_, err := fx.svc.CreateTask(ctx, fx.worker.UserID, &CreateTaskRequest{
			Title:        "Self-assigned",
			AssignedToID: fx.worker.UserID,
		})
		require.ErrorIs(t, err, domain.ErrInvalidRole)
	})

	t.Run("supervisor without farm cannot create", func(t *testing.T) {
		fx := newTaskFixture(t)
		floating := fx.users.put(&domain.User{Username: "sup2", Email: "sup2@test.local", Role: domain.RoleSupervisor, IsActive: true})
		_, err := fx.svc.CreateTask(ctx, floating.UserID, &CreateTaskRequest{
			Title:        "Check fences",
			AssignedToID: fx.worker.UserID,
		})
		require.ErrorIs(t, err, domain.ErrPreconditionFailed)
	})

	t.Run("assignee must be a worker", func(t *testing.T) {
		fx := newTaskFixture(t)
		_, err := fx.svc.CreateTask(ctx, fx.supervisor.UserID, &CreateTaskRequest{
			Title:        "Delegate upward",
			AssignedToID: fx.admin.UserID,
		})
		require.ErrorIs(t, err, domain.ErrInvalidRole)
	})

	t.Run("cross-farm worker is rejected", func(t *testing.T) {
		fx := newTaskFixture(t)
		outsider := fx.users.put(&domain.User{
			Username: "worker2", Email: "worker2@test.local", Role: domain.RoleWorker, IsActive: true,
			AssignedFarmID: sql.NullString{String: "other-farm", Valid: true},
		})
		_, err := fx.svc.CreateTask(ctx, fx.supervisor.UserID, &CreateTaskRequest{
			Title:        "Wrong farm",
			AssignedToID: outsider.UserID,
		})
		require.ErrorIs(t, err, domain.ErrInvalidAssignment)
	})

	t.Run("invalid due date", func(t *testing.T) {
		fx := newTaskFixture(t)
		_, err := fx.svc.CreateTask(ctx, fx.supervisor.UserID, &CreateTaskRequest{
			Title:        "Bad date",
			AssignedToID: fx.worker.UserID,
			DueDate:      "tomorrow",
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestUpdateTaskStatus(t *testing.T) {
	ctx := context.Background()

	create := func(t *testing.T, fx *taskFixture) *TaskView {
		t.Helper()
		view, err := fx.svc.CreateTask(ctx, fx.supervisor.UserID, &CreateTaskRequest{
			Title:        "Harvest",
			AssignedToID: fx.worker.UserID,
		})
		require.NoError(t, err)
		return view
	}

	t.Run("worker starts then completes", func(t *testing.T) {
		fx := newTaskFixture(t)
		task := create(t, fx)

		started, err := fx.svc.UpdateTaskStatus(ctx, fx.worker.UserID, task.TaskID, &UpdateTaskStatusRequest{Status: "IN_PROGRESS"})
		require.NoError(t, err)
		require.Equal(t, string(domain.TaskInProgress), started.Status)
		require.NotEmpty(t, started.StartedAt)

		done, err := fx.svc.UpdateTaskStatus(ctx, fx.worker.UserID, task.TaskID, &UpdateTaskStatusRequest{
			Status:          "COMPLETED",
			ActualHours:     3.5,
			CompletionNotes: "done before noon",
		})
		require.NoError(t, err)
		require.Equal(t, string(domain.TaskCompleted), done.Status)
		require.NotEmpty(t, done.CompletedAt)
	})

	t.Run("backward transition keeps original timestamps", func(t *testing.T) {
		fx := newTaskFixture(t)
		task := create(t, fx)

		done, err := fx.svc.UpdateTaskStatus(ctx, fx.worker.UserID, task.TaskID, &UpdateTaskStatusRequest{Status: "COMPLETED"})
		require.NoError(t, err)
		completedAt := done.CompletedAt

		reopened, err := fx.svc.UpdateTaskStatus(ctx, fx.worker.UserID, task.TaskID, &UpdateTaskStatusRequest{Status: "PENDING"})
		require.NoError(t, err)
		require.Equal(t, string(domain.TaskPending), reopened.Status)

		redone, err := fx.svc.UpdateTaskStatus(ctx, fx.worker.UserID, task.TaskID, &UpdateTaskStatusRequest{Status: "COMPLETED"})
		require.NoError(t, err)
		require.Equal(t, completedAt, redone.CompletedAt)
	})

	t.Run("unknown status", func(t *testing.T) {
		fx := newTaskFixture(t)
		task := create(t, fx)
		_, err := fx.svc.UpdateTaskStatus(ctx, fx.worker.UserID, task.TaskID, &UpdateTaskStatusRequest{Status: "DONE"})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("unrelated worker is denied", func(t *testing.T) {
		fx := newTaskFixture(t)
		task := create(t, fx)
		outsider := fx.users.put(&domain.User{
			Username: "worker3", Email: "worker3@test.local", Role: domain.RoleWorker, IsActive: true,
			AssignedFarmID: sql.NullString{String: fx.farm.FarmID, Valid: true},
		})
		_, err := fx.svc.UpdateTaskStatus(ctx, outsider.UserID, task.TaskID, &UpdateTaskStatusRequest{Status: "IN_PROGRESS"})
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
	})
}

func TestListTasksVisibility(t *testing.T) {
	ctx := context.Background()
	fx := newTaskFixture(t)

	_, err := fx.svc.CreateTask(ctx, fx.supervisor.UserID, &CreateTaskRequest{
		Title:        "Feed livestock",
		AssignedToID: fx.worker.UserID,
		DueDate:      time.Now().Format(time.RFC3339),
	})
	require.NoError(t, err)

	other := fx.users.put(&domain.User{
		Username: "worker4", Email: "worker4@test.local", Role: domain.RoleWorker, IsActive: true,
		AssignedFarmID: sql.NullString{String: fx.farm.FarmID, Valid: true},
	})

	workerList, err := fx.svc.ListTasks(ctx, fx.worker.UserID, &ListTasksRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, workerList.Total)

	otherList, err := fx.svc.ListTasks(ctx, other.UserID, &ListTasksRequest{})
	require.NoError(t, err)
	require.Equal(t, 0, otherList.Total)

	supList, err := fx.svc.ListTasks(ctx, fx.supervisor.UserID, &ListTasksRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, supList.Total)

	// 任务列表只对主管/工人开放，管理员与 owner 拿到空集
	adminList, err := fx.svc.ListTasks(ctx, fx.admin.UserID, &ListTasksRequest{})
	require.NoError(t, err)
	require.Equal(t, 0, adminList.Total)

	adminToday, err := fx.svc.TodayTasks(ctx, fx.admin.UserID)
	require.NoError(t, err)
	require.Equal(t, 0, adminToday.Total)

	owner := fx.users.put(&domain.User{Username: "owner", Email: "owner@test.local", Role: domain.RoleFarmOwner, IsActive: true})
	ownerList, err := fx.svc.ListTasks(ctx, owner.UserID, &ListTasksRequest{})
	require.NoError(t, err)
	require.Equal(t, 0, ownerList.Total)
}

func TestListTasks_SupervisorSeesOnlyOwnCreatedOnAssignedFarm(t *testing.T) {
	ctx := context.Background()
	fx := newTaskFixture(t)

	_, err := fx.svc.CreateTask(ctx, fx.supervisor.UserID, &CreateTaskRequest{
		Title:        "Repair fence",
		AssignedToID: fx.worker.UserID,
	})
	require.NoError(t, err)

	// 同农场另一位主管创建的任务不进入列表
	colleague := fx.users.put(&domain.User{
		Username: "sup-b", Email: "sup-b@test.local", Role: domain.RoleSupervisor, IsActive: true,
		AssignedFarmID: sql.NullString{String: fx.farm.FarmID, Valid: true},
	})
	_, err = fx.svc.CreateTask(ctx, colleague.UserID, &CreateTaskRequest{
		Title:        "Clean barn",
		AssignedToID: fx.worker.UserID,
	})
	require.NoError(t, err)

	list, err := fx.svc.ListTasks(ctx, fx.supervisor.UserID, &ListTasksRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	require.Equal(t, "Repair fence", list.Tasks[0].Title)
}

func TestTaskNotifications(t *testing.T) {
	ctx := context.Background()
	fx := newTaskFixture(t)

	view, err := fx.svc.CreateTask(ctx, fx.supervisor.UserID, &CreateTaskRequest{
		Title:        "Water the seedlings",
		AssignedToID: fx.worker.UserID,
	})
	require.NoError(t, err)

	// 派单即时进入工人的通知流
	items, err := fx.notify.History(ctx, fx.worker.UserID, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "task", items[0].Type)
	require.Equal(t, view.TaskID, items[0].RefID)

	_, err = fx.svc.UpdateTaskStatus(ctx, fx.worker.UserID, view.TaskID, &UpdateTaskStatusRequest{Status: "COMPLETED"})
	require.NoError(t, err)

	// 完成后创建主管收到回执
	supItems, err := fx.notify.History(ctx, fx.supervisor.UserID, 0)
	require.NoError(t, err)
	require.Len(t, supItems, 1)
	require.Equal(t, view.TaskID, supItems[0].RefID)
}
