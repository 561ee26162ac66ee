package service

import (
	"context"
	"database/sql"
	"testing"

	"smartfarm-backend/internal/config"
	"smartfarm-backend/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type userFixture struct {
	users       *fakeUsersRepo
	farms       *fakeFarmsRepo
	assignments *fakeAssignmentsRepo
	svc         *UserService

	owner      *domain.User
	supervisor *domain.User
	worker     *domain.User
	farmA      *domain.Farm
	farmB      *domain.Farm
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	users := newFakeUsersRepo()
	farms := newFakeFarmsRepo()
	assignments := newFakeAssignmentsRepo(users)
	resolver := NewActorResolver(users, farms, assignments)
	mail := NewMailClient(config.MailConfig{}, zap.NewNop())
	svc := NewUserService(users, assignments, resolver, mail, zap.NewNop())

	fx := &userFixture{users: users, farms: farms, assignments: assignments, svc: svc}
	fx.owner = users.put(&domain.User{Username: "owner", Email: "owner@test.local", Role: domain.RoleFarmOwner, IsActive: true})
	fx.farmA = farms.put(&domain.Farm{
		Name: "West Field", Location: "west", Size: 12, SizeUnit: "hectares",
		OwnerID: sql.NullString{String: fx.owner.UserID, Valid: true},
	})
	fx.farmB = farms.put(&domain.Farm{
		Name: "South Field", Location: "south", Size: 8, SizeUnit: "hectares",
		OwnerID: sql.NullString{String: fx.owner.UserID, Valid: true},
	})
	fx.supervisor = users.put(&domain.User{Username: "sup", Email: "sup@test.local", Role: domain.RoleSupervisor, IsActive: true})
	require.NoError(t, assignments.Assign(context.Background(), fx.supervisor.UserID, fx.farmA.FarmID))
	require.NoError(t, assignments.Assign(context.Background(), fx.supervisor.UserID, fx.farmB.FarmID))
	fx.worker = users.put(&domain.User{
		Username: "worker", Email: "worker@test.local", Role: domain.RoleWorker, IsActive: true,
		AssignedFarmID: sql.NullString{String: fx.farmA.FarmID, Valid: true},
	})
	return fx
}

func TestListUsers_SupervisedFarmsHydrated(t *testing.T) {
	ctx := context.Background()
	fx := newUserFixture(t)

	resp, err := fx.svc.ListUsers(ctx, fx.owner.UserID, &ListUsersRequest{})
	require.NoError(t, err)

	var supView *UserView
	for _, v := range resp.Users {
		if v.UserID == fx.supervisor.UserID {
			supView = v
		}
	}
	require.NotNil(t, supView)
	// owner 的列表里主管要带上负责农场清单，前端据此展示指派关系
	require.ElementsMatch(t, []string{fx.farmA.FarmID, fx.farmB.FarmID}, supView.SupervisedFarmIDs)
}

func TestGetUser_SupervisedFarmsHydrated(t *testing.T) {
	ctx := context.Background()
	fx := newUserFixture(t)

	view, err := fx.svc.GetUser(ctx, fx.owner.UserID, fx.supervisor.UserID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{fx.farmA.FarmID, fx.farmB.FarmID}, view.SupervisedFarmIDs)
}

func TestListUsers_SupervisorScopedToAssignedFarm(t *testing.T) {
	ctx := context.Background()
	fx := newUserFixture(t)

	// farm-B 上的工人不在主管（归属 farm-A）的名单里
	outsider := fx.users.put(&domain.User{
		Username: "worker-b", Email: "worker-b@test.local", Role: domain.RoleWorker, IsActive: true,
		AssignedFarmID: sql.NullString{String: fx.farmB.FarmID, Valid: true},
	})

	resp, err := fx.svc.ListUsers(ctx, fx.supervisor.UserID, &ListUsersRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Equal(t, fx.worker.UserID, resp.Users[0].UserID)
	require.NotEqual(t, outsider.UserID, resp.Users[0].UserID)
}
