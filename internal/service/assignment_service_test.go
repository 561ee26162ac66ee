package service

import (
	"context"
	"database/sql"
	"testing"

	"smartfarm-backend/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type assignmentFixture struct {
	users       *fakeUsersRepo
	farms       *fakeFarmsRepo
	assignments *fakeAssignmentsRepo
	svc         *AssignmentService

	admin      *domain.User
	owner      *domain.User
	supervisor *domain.User
	worker     *domain.User
	farmA      *domain.Farm
	farmB      *domain.Farm
	farmC      *domain.Farm
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()
	users := newFakeUsersRepo()
	farms := newFakeFarmsRepo()
	assignments := newFakeAssignmentsRepo(users)
	resolver := NewActorResolver(users, farms, assignments)
	svc := NewAssignmentService(users, farms, assignments, resolver, zap.NewNop())

	fx := &assignmentFixture{users: users, farms: farms, assignments: assignments, svc: svc}
	fx.admin = users.put(&domain.User{Username: "admin", Email: "admin@test.local", Role: domain.RoleSystemAdmin, IsActive: true})
	fx.owner = users.put(&domain.User{Username: "owner", Email: "owner@test.local", Role: domain.RoleFarmOwner, IsActive: true})
	fx.supervisor = users.put(&domain.User{Username: "sup", Email: "sup@test.local", Role: domain.RoleSupervisor, IsActive: true})
	fx.worker = users.put(&domain.User{Username: "worker", Email: "worker@test.local", Role: domain.RoleWorker, IsActive: true})

	ownerID := sql.NullString{String: fx.owner.UserID, Valid: true}
	fx.farmA = farms.put(&domain.Farm{Name: "North Field", Location: "north", Size: 10, SizeUnit: "hectares", OwnerID: ownerID})
	fx.farmB = farms.put(&domain.Farm{Name: "South Field", Location: "south", Size: 8, SizeUnit: "hectares", OwnerID: ownerID})
	fx.farmC = farms.put(&domain.Farm{Name: "East Field", Location: "east", Size: 6, SizeUnit: "hectares", OwnerID: ownerID})
	return fx
}

func TestAssignSupervisor(t *testing.T) {
	ctx := context.Background()

	t.Run("admin assigns and first farm becomes primary", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		err := fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.supervisor.UserID)
		require.NoError(t, err)

		sup, err := fx.users.GetUser(ctx, fx.supervisor.UserID)
		require.NoError(t, err)
		require.True(t, sup.AssignedFarmID.Valid)
		require.Equal(t, fx.farmA.FarmID, sup.AssignedFarmID.String)
	})

	t.Run("owner can assign on own farm", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		err := fx.svc.AssignSupervisor(ctx, fx.owner.UserID, fx.farmA.FarmID, fx.supervisor.UserID)
		require.NoError(t, err)
	})

	t.Run("unrelated owner is denied", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		other := fx.users.put(&domain.User{Username: "owner2", Email: "owner2@test.local", Role: domain.RoleFarmOwner, IsActive: true})
		err := fx.svc.AssignSupervisor(ctx, other.UserID, fx.farmA.FarmID, fx.supervisor.UserID)
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
	})

	t.Run("target must be a supervisor", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		err := fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.worker.UserID)
		require.ErrorIs(t, err, domain.ErrInvalidRole)
	})

	t.Run("duplicate assignment is rejected", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		require.NoError(t, fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.supervisor.UserID))
		err := fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.supervisor.UserID)
		require.ErrorIs(t, err, domain.ErrAlreadyAssigned)
	})

	t.Run("third farm exceeds capacity", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		require.NoError(t, fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.supervisor.UserID))
		require.NoError(t, fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmB.FarmID, fx.supervisor.UserID))
		err := fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmC.FarmID, fx.supervisor.UserID)
		require.ErrorIs(t, err, domain.ErrCapacityExceeded)
	})

	t.Run("unknown farm", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		err := fx.svc.AssignSupervisor(ctx, fx.admin.UserID, "missing", fx.supervisor.UserID)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRemoveSupervisor(t *testing.T) {
	ctx := context.Background()

	t.Run("not assigned", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		err := fx.svc.RemoveSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.supervisor.UserID)
		require.ErrorIs(t, err, domain.ErrNotAssigned)
	})

	t.Run("removing primary promotes the remaining farm", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		require.NoError(t, fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.supervisor.UserID))
		require.NoError(t, fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmB.FarmID, fx.supervisor.UserID))

		require.NoError(t, fx.svc.RemoveSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.supervisor.UserID))

		sup, err := fx.users.GetUser(ctx, fx.supervisor.UserID)
		require.NoError(t, err)
		require.True(t, sup.AssignedFarmID.Valid)
		require.Equal(t, fx.farmB.FarmID, sup.AssignedFarmID.String)
	})

	t.Run("removing last assignment clears primary", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		require.NoError(t, fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.supervisor.UserID))
		require.NoError(t, fx.svc.RemoveSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.supervisor.UserID))

		sup, err := fx.users.GetUser(ctx, fx.supervisor.UserID)
		require.NoError(t, err)
		require.False(t, sup.AssignedFarmID.Valid)
	})
}

func TestReassignSupervisor(t *testing.T) {
	ctx := context.Background()

	t.Run("same source and destination", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		err := fx.svc.ReassignSupervisor(ctx, fx.admin.UserID, fx.supervisor.UserID, fx.farmA.FarmID, fx.farmA.FarmID)
		require.ErrorIs(t, err, domain.ErrInvalidAssignment)
	})

	t.Run("primary farm follows the move", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		require.NoError(t, fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.supervisor.UserID))
		require.NoError(t, fx.svc.ReassignSupervisor(ctx, fx.admin.UserID, fx.supervisor.UserID, fx.farmA.FarmID, fx.farmB.FarmID))

		sup, err := fx.users.GetUser(ctx, fx.supervisor.UserID)
		require.NoError(t, err)
		require.Equal(t, fx.farmB.FarmID, sup.AssignedFarmID.String)

		farmIDs, err := fx.assignments.ListFarmIDsBySupervisor(ctx, fx.supervisor.UserID)
		require.NoError(t, err)
		require.Equal(t, []string{fx.farmB.FarmID}, farmIDs)
	})

	t.Run("destination already assigned", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		require.NoError(t, fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmA.FarmID, fx.supervisor.UserID))
		require.NoError(t, fx.svc.AssignSupervisor(ctx, fx.admin.UserID, fx.farmB.FarmID, fx.supervisor.UserID))
		err := fx.svc.ReassignSupervisor(ctx, fx.admin.UserID, fx.supervisor.UserID, fx.farmA.FarmID, fx.farmB.FarmID)
		require.ErrorIs(t, err, domain.ErrAlreadyAssigned)
	})

	t.Run("source not assigned", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		err := fx.svc.ReassignSupervisor(ctx, fx.admin.UserID, fx.supervisor.UserID, fx.farmA.FarmID, fx.farmB.FarmID)
		require.ErrorIs(t, err, domain.ErrNotAssigned)
	})

	t.Run("caller needs rights on both farms", func(t *testing.T) {
		fx := newAssignmentFixture(t)
		other := fx.users.put(&domain.User{Username: "owner2", Email: "owner2@test.local", Role: domain.RoleFarmOwner, IsActive: true})
		foreign := fx.farms.put(&domain.Farm{Name: "West Field", Location: "west", Size: 4, SizeUnit: "hectares", OwnerID: sql.NullString{String: other.UserID, Valid: true}})
		require.NoError(t, fx.svc.AssignSupervisor(ctx, fx.owner.UserID, fx.farmA.FarmID, fx.supervisor.UserID))

		err := fx.svc.ReassignSupervisor(ctx, fx.owner.UserID, fx.supervisor.UserID, fx.farmA.FarmID, foreign.FarmID)
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
	})
}
