package service

import (
	"context"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/policy"
	"smartfarm-backend/internal/repository"

	"go.uber.org/zap"
)

// AssignmentService 主管-农场分配
//
// 所有写操作遵循同一前置顺序：
//  1. 目标资源存在性（农场、主管）
//  2. 调用者授权（管理员或农场 owner）
//  3. 角色校验（目标必须是 SUPERVISOR）
//  4. 业务校验与写入（repository 事务内完成）
type AssignmentService struct {
	users       repository.UsersRepository
	farms       repository.FarmsRepository
	assignments repository.AssignmentsRepository
	resolver    *ActorResolver
	logger      *zap.Logger
}

// NewAssignmentService 创建分配服务
func NewAssignmentService(
	users repository.UsersRepository,
	farms repository.FarmsRepository,
	assignments repository.AssignmentsRepository,
	resolver *ActorResolver,
	logger *zap.Logger,
) *AssignmentService {
	return &AssignmentService{
		users:       users,
		farms:       farms,
		assignments: assignments,
		resolver:    resolver,
		logger:      logger,
	}
}

// loadSupervisor 取主管并校验角色
func (s *AssignmentService) loadSupervisor(ctx context.Context, supervisorID string) (*domain.User, error) {
	supervisor, err := s.users.GetUser(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	if supervisor.Role != domain.RoleSupervisor {
		return nil, domain.ErrInvalidRole
	}
	return supervisor, nil
}

// authorize 校验调用者对农场的分配管理权
func (s *AssignmentService) authorize(ctx context.Context, actorID, farmID string) (*domain.Farm, error) {
	farm, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !policy.CanManageAssignment(actor, farm) {
		return nil, domain.ErrPermissionDenied
	}
	return farm, nil
}

// AssignSupervisor 给农场追加一名主管（每名主管最多 2 个农场）
func (s *AssignmentService) AssignSupervisor(ctx context.Context, actorID, farmID, supervisorID string) error {
	if _, err := s.authorize(ctx, actorID, farmID); err != nil {
		return err
	}
	if _, err := s.loadSupervisor(ctx, supervisorID); err != nil {
		return err
	}
	if err := s.assignments.Assign(ctx, supervisorID, farmID); err != nil {
		return err
	}
	s.logger.Info("Supervisor assigned to farm",
		zap.String("supervisor_id", supervisorID),
		zap.String("farm_id", farmID),
		zap.String("assigned_by", actorID),
	)
	return nil
}

// RemoveSupervisor 解除主管与农场的分配
func (s *AssignmentService) RemoveSupervisor(ctx context.Context, actorID, farmID, supervisorID string) error {
	if _, err := s.authorize(ctx, actorID, farmID); err != nil {
		return err
	}
	if _, err := s.loadSupervisor(ctx, supervisorID); err != nil {
		return err
	}
	if err := s.assignments.Remove(ctx, supervisorID, farmID); err != nil {
		return err
	}
	s.logger.Info("Supervisor removed from farm",
		zap.String("supervisor_id", supervisorID),
		zap.String("farm_id", farmID),
		zap.String("removed_by", actorID),
	)
	return nil
}

// ReassignSupervisor 原子换岗：调用者必须对两侧农场都有管理权
func (s *AssignmentService) ReassignSupervisor(ctx context.Context, actorID, supervisorID, fromFarmID, toFarmID string) error {
	if fromFarmID == toFarmID {
		return domain.ErrInvalidAssignment
	}
	if _, err := s.authorize(ctx, actorID, fromFarmID); err != nil {
		return err
	}
	if _, err := s.authorize(ctx, actorID, toFarmID); err != nil {
		return err
	}
	if _, err := s.loadSupervisor(ctx, supervisorID); err != nil {
		return err
	}
	if err := s.assignments.Reassign(ctx, supervisorID, fromFarmID, toFarmID); err != nil {
		return err
	}
	s.logger.Info("Supervisor reassigned",
		zap.String("supervisor_id", supervisorID),
		zap.String("from_farm_id", fromFarmID),
		zap.String("to_farm_id", toFarmID),
		zap.String("reassigned_by", actorID),
	)
	return nil
}

// SupervisorsForFarmResponse 农场主管列表响应
type SupervisorsForFarmResponse struct {
	Supervisors []*UserView `json:"supervisors"`
}

// SupervisorsForFarm 列出农场的在任主管（需对农场可见）
func (s *AssignmentService) SupervisorsForFarm(ctx context.Context, actorID, farmID string) (*SupervisorsForFarmResponse, error) {
	farm, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccessFarm(actor, farm) {
		return nil, domain.ErrPermissionDenied
	}

	supervisorIDs, err := s.assignments.ListSupervisorIDsByFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	views := make([]*UserView, 0, len(supervisorIDs))
	for _, id := range supervisorIDs {
		supervisor, err := s.users.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		views = append(views, newUserView(supervisor))
	}
	return &SupervisorsForFarmResponse{Supervisors: views}, nil
}

// FarmsForSupervisorResponse 主管名下农场响应
type FarmsForSupervisorResponse struct {
	Farms []*FarmView `json:"farms"`
}

// FarmsForSupervisor 列出主管负责的农场（本人或有权查看该主管的上级）
func (s *AssignmentService) FarmsForSupervisor(ctx context.Context, actorID, supervisorID string) (*FarmsForSupervisorResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	supervisor, err := s.loadSupervisor(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	if actorID != supervisorID {
		supervisorActor, err := s.resolver.ActorFor(ctx, supervisor)
		if err != nil {
			return nil, err
		}
		if !policy.CanViewUser(actor, supervisorActor) {
			return nil, domain.ErrPermissionDenied
		}
	}

	farmIDs, err := s.assignments.ListFarmIDsBySupervisor(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	farms, err := s.farms.ListFarmsByIDs(ctx, farmIDs)
	if err != nil {
		return nil, err
	}
	return &FarmsForSupervisorResponse{Farms: newFarmViews(farms)}, nil
}
