package service

import (
	"context"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/policy"
	"smartfarm-backend/internal/repository"

	"go.uber.org/zap"
)

// FarmView 对外农场视图
type FarmView struct {
	FarmID      string  `json:"farm_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Location    string  `json:"location"`
	Size        float64 `json:"size"`
	SizeUnit    string  `json:"size_unit"`
	OwnerID     string  `json:"owner_id,omitempty"`
}

// newFarmView 构造农场视图
func newFarmView(f *domain.Farm) *FarmView {
	v := &FarmView{
		FarmID:   f.FarmID,
		Name:     f.Name,
		Location: f.Location,
		Size:     f.Size,
		SizeUnit: f.SizeUnit,
	}
	if f.Description.Valid {
		v.Description = f.Description.String
	}
	if f.OwnerID.Valid {
		v.OwnerID = f.OwnerID.String
	}
	return v
}

// newFarmViews 批量构造农场视图
func newFarmViews(farms []*domain.Farm) []*FarmView {
	views := make([]*FarmView, 0, len(farms))
	for _, f := range farms {
		views = append(views, newFarmView(f))
	}
	return views
}

// FarmService 农场管理
type FarmService struct {
	farms       repository.FarmsRepository
	users       repository.UsersRepository
	assignments repository.AssignmentsRepository
	resolver    *ActorResolver
	logger      *zap.Logger
}

// NewFarmService 创建农场服务
func NewFarmService(
	farms repository.FarmsRepository,
	users repository.UsersRepository,
	assignments repository.AssignmentsRepository,
	resolver *ActorResolver,
	logger *zap.Logger,
) *FarmService {
	return &FarmService{
		farms:       farms,
		users:       users,
		assignments: assignments,
		resolver:    resolver,
		logger:      logger,
	}
}

// ListFarmsResponse 农场列表响应
type ListFarmsResponse struct {
	Farms []*FarmView `json:"farms"`
	Total int         `json:"total"`
}

// ListFarms 按调用者角色裁剪农场可见范围
func (s *FarmService) ListFarms(ctx context.Context, actorID string) (*ListFarmsResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	farmIDs, all := s.resolver.visibleFarmIDs(actor)
	var farms []*domain.Farm
	if all {
		farms, err = s.farms.ListFarms(ctx)
	} else {
		farms, err = s.farms.ListFarmsByIDs(ctx, farmIDs)
	}
	if err != nil {
		return nil, err
	}
	return &ListFarmsResponse{Farms: newFarmViews(farms), Total: len(farms)}, nil
}

// GetFarm 查看单个农场
func (s *FarmService) GetFarm(ctx context.Context, actorID, farmID string) (*FarmView, error) {
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
	return newFarmView(farm), nil
}

// CreateFarmRequest 新建农场请求
type CreateFarmRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Size        float64 `json:"size"`
	SizeUnit    string  `json:"size_unit"`
	OwnerID     string  `json:"owner_id"`
}

// CreateFarm 新建农场
//
// SYSTEM_ADMIN 可为任意 owner 建场（owner_id 必须是 FARM_OWNER），
// FARM_OWNER 只能为自己建场
func (s *FarmService) CreateFarm(ctx context.Context, actorID string, req *CreateFarmRequest) (*FarmView, error) {
	if req.Name == "" || req.Location == "" {
		return nil, domain.Validation("name and location are required")
	}
	if req.Size <= 0 {
		return nil, domain.Validation("size must be greater than zero")
	}

	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var ownerID string
	switch actor.Role {
	case domain.RoleSystemAdmin:
		ownerID = req.OwnerID
	case domain.RoleFarmOwner:
		if req.OwnerID != "" && req.OwnerID != actorID {
			return nil, domain.ErrPermissionDenied
		}
		ownerID = actorID
	default:
		return nil, domain.ErrPermissionDenied
	}

	farm := &domain.Farm{
		Name:     req.Name,
		Location: req.Location,
		Size:     req.Size,
		SizeUnit: req.SizeUnit,
	}
	if req.Description != "" {
		farm.Description.String, farm.Description.Valid = req.Description, true
	}
	if ownerID != "" {
		owner, err := s.users.GetUser(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if owner.Role != domain.RoleFarmOwner {
			return nil, domain.ErrInvalidRole
		}
		farm.OwnerID.String, farm.OwnerID.Valid = ownerID, true
	}

	farmID, err := s.farms.CreateFarm(ctx, farm)
	if err != nil {
		return nil, err
	}
	created, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Farm created",
		zap.String("farm_id", farmID),
		zap.String("owner_id", ownerID),
		zap.String("created_by", actorID),
	)
	return newFarmView(created), nil
}

// UpdateFarmRequest 更新农场请求
type UpdateFarmRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Size        float64 `json:"size"`
	SizeUnit    string  `json:"size_unit"`
}

// UpdateFarm 更新农场（管理员或该农场 owner）
func (s *FarmService) UpdateFarm(ctx context.Context, actorID, farmID string, req *UpdateFarmRequest) (*FarmView, error) {
	farm, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !policy.CanManageFarm(actor, farm) {
		return nil, domain.ErrPermissionDenied
	}
	if req.Size < 0 {
		return nil, domain.Validation("size must be greater than zero")
	}

	patch := &domain.Farm{
		Name:     req.Name,
		Location: req.Location,
		Size:     req.Size,
		SizeUnit: req.SizeUnit,
	}
	if req.Description != "" {
		patch.Description.String, patch.Description.Valid = req.Description, true
	}
	if err := s.farms.UpdateFarm(ctx, farmID, patch); err != nil {
		return nil, err
	}
	updated, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	return newFarmView(updated), nil
}

// DeleteFarm 删除农场：先清空场内用户的归属（主管分配随农场级联删除）
func (s *FarmService) DeleteFarm(ctx context.Context, actorID, farmID string) error {
	farm, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return err
	}
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return err
	}
	if !policy.CanManageFarm(actor, farm) {
		return domain.ErrPermissionDenied
	}

	if err := s.users.ClearAssignedFarmByFarm(ctx, farmID); err != nil {
		return err
	}
	if err := s.farms.DeleteFarm(ctx, farmID); err != nil {
		return err
	}

	s.logger.Info("Farm deleted",
		zap.String("farm_id", farmID),
		zap.String("deleted_by", actorID),
	)
	return nil
}
