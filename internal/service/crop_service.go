package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/policy"
	"smartfarm-backend/internal/repository"

	"go.uber.org/zap"
)

// CropView 对外作物视图
type CropView struct {
	CropID              string  `json:"crop_id"`
	Name                string  `json:"name"`
	Variety             string  `json:"variety,omitempty"`
	Description         string  `json:"description,omitempty"`
	FarmID              string  `json:"farm_id"`
	PlantingDate        string  `json:"planting_date,omitempty"`
	ExpectedHarvestDate string  `json:"expected_harvest_date,omitempty"`
	ActualHarvestDate   string  `json:"actual_harvest_date,omitempty"`
	AreaPlanted         float64 `json:"area_planted,omitempty"`
	ExpectedYield       float64 `json:"expected_yield,omitempty"`
	ActualYield         float64 `json:"actual_yield,omitempty"`
	Status              string  `json:"status"`
	Notes               string  `json:"notes,omitempty"`
}

// newCropView 构造作物视图
func newCropView(c *domain.Crop) *CropView {
	v := &CropView{
		CropID: c.CropID,
		Name:   c.Name,
		FarmID: c.FarmID,
		Status: string(c.Status),
	}
	if c.Variety.Valid {
		v.Variety = c.Variety.String
	}
	if c.Description.Valid {
		v.Description = c.Description.String
	}
	if c.PlantingDate.Valid {
		v.PlantingDate = c.PlantingDate.Time.Format("2006-01-02")
	}
	if c.ExpectedHarvestDate.Valid {
		v.ExpectedHarvestDate = c.ExpectedHarvestDate.Time.Format("2006-01-02")
	}
	if c.ActualHarvestDate.Valid {
		v.ActualHarvestDate = c.ActualHarvestDate.Time.Format("2006-01-02")
	}
	if c.AreaPlanted.Valid {
		v.AreaPlanted = c.AreaPlanted.Float64
	}
	if c.ExpectedYield.Valid {
		v.ExpectedYield = c.ExpectedYield.Float64
	}
	if c.ActualYield.Valid {
		v.ActualYield = c.ActualYield.Float64
	}
	if c.Notes.Valid {
		v.Notes = c.Notes.String
	}
	return v
}

// CropService 作物档案管理
type CropService struct {
	crops    repository.CropsRepository
	farms    repository.FarmsRepository
	resolver *ActorResolver
	logger   *zap.Logger
}

// NewCropService 创建作物服务
func NewCropService(crops repository.CropsRepository, farms repository.FarmsRepository, resolver *ActorResolver, logger *zap.Logger) *CropService {
	return &CropService{
		crops:    crops,
		farms:    farms,
		resolver: resolver,
		logger:   logger,
	}
}

// ListCropsResponse 作物列表响应
type ListCropsResponse struct {
	Crops []*CropView `json:"crops"`
	Total int         `json:"total"`
}

// ListCrops 可见农场范围内的作物
func (s *CropService) ListCrops(ctx context.Context, actorID string) (*ListCropsResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	farmIDs, all := s.resolver.visibleFarmIDs(actor)
	var crops []*domain.Crop
	if all {
		crops, err = s.crops.ListAllCrops(ctx)
	} else if len(farmIDs) == 0 {
		return &ListCropsResponse{Crops: []*CropView{}}, nil
	} else {
		crops, err = s.crops.ListCropsByFarmIDs(ctx, farmIDs)
	}
	if err != nil {
		return nil, err
	}

	views := make([]*CropView, 0, len(crops))
	for _, c := range crops {
		views = append(views, newCropView(c))
	}
	return &ListCropsResponse{Crops: views, Total: len(views)}, nil
}

// GetCrop 查看单个作物
func (s *CropService) GetCrop(ctx context.Context, actorID, cropID string) (*CropView, error) {
	crop, err := s.crops.GetCrop(ctx, cropID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeFarm(ctx, actorID, crop.FarmID); err != nil {
		return nil, err
	}
	return newCropView(crop), nil
}

// authorizeFarm 校验调用者对作物所在农场可见
func (s *CropService) authorizeFarm(ctx context.Context, actorID, farmID string) error {
	farm, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return err
	}
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return err
	}
	if !policy.CanAccessFarm(actor, farm) {
		return domain.ErrPermissionDenied
	}
	return nil
}

// CropRequest 作物写请求（创建与更新共用）
type CropRequest struct {
	Name                string  `json:"name"`
	Variety             string  `json:"variety"`
	Description         string  `json:"description"`
	FarmID              string  `json:"farm_id"`
	PlantingDate        string  `json:"planting_date"` // YYYY-MM-DD
	ExpectedHarvestDate string  `json:"expected_harvest_date"`
	ActualHarvestDate   string  `json:"actual_harvest_date"`
	AreaPlanted         float64 `json:"area_planted"`
	ExpectedYield       float64 `json:"expected_yield"`
	ActualYield         float64 `json:"actual_yield"`
	Status              string  `json:"status"`
	Notes               string  `json:"notes"`
}

// buildCrop 由请求拼领域对象
func buildCrop(req *CropRequest) (*domain.Crop, error) {
	crop := &domain.Crop{
		Name:   req.Name,
		FarmID: req.FarmID,
	}
	if req.Status != "" {
		status := domain.CropStatus(strings.ToUpper(req.Status))
		if !status.Valid() {
			return nil, domain.Validation(fmt.Sprintf("unknown crop status: %s", req.Status))
		}
		crop.Status = status
	}
	if req.Variety != "" {
		crop.Variety.String, crop.Variety.Valid = req.Variety, true
	}
	if req.Description != "" {
		crop.Description.String, crop.Description.Valid = req.Description, true
	}
	if req.Notes != "" {
		crop.Notes.String, crop.Notes.Valid = req.Notes, true
	}
	if req.AreaPlanted > 0 {
		crop.AreaPlanted.Float64, crop.AreaPlanted.Valid = req.AreaPlanted, true
	}
	if req.ExpectedYield > 0 {
		crop.ExpectedYield.Float64, crop.ExpectedYield.Valid = req.ExpectedYield, true
	}
	if req.ActualYield > 0 {
		crop.ActualYield.Float64, crop.ActualYield.Valid = req.ActualYield, true
	}
	for _, d := range []struct {
		raw  string
		dest *time.Time
		ok   *bool
	}{
		{req.PlantingDate, &crop.PlantingDate.Time, &crop.PlantingDate.Valid},
		{req.ExpectedHarvestDate, &crop.ExpectedHarvestDate.Time, &crop.ExpectedHarvestDate.Valid},
		{req.ActualHarvestDate, &crop.ActualHarvestDate.Time, &crop.ActualHarvestDate.Valid},
	} {
		if d.raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", d.raw)
		if err != nil {
			return nil, domain.Validation(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", d.raw))
		}
		*d.dest, *d.ok = t, true
	}
	return crop, nil
}

// CreateCrop 新建作物档案
func (s *CropService) CreateCrop(ctx context.Context, actorID string, req *CropRequest) (*CropView, error) {
	if req.Name == "" {
		return nil, domain.Validation("name is required")
	}
	if req.FarmID == "" {
		return nil, domain.Validation("farm_id is required")
	}
	if err := s.authorizeFarm(ctx, actorID, req.FarmID); err != nil {
		return nil, err
	}

	crop, err := buildCrop(req)
	if err != nil {
		return nil, err
	}
	if crop.Status == "" {
		crop.Status = domain.CropPlanted
	}

	cropID, err := s.crops.CreateCrop(ctx, crop)
	if err != nil {
		return nil, err
	}
	created, err := s.crops.GetCrop(ctx, cropID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Crop created",
		zap.String("crop_id", cropID),
		zap.String("farm_id", req.FarmID),
		zap.String("created_by", actorID),
	)
	return newCropView(created), nil
}

// UpdateCrop 更新作物档案
func (s *CropService) UpdateCrop(ctx context.Context, actorID, cropID string, req *CropRequest) (*CropView, error) {
	existing, err := s.crops.GetCrop(ctx, cropID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeFarm(ctx, actorID, existing.FarmID); err != nil {
		return nil, err
	}

	req.FarmID = "" // 不允许跨农场移动
	patch, err := buildCrop(req)
	if err != nil {
		return nil, err
	}
	if err := s.crops.UpdateCrop(ctx, cropID, patch); err != nil {
		return nil, err
	}
	updated, err := s.crops.GetCrop(ctx, cropID)
	if err != nil {
		return nil, err
	}
	return newCropView(updated), nil
}

// DeleteCrop 删除作物档案
func (s *CropService) DeleteCrop(ctx context.Context, actorID, cropID string) error {
	crop, err := s.crops.GetCrop(ctx, cropID)
	if err != nil {
		return err
	}
	if err := s.authorizeFarm(ctx, actorID, crop.FarmID); err != nil {
		return err
	}
	if err := s.crops.DeleteCrop(ctx, cropID); err != nil {
		return err
	}
	s.logger.Info("Crop deleted",
		zap.String("crop_id", cropID),
		zap.String("deleted_by", actorID),
	)
	return nil
}
