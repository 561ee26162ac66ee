package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/policy"
	"smartfarm-backend/internal/repository"

	"go.uber.org/zap"
)

// LivestockView 对外牲畜视图
type LivestockView struct {
	LivestockID         string  `json:"livestock_id"`
	Type                string  `json:"type"`
	Breed               string  `json:"breed,omitempty"`
	TagNumber           string  `json:"tag_number"`
	FarmID              string  `json:"farm_id"`
	BirthDate           string  `json:"birth_date,omitempty"`
	Gender              string  `json:"gender,omitempty"`
	Weight              float64 `json:"weight,omitempty"`
	HealthStatus        string  `json:"health_status"`
	LastVaccinationDate string  `json:"last_vaccination_date,omitempty"`
	NextVaccinationDate string  `json:"next_vaccination_date,omitempty"`
	PurchasePrice       float64 `json:"purchase_price,omitempty"`
	CurrentValue        float64 `json:"current_value,omitempty"`
	Notes               string  `json:"notes,omitempty"`
}

// newLivestockView 构造牲畜视图
func newLivestockView(l *domain.Livestock) *LivestockView {
	v := &LivestockView{
		LivestockID:  l.LivestockID,
		Type:         l.Type,
		TagNumber:    l.TagNumber,
		FarmID:       l.FarmID,
		HealthStatus: string(l.HealthStatus),
	}
	if l.Breed.Valid {
		v.Breed = l.Breed.String
	}
	if l.BirthDate.Valid {
		v.BirthDate = l.BirthDate.Time.Format("2006-01-02")
	}
	if l.Gender.Valid {
		v.Gender = l.Gender.String
	}
	if l.Weight.Valid {
		v.Weight = l.Weight.Float64
	}
	if l.LastVaccinationDate.Valid {
		v.LastVaccinationDate = l.LastVaccinationDate.Time.Format("2006-01-02")
	}
	if l.NextVaccinationDate.Valid {
		v.NextVaccinationDate = l.NextVaccinationDate.Time.Format("2006-01-02")
	}
	if l.PurchasePrice.Valid {
		v.PurchasePrice = l.PurchasePrice.Float64
	}
	if l.CurrentValue.Valid {
		v.CurrentValue = l.CurrentValue.Float64
	}
	if l.Notes.Valid {
		v.Notes = l.Notes.String
	}
	return v
}

// LivestockService 牲畜档案管理
type LivestockService struct {
	livestock repository.LivestockRepository
	farms     repository.FarmsRepository
	resolver  *ActorResolver
	logger    *zap.Logger
}

// NewLivestockService 创建牲畜服务
func NewLivestockService(livestock repository.LivestockRepository, farms repository.FarmsRepository, resolver *ActorResolver, logger *zap.Logger) *LivestockService {
	return &LivestockService{
		livestock: livestock,
		farms:     farms,
		resolver:  resolver,
		logger:    logger,
	}
}

// ListLivestockResponse 牲畜列表响应
type ListLivestockResponse struct {
	Livestock []*LivestockView `json:"livestock"`
	Total     int              `json:"total"`
}

// ListLivestock 可见农场范围内的在册牲畜
func (s *LivestockService) ListLivestock(ctx context.Context, actorID string) (*ListLivestockResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	farmIDs, all := s.resolver.visibleFarmIDs(actor)
	var items []*domain.Livestock
	if all {
		items, err = s.livestock.ListAllLivestock(ctx)
	} else if len(farmIDs) == 0 {
		return &ListLivestockResponse{Livestock: []*LivestockView{}}, nil
	} else {
		items, err = s.livestock.ListLivestockByFarmIDs(ctx, farmIDs)
	}
	if err != nil {
		return nil, err
	}

	views := make([]*LivestockView, 0, len(items))
	for _, l := range items {
		views = append(views, newLivestockView(l))
	}
	return &ListLivestockResponse{Livestock: views, Total: len(views)}, nil
}

// GetLivestock 查看单个牲畜
func (s *LivestockService) GetLivestock(ctx context.Context, actorID, livestockID string) (*LivestockView, error) {
	item, err := s.livestock.GetLivestock(ctx, livestockID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeFarm(ctx, actorID, item.FarmID); err != nil {
		return nil, err
	}
	return newLivestockView(item), nil
}

// authorizeFarm 校验调用者对牲畜所在农场可见
func (s *LivestockService) authorizeFarm(ctx context.Context, actorID, farmID string) error {
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

// LivestockRequest 牲畜写请求（创建与更新共用）
type LivestockRequest struct {
	Type                string  `json:"type"`
	Breed               string  `json:"breed"`
	TagNumber           string  `json:"tag_number"`
	FarmID              string  `json:"farm_id"`
	BirthDate           string  `json:"birth_date"` // YYYY-MM-DD
	Gender              string  `json:"gender"`
	Weight              float64 `json:"weight"`
	HealthStatus        string  `json:"health_status"`
	LastVaccinationDate string  `json:"last_vaccination_date"`
	NextVaccinationDate string  `json:"next_vaccination_date"`
	PurchasePrice       float64 `json:"purchase_price"`
	CurrentValue        float64 `json:"current_value"`
	Notes               string  `json:"notes"`
}

// buildLivestock 由请求拼领域对象
func buildLivestock(req *LivestockRequest) (*domain.Livestock, error) {
	item := &domain.Livestock{
		Type:      req.Type,
		TagNumber: req.TagNumber,
		FarmID:    req.FarmID,
	}
	if req.HealthStatus != "" {
		status := domain.HealthStatus(strings.ToUpper(req.HealthStatus))
		if !status.Valid() {
			return nil, domain.Validation(fmt.Sprintf("unknown health status: %s", req.HealthStatus))
		}
		item.HealthStatus = status
	}
	if req.Breed != "" {
		item.Breed.String, item.Breed.Valid = req.Breed, true
	}
	if req.Gender != "" {
		item.Gender.String, item.Gender.Valid = req.Gender, true
	}
	if req.Notes != "" {
		item.Notes.String, item.Notes.Valid = req.Notes, true
	}
	if req.Weight > 0 {
		item.Weight.Float64, item.Weight.Valid = req.Weight, true
	}
	if req.PurchasePrice > 0 {
		item.PurchasePrice.Float64, item.PurchasePrice.Valid = req.PurchasePrice, true
	}
	if req.CurrentValue > 0 {
		item.CurrentValue.Float64, item.CurrentValue.Valid = req.CurrentValue, true
	}
	for _, d := range []struct {
		raw  string
		dest *time.Time
		ok   *bool
	}{
		{req.BirthDate, &item.BirthDate.Time, &item.BirthDate.Valid},
		{req.LastVaccinationDate, &item.LastVaccinationDate.Time, &item.LastVaccinationDate.Valid},
		{req.NextVaccinationDate, &item.NextVaccinationDate.Time, &item.NextVaccinationDate.Valid},
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
	return item, nil
}

// CreateLivestock 入册牲畜
func (s *LivestockService) CreateLivestock(ctx context.Context, actorID string, req *LivestockRequest) (*LivestockView, error) {
	if req.Type == "" || req.TagNumber == "" {
		return nil, domain.Validation("type and tag_number are required")
	}
	if req.FarmID == "" {
		return nil, domain.Validation("farm_id is required")
	}
	if err := s.authorizeFarm(ctx, actorID, req.FarmID); err != nil {
		return nil, err
	}

	item, err := buildLivestock(req)
	if err != nil {
		return nil, err
	}
	if item.HealthStatus == "" {
		item.HealthStatus = domain.HealthHealthy
	}
	item.IsActive = true

	livestockID, err := s.livestock.CreateLivestock(ctx, item)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Validation("tag number already in use")
		}
		return nil, err
	}
	created, err := s.livestock.GetLivestock(ctx, livestockID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Livestock registered",
		zap.String("livestock_id", livestockID),
		zap.String("tag_number", req.TagNumber),
		zap.String("farm_id", req.FarmID),
	)
	return newLivestockView(created), nil
}

// UpdateLivestock 更新牲畜档案
func (s *LivestockService) UpdateLivestock(ctx context.Context, actorID, livestockID string, req *LivestockRequest) (*LivestockView, error) {
	existing, err := s.livestock.GetLivestock(ctx, livestockID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeFarm(ctx, actorID, existing.FarmID); err != nil {
		return nil, err
	}

	req.FarmID = "" // 不允许跨农场移动
	patch, err := buildLivestock(req)
	if err != nil {
		return nil, err
	}
	if err := s.livestock.UpdateLivestock(ctx, livestockID, patch); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Validation("tag number already in use")
		}
		return nil, err
	}
	updated, err := s.livestock.GetLivestock(ctx, livestockID)
	if err != nil {
		return nil, err
	}
	return newLivestockView(updated), nil
}

// DeleteLivestock 出册（软删除）
func (s *LivestockService) DeleteLivestock(ctx context.Context, actorID, livestockID string) error {
	item, err := s.livestock.GetLivestock(ctx, livestockID)
	if err != nil {
		return err
	}
	if err := s.authorizeFarm(ctx, actorID, item.FarmID); err != nil {
		return err
	}
	if err := s.livestock.DeleteLivestock(ctx, livestockID); err != nil {
		return err
	}
	s.logger.Info("Livestock deregistered",
		zap.String("livestock_id", livestockID),
		zap.String("deleted_by", actorID),
	)
	return nil
}
