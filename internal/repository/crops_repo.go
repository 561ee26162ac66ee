package repository

import (
	"context"

	"smartfarm-backend/internal/domain"
)

// CropsRepository 作物 Repository 接口
type CropsRepository interface {
	GetCrop(ctx context.Context, cropID string) (*domain.Crop, error)
	ListCropsByFarmIDs(ctx context.Context, farmIDs []string) ([]*domain.Crop, error)
	ListAllCrops(ctx context.Context) ([]*domain.Crop, error)
	CreateCrop(ctx context.Context, crop *domain.Crop) (string, error)
	UpdateCrop(ctx context.Context, cropID string, crop *domain.Crop) error
	DeleteCrop(ctx context.Context, cropID string) error
	CountByFarm(ctx context.Context, farmID string) (int, error)
}

// LivestockRepository 牲畜 Repository 接口
type LivestockRepository interface {
	GetLivestock(ctx context.Context, livestockID string) (*domain.Livestock, error)
	ListLivestockByFarmIDs(ctx context.Context, farmIDs []string) ([]*domain.Livestock, error)
	ListAllLivestock(ctx context.Context) ([]*domain.Livestock, error)
	CreateLivestock(ctx context.Context, ls *domain.Livestock) (string, error)
	UpdateLivestock(ctx context.Context, livestockID string, ls *domain.Livestock) error
	// DeleteLivestock 软删除（is_active=false）
	DeleteLivestock(ctx context.Context, livestockID string) error
	CountByFarm(ctx context.Context, farmID string) (int, error)
}
