package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"smartfarm-backend/internal/domain"

	"github.com/lib/pq"
)

// PostgresCropsRepository 作物 Repository 实现
type PostgresCropsRepository struct {
	db *sql.DB
}

// NewPostgresCropsRepository 创建作物 Repository
func NewPostgresCropsRepository(db *sql.DB) *PostgresCropsRepository {
	return &PostgresCropsRepository{db: db}
}

var _ CropsRepository = (*PostgresCropsRepository)(nil)

const cropColumns = `
	crop_id::text,
	name,
	variety,
	description,
	farm_id::text,
	planting_date,
	expected_harvest_date,
	actual_harvest_date,
	area_planted,
	expected_yield,
	actual_yield,
	status,
	notes,
	created_at,
	updated_at
`

func scanCrop(row rowScanner) (*domain.Crop, error) {
	var crop domain.Crop
	err := row.Scan(
		&crop.CropID,
		&crop.Name,
		&crop.Variety,
		&crop.Description,
		&crop.FarmID,
		&crop.PlantingDate,
		&crop.ExpectedHarvestDate,
		&crop.ActualHarvestDate,
		&crop.AreaPlanted,
		&crop.ExpectedYield,
		&crop.ActualYield,
		&crop.Status,
		&crop.Notes,
		&crop.CreatedAt,
		&crop.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &crop, nil
}

// GetCrop 获取作物
func (r *PostgresCropsRepository) GetCrop(ctx context.Context, cropID string) (*domain.Crop, error) {
	if cropID == "" {
		return nil, domain.ErrNotFound
	}
	crop, err := scanCrop(r.db.QueryRowContext(ctx,
		`SELECT `+cropColumns+` FROM crops WHERE crop_id = $1`, cropID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return crop, err
}

// ListCropsByFarmIDs 按农场集合列出作物
func (r *PostgresCropsRepository) ListCropsByFarmIDs(ctx context.Context, farmIDs []string) ([]*domain.Crop, error) {
	if len(farmIDs) == 0 {
		return []*domain.Crop{}, nil
	}
	return r.queryCrops(ctx,
		`SELECT `+cropColumns+` FROM crops WHERE farm_id = ANY($1::uuid[]) ORDER BY created_at DESC`,
		pq.Array(farmIDs))
}

// ListAllCrops 全量作物（管理员视角）
func (r *PostgresCropsRepository) ListAllCrops(ctx context.Context) ([]*domain.Crop, error) {
	return r.queryCrops(ctx, `SELECT `+cropColumns+` FROM crops ORDER BY created_at DESC`)
}

func (r *PostgresCropsRepository) queryCrops(ctx context.Context, query string, args ...any) ([]*domain.Crop, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	crops := []*domain.Crop{}
	for rows.Next() {
		crop, err := scanCrop(rows)
		if err != nil {
			return nil, err
		}
		crops = append(crops, crop)
	}
	return crops, rows.Err()
}

// CreateCrop 创建作物
func (r *PostgresCropsRepository) CreateCrop(ctx context.Context, crop *domain.Crop) (string, error) {
	if crop == nil {
		return "", fmt.Errorf("crop is required")
	}
	if crop.Name == "" || crop.FarmID == "" {
		return "", fmt.Errorf("name and farm_id are required")
	}

	status := crop.Status
	if status == "" {
		status = domain.CropPlanted
	}

	var cropID string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO crops (
			name, variety, description, farm_id,
			planting_date, expected_harvest_date, actual_harvest_date,
			area_planted, expected_yield, actual_yield, status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING crop_id::text
	`,
		crop.Name,
		toAnyString(crop.Variety),
		toAnyString(crop.Description),
		crop.FarmID,
		toAnyTime(crop.PlantingDate),
		toAnyTime(crop.ExpectedHarvestDate),
		toAnyTime(crop.ActualHarvestDate),
		toAnyFloat(crop.AreaPlanted),
		toAnyFloat(crop.ExpectedYield),
		toAnyFloat(crop.ActualYield),
		status,
		toAnyString(crop.Notes),
	).Scan(&cropID)
	if err != nil {
		return "", fmt.Errorf("failed to insert crop: %w", err)
	}
	return cropID, nil
}

// UpdateCrop 更新作物（零值字段不更新）
func (r *PostgresCropsRepository) UpdateCrop(ctx context.Context, cropID string, crop *domain.Crop) error {
	if cropID == "" {
		return fmt.Errorf("crop_id is required")
	}
	if crop == nil {
		return fmt.Errorf("crop is required")
	}

	updates := []string{"updated_at = NOW()"}
	args := []any{cropID}
	argIdx := 2

	appendString := func(col string, v string) {
		if v != "" {
			updates = append(updates, fmt.Sprintf("%s = $%d", col, argIdx))
			args = append(args, v)
			argIdx++
		}
	}
	appendNullString := func(col string, v sql.NullString) {
		if v.Valid {
			updates = append(updates, fmt.Sprintf("%s = $%d", col, argIdx))
			args = append(args, v)
			argIdx++
		}
	}
	appendNullTime := func(col string, v sql.NullTime) {
		if v.Valid {
			updates = append(updates, fmt.Sprintf("%s = $%d", col, argIdx))
			args = append(args, v)
			argIdx++
		}
	}
	appendNullFloat := func(col string, v sql.NullFloat64) {
		if v.Valid {
			updates = append(updates, fmt.Sprintf("%s = $%d", col, argIdx))
			args = append(args, v)
			argIdx++
		}
	}

	appendString("name", crop.Name)
	appendNullString("variety", crop.Variety)
	appendNullString("description", crop.Description)
	appendNullTime("planting_date", crop.PlantingDate)
	appendNullTime("expected_harvest_date", crop.ExpectedHarvestDate)
	appendNullTime("actual_harvest_date", crop.ActualHarvestDate)
	appendNullFloat("area_planted", crop.AreaPlanted)
	appendNullFloat("expected_yield", crop.ExpectedYield)
	appendNullFloat("actual_yield", crop.ActualYield)
	appendString("status", string(crop.Status))
	appendNullString("notes", crop.Notes)

	query := fmt.Sprintf(`UPDATE crops SET %s WHERE crop_id = $1`, strings.Join(updates, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update crop: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteCrop 删除作物
func (r *PostgresCropsRepository) DeleteCrop(ctx context.Context, cropID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM crops WHERE crop_id = $1`, cropID)
	if err != nil {
		return fmt.Errorf("failed to delete crop: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByFarm 某农场作物数
func (r *PostgresCropsRepository) CountByFarm(ctx context.Context, farmID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM crops WHERE farm_id = $1`, farmID).Scan(&count)
	return count, err
}
