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

// PostgresLivestockRepository 牲畜 Repository 实现
type PostgresLivestockRepository struct {
	db *sql.DB
}

// NewPostgresLivestockRepository 创建牲畜 Repository
func NewPostgresLivestockRepository(db *sql.DB) *PostgresLivestockRepository {
	return &PostgresLivestockRepository{db: db}
}

var _ LivestockRepository = (*PostgresLivestockRepository)(nil)

const livestockColumns = `
	livestock_id::text,
	type,
	breed,
	tag_number,
	farm_id::text,
	birth_date,
	gender,
	weight,
	health_status,
	last_vaccination_date,
	next_vaccination_date,
	purchase_price,
	current_value,
	notes,
	is_active,
	created_at,
	updated_at
`

func scanLivestock(row rowScanner) (*domain.Livestock, error) {
	var ls domain.Livestock
	err := row.Scan(
		&ls.LivestockID,
		&ls.Type,
		&ls.Breed,
		&ls.TagNumber,
		&ls.FarmID,
		&ls.BirthDate,
		&ls.Gender,
		&ls.Weight,
		&ls.HealthStatus,
		&ls.LastVaccinationDate,
		&ls.NextVaccinationDate,
		&ls.PurchasePrice,
		&ls.CurrentValue,
		&ls.Notes,
		&ls.IsActive,
		&ls.CreatedAt,
		&ls.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ls, nil
}

// GetLivestock 获取牲畜
func (r *PostgresLivestockRepository) GetLivestock(ctx context.Context, livestockID string) (*domain.Livestock, error) {
	if livestockID == "" {
		return nil, domain.ErrNotFound
	}
	ls, err := scanLivestock(r.db.QueryRowContext(ctx,
		`SELECT `+livestockColumns+` FROM livestock WHERE livestock_id = $1`, livestockID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return ls, err
}

// ListLivestockByFarmIDs 按农场集合列出（仅活跃）
func (r *PostgresLivestockRepository) ListLivestockByFarmIDs(ctx context.Context, farmIDs []string) ([]*domain.Livestock, error) {
	if len(farmIDs) == 0 {
		return []*domain.Livestock{}, nil
	}
	return r.queryLivestock(ctx,
		`SELECT `+livestockColumns+` FROM livestock
		 WHERE farm_id = ANY($1::uuid[]) AND is_active = TRUE
		 ORDER BY tag_number ASC`,
		pq.Array(farmIDs))
}

// ListAllLivestock 全量（管理员视角，仅活跃）
func (r *PostgresLivestockRepository) ListAllLivestock(ctx context.Context) ([]*domain.Livestock, error) {
	return r.queryLivestock(ctx,
		`SELECT `+livestockColumns+` FROM livestock WHERE is_active = TRUE ORDER BY tag_number ASC`)
}

func (r *PostgresLivestockRepository) queryLivestock(ctx context.Context, query string, args ...any) ([]*domain.Livestock, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	animals := []*domain.Livestock{}
	for rows.Next() {
		ls, err := scanLivestock(rows)
		if err != nil {
			return nil, err
		}
		animals = append(animals, ls)
	}
	return animals, rows.Err()
}

// CreateLivestock 创建牲畜
func (r *PostgresLivestockRepository) CreateLivestock(ctx context.Context, ls *domain.Livestock) (string, error) {
	if ls == nil {
		return "", fmt.Errorf("livestock is required")
	}
	if ls.Type == "" || ls.TagNumber == "" || ls.FarmID == "" {
		return "", fmt.Errorf("type, tag_number and farm_id are required")
	}

	healthStatus := ls.HealthStatus
	if healthStatus == "" {
		healthStatus = domain.HealthHealthy
	}

	var livestockID string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO livestock (
			type, breed, tag_number, farm_id, birth_date, gender, weight,
			health_status, last_vaccination_date, next_vaccination_date,
			purchase_price, current_value, notes, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE)
		RETURNING livestock_id::text
	`,
		ls.Type,
		toAnyString(ls.Breed),
		ls.TagNumber,
		ls.FarmID,
		toAnyTime(ls.BirthDate),
		toAnyString(ls.Gender),
		toAnyFloat(ls.Weight),
		healthStatus,
		toAnyTime(ls.LastVaccinationDate),
		toAnyTime(ls.NextVaccinationDate),
		toAnyFloat(ls.PurchasePrice),
		toAnyFloat(ls.CurrentValue),
		toAnyString(ls.Notes),
	).Scan(&livestockID)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrDuplicate
		}
		return "", fmt.Errorf("failed to insert livestock: %w", err)
	}
	return livestockID, nil
}

// UpdateLivestock 更新牲畜（零值字段不更新）
func (r *PostgresLivestockRepository) UpdateLivestock(ctx context.Context, livestockID string, ls *domain.Livestock) error {
	if livestockID == "" {
		return fmt.Errorf("livestock_id is required")
	}
	if ls == nil {
		return fmt.Errorf("livestock is required")
	}

	updates := []string{"updated_at = NOW()"}
	args := []any{livestockID}
	argIdx := 2

	appendVal := func(col string, v any) {
		updates = append(updates, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, v)
		argIdx++
	}

	if ls.Type != "" {
		appendVal("type", ls.Type)
	}
	if ls.Breed.Valid {
		appendVal("breed", ls.Breed)
	}
	if ls.TagNumber != "" {
		appendVal("tag_number", ls.TagNumber)
	}
	if ls.BirthDate.Valid {
		appendVal("birth_date", ls.BirthDate)
	}
	if ls.Gender.Valid {
		appendVal("gender", ls.Gender)
	}
	if ls.Weight.Valid {
		appendVal("weight", ls.Weight)
	}
	if ls.HealthStatus != "" {
		appendVal("health_status", ls.HealthStatus)
	}
	if ls.LastVaccinationDate.Valid {
		appendVal("last_vaccination_date", ls.LastVaccinationDate)
	}
	if ls.NextVaccinationDate.Valid {
		appendVal("next_vaccination_date", ls.NextVaccinationDate)
	}
	if ls.PurchasePrice.Valid {
		appendVal("purchase_price", ls.PurchasePrice)
	}
	if ls.CurrentValue.Valid {
		appendVal("current_value", ls.CurrentValue)
	}
	if ls.Notes.Valid {
		appendVal("notes", ls.Notes)
	}

	query := fmt.Sprintf(`UPDATE livestock SET %s WHERE livestock_id = $1`, strings.Join(updates, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to update livestock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteLivestock 软删除
func (r *PostgresLivestockRepository) DeleteLivestock(ctx context.Context, livestockID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE livestock SET is_active = FALSE, updated_at = NOW() WHERE livestock_id = $1`,
		livestockID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate livestock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByFarm 某农场活跃牲畜数
func (r *PostgresLivestockRepository) CountByFarm(ctx context.Context, farmID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM livestock WHERE farm_id = $1 AND is_active = TRUE`,
		farmID).Scan(&count)
	return count, err
}
