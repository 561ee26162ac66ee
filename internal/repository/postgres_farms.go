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

// PostgresFarmsRepository 农场 Repository 实现
type PostgresFarmsRepository struct {
	db *sql.DB
}

// NewPostgresFarmsRepository 创建农场 Repository
func NewPostgresFarmsRepository(db *sql.DB) *PostgresFarmsRepository {
	return &PostgresFarmsRepository{db: db}
}

var _ FarmsRepository = (*PostgresFarmsRepository)(nil)

const farmColumns = `
	farm_id::text,
	name,
	description,
	location,
	size,
	size_unit,
	owner_id::text,
	created_at,
	updated_at
`

func scanFarm(row rowScanner) (*domain.Farm, error) {
	var farm domain.Farm
	var description, ownerID sql.NullString
	err := row.Scan(
		&farm.FarmID,
		&farm.Name,
		&description,
		&farm.Location,
		&farm.Size,
		&farm.SizeUnit,
		&ownerID,
		&farm.CreatedAt,
		&farm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	farm.Description = description
	farm.OwnerID = ownerID
	return &farm, nil
}

// GetFarm 获取农场
func (r *PostgresFarmsRepository) GetFarm(ctx context.Context, farmID string) (*domain.Farm, error) {
	if farmID == "" {
		return nil, domain.ErrNotFound
	}
	farm, err := scanFarm(r.db.QueryRowContext(ctx,
		`SELECT `+farmColumns+` FROM farms WHERE farm_id = $1`, farmID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return farm, err
}

// ListFarms 全量农场（管理员视角）
func (r *PostgresFarmsRepository) ListFarms(ctx context.Context) ([]*domain.Farm, error) {
	return r.queryFarms(ctx, `SELECT `+farmColumns+` FROM farms ORDER BY name ASC`)
}

// ListFarmsByOwner 某 owner 的 ownedFarms（查询派生，不存冗余）
func (r *PostgresFarmsRepository) ListFarmsByOwner(ctx context.Context, ownerID string) ([]*domain.Farm, error) {
	if ownerID == "" {
		return []*domain.Farm{}, nil
	}
	return r.queryFarms(ctx,
		`SELECT `+farmColumns+` FROM farms WHERE owner_id = $1 ORDER BY name ASC`, ownerID)
}

// ListFarmsByIDs 按 ID 集合取农场（主管/工人可见范围）
func (r *PostgresFarmsRepository) ListFarmsByIDs(ctx context.Context, farmIDs []string) ([]*domain.Farm, error) {
	if len(farmIDs) == 0 {
		return []*domain.Farm{}, nil
	}
	return r.queryFarms(ctx,
		`SELECT `+farmColumns+` FROM farms WHERE farm_id = ANY($1::uuid[]) ORDER BY name ASC`,
		pq.Array(farmIDs))
}

func (r *PostgresFarmsRepository) queryFarms(ctx context.Context, query string, args ...any) ([]*domain.Farm, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	farms := []*domain.Farm{}
	for rows.Next() {
		farm, err := scanFarm(rows)
		if err != nil {
			return nil, err
		}
		farms = append(farms, farm)
	}
	return farms, rows.Err()
}

// CreateFarm 创建农场
func (r *PostgresFarmsRepository) CreateFarm(ctx context.Context, farm *domain.Farm) (string, error) {
	if farm == nil {
		return "", fmt.Errorf("farm is required")
	}
	if farm.Name == "" {
		return "", fmt.Errorf("name is required")
	}
	if farm.Location == "" {
		return "", fmt.Errorf("location is required")
	}

	sizeUnit := farm.SizeUnit
	if sizeUnit == "" {
		sizeUnit = "hectares" // DB 默认值
	}

	var farmID string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO farms (name, description, location, size, size_unit, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING farm_id::text
	`,
		farm.Name,
		toAnyString(farm.Description),
		farm.Location,
		farm.Size,
		sizeUnit,
		toAnyString(farm.OwnerID),
	).Scan(&farmID)
	if err != nil {
		return "", fmt.Errorf("failed to insert farm: %w", err)
	}
	return farmID, nil
}

// UpdateFarm 更新农场（零值字段不更新）
func (r *PostgresFarmsRepository) UpdateFarm(ctx context.Context, farmID string, farm *domain.Farm) error {
	if farmID == "" {
		return fmt.Errorf("farm_id is required")
	}
	if farm == nil {
		return fmt.Errorf("farm is required")
	}

	updates := []string{"updated_at = NOW()"}
	args := []any{farmID}
	argIdx := 2

	if farm.Name != "" {
		updates = append(updates, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, farm.Name)
		argIdx++
	}
	if farm.Description.Valid {
		updates = append(updates, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, farm.Description)
		argIdx++
	}
	if farm.Location != "" {
		updates = append(updates, fmt.Sprintf("location = $%d", argIdx))
		args = append(args, farm.Location)
		argIdx++
	}
	if farm.Size > 0 {
		updates = append(updates, fmt.Sprintf("size = $%d", argIdx))
		args = append(args, farm.Size)
		argIdx++
	}
	if farm.SizeUnit != "" {
		updates = append(updates, fmt.Sprintf("size_unit = $%d", argIdx))
		args = append(args, farm.SizeUnit)
		argIdx++
	}
	if farm.OwnerID.Valid {
		updates = append(updates, fmt.Sprintf("owner_id = $%d", argIdx))
		args = append(args, farm.OwnerID)
		argIdx++
	}

	query := fmt.Sprintf(`UPDATE farms SET %s WHERE farm_id = $1`, strings.Join(updates, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update farm: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteFarm 删除农场（分配记录随外键级联删除）
func (r *PostgresFarmsRepository) DeleteFarm(ctx context.Context, farmID string) error {
	if farmID == "" {
		return fmt.Errorf("farm_id is required")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM farms WHERE farm_id = $1`, farmID)
	if err != nil {
		return fmt.Errorf("failed to delete farm: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountFarms 农场总数
func (r *PostgresFarmsRepository) CountFarms(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM farms`).Scan(&count)
	return count, err
}
