package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"smartfarm-backend/internal/domain"
)

// PostgresApplicationsRepository 入驻申请 Repository 实现
type PostgresApplicationsRepository struct {
	db *sql.DB
}

// NewPostgresApplicationsRepository 创建入驻申请 Repository
func NewPostgresApplicationsRepository(db *sql.DB) *PostgresApplicationsRepository {
	return &PostgresApplicationsRepository{db: db}
}

var _ ApplicationsRepository = (*PostgresApplicationsRepository)(nil)

const applicationColumns = `
	application_id::text,
	first_name,
	last_name,
	email,
	phone,
	farm_name,
	farm_location,
	farm_size,
	farm_type,
	expected_users,
	comments,
	status,
	reviewed_at,
	review_notes,
	reviewed_by_id::text,
	created_user_id::text,
	created_at,
	updated_at
`

func scanApplication(row rowScanner) (*domain.FarmOwnerApplication, error) {
	var app domain.FarmOwnerApplication
	err := row.Scan(
		&app.ApplicationID,
		&app.FirstName,
		&app.LastName,
		&app.Email,
		&app.Phone,
		&app.FarmName,
		&app.FarmLocation,
		&app.FarmSize,
		&app.FarmType,
		&app.ExpectedUsers,
		&app.Comments,
		&app.Status,
		&app.ReviewedAt,
		&app.ReviewNotes,
		&app.ReviewedByID,
		&app.CreatedUserID,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// GetApplication 获取申请
func (r *PostgresApplicationsRepository) GetApplication(ctx context.Context, applicationID string) (*domain.FarmOwnerApplication, error) {
	if applicationID == "" {
		return nil, domain.ErrNotFound
	}
	app, err := scanApplication(r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM farm_owner_applications WHERE application_id = $1`,
		applicationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return app, err
}

// ListApplications 列出申请；status 为空则全量
func (r *PostgresApplicationsRepository) ListApplications(ctx context.Context, status domain.ApplicationStatus) ([]*domain.FarmOwnerApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM farm_owner_applications`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := []*domain.FarmOwnerApplication{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// CreateApplication 写入申请
func (r *PostgresApplicationsRepository) CreateApplication(ctx context.Context, app *domain.FarmOwnerApplication) (string, error) {
	if app == nil {
		return "", fmt.Errorf("application is required")
	}
	if app.FirstName == "" || app.LastName == "" || app.Email == "" {
		return "", fmt.Errorf("first_name, last_name and email are required")
	}
	if app.FarmName == "" || app.FarmLocation == "" {
		return "", fmt.Errorf("farm_name and farm_location are required")
	}

	var applicationID string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO farm_owner_applications (
			first_name, last_name, email, phone,
			farm_name, farm_location, farm_size, farm_type,
			expected_users, comments, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'PENDING')
		RETURNING application_id::text
	`,
		app.FirstName,
		app.LastName,
		app.Email,
		toAnyString(app.Phone),
		app.FarmName,
		app.FarmLocation,
		toAnyFloat(app.FarmSize),
		toAnyString(app.FarmType),
		toAnyInt(app.ExpectedUsers),
		toAnyString(app.Comments),
	).Scan(&applicationID)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrDuplicate
		}
		return "", fmt.Errorf("failed to insert application: %w", err)
	}
	return applicationID, nil
}

// UpdateReview 回写审批结果
func (r *PostgresApplicationsRepository) UpdateReview(ctx context.Context, applicationID string, app *domain.FarmOwnerApplication) error {
	if applicationID == "" {
		return fmt.Errorf("application_id is required")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE farm_owner_applications
		SET status = $2,
		    reviewed_at = $3,
		    review_notes = $4,
		    reviewed_by_id = $5,
		    created_user_id = $6,
		    updated_at = NOW()
		WHERE application_id = $1
	`,
		applicationID,
		app.Status,
		toAnyTime(app.ReviewedAt),
		toAnyString(app.ReviewNotes),
		toAnyString(app.ReviewedByID),
		toAnyString(app.CreatedUserID),
	)
	if err != nil {
		return fmt.Errorf("failed to update application review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExistsByEmail 邮箱是否已提交过申请
func (r *PostgresApplicationsRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM farm_owner_applications WHERE lower(email) = lower($1)`,
		email).Scan(&count)
	return count > 0, err
}

// CountByStatus 按状态统计
func (r *PostgresApplicationsRepository) CountByStatus(ctx context.Context, status domain.ApplicationStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM farm_owner_applications WHERE status = $1`, status).Scan(&count)
	return count, err
}

// toAnyInt sql.NullInt64 → 驱动参数
func toAnyInt(ni sql.NullInt64) any {
	if ni.Valid {
		return ni.Int64
	}
	return nil
}
