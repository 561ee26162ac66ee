package repository

import (
	"context"

	"smartfarm-backend/internal/domain"
)

// ApplicationsRepository 农场主入驻申请 Repository 接口
type ApplicationsRepository interface {
	GetApplication(ctx context.Context, applicationID string) (*domain.FarmOwnerApplication, error)
	ListApplications(ctx context.Context, status domain.ApplicationStatus) ([]*domain.FarmOwnerApplication, error)
	CreateApplication(ctx context.Context, app *domain.FarmOwnerApplication) (string, error)
	// UpdateReview 回写审批结果（status/reviewed_at/review_notes/reviewed_by/created_user_id）
	UpdateReview(ctx context.Context, applicationID string, app *domain.FarmOwnerApplication) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CountByStatus(ctx context.Context, status domain.ApplicationStatus) (int, error)
}
