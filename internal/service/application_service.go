package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/repository"

	"go.uber.org/zap"
)

// ApplicationView 对外申请视图
type ApplicationView struct {
	ApplicationID string  `json:"application_id"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone,omitempty"`
	FarmName      string  `json:"farm_name"`
	FarmLocation  string  `json:"farm_location"`
	FarmSize      float64 `json:"farm_size,omitempty"`
	FarmType      string  `json:"farm_type,omitempty"`
	ExpectedUsers int     `json:"expected_users,omitempty"`
	Comments      string  `json:"comments,omitempty"`
	Status        string  `json:"status"`
	ReviewedAt    string  `json:"reviewed_at,omitempty"`
	ReviewNotes   string  `json:"review_notes,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// newApplicationView 构造申请视图
func newApplicationView(a *domain.FarmOwnerApplication) *ApplicationView {
	v := &ApplicationView{
		ApplicationID: a.ApplicationID,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Email:         a.Email,
		FarmName:      a.FarmName,
		FarmLocation:  a.FarmLocation,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
	if a.Phone.Valid {
		v.Phone = a.Phone.String
	}
	if a.FarmSize.Valid {
		v.FarmSize = a.FarmSize.Float64
	}
	if a.FarmType.Valid {
		v.FarmType = a.FarmType.String
	}
	if a.ExpectedUsers.Valid {
		v.ExpectedUsers = int(a.ExpectedUsers.Int64)
	}
	if a.Comments.Valid {
		v.Comments = a.Comments.String
	}
	if a.ReviewedAt.Valid {
		v.ReviewedAt = a.ReviewedAt.Time.Format(time.RFC3339)
	}
	if a.ReviewNotes.Valid {
		v.ReviewNotes = a.ReviewNotes.String
	}
	return v
}

// ApplicationService 农场主入驻申请与审批
type ApplicationService struct {
	applications repository.ApplicationsRepository
	users        repository.UsersRepository
	farms        repository.FarmsRepository
	mail         *MailClient
	notify       *NotificationService
	logger       *zap.Logger
}

// NewApplicationService 创建申请服务
func NewApplicationService(
	applications repository.ApplicationsRepository,
	users repository.UsersRepository,
	farms repository.FarmsRepository,
	mail *MailClient,
	notify *NotificationService,
	logger *zap.Logger,
) *ApplicationService {
	return &ApplicationService{
		applications: applications,
		users:        users,
		farms:        farms,
		mail:         mail,
		notify:       notify,
		logger:       logger,
	}
}

// SubmitApplicationRequest 提交申请请求（公开接口，无需登录）
type SubmitApplicationRequest struct {
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	FarmName      string  `json:"farm_name"`
	FarmLocation  string  `json:"farm_location"`
	FarmSize      float64 `json:"farm_size"`
	FarmType      string  `json:"farm_type"`
	ExpectedUsers int     `json:"expected_users"`
	Comments      string  `json:"comments"`
}

// SubmitApplication 提交入驻申请：重复邮箱（已申请或已注册）拒绝
func (s *ApplicationService) SubmitApplication(ctx context.Context, req *SubmitApplicationRequest) (*ApplicationView, error) {
	if req.FirstName == "" || req.LastName == "" || req.Email == "" {
		return nil, domain.Validation("first name, last name and email are required")
	}
	if req.FarmName == "" || req.FarmLocation == "" {
		return nil, domain.Validation("farm name and location are required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.applications.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.Validation("an application with this email already exists")
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, domain.Validation("a user with this email already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	app := &domain.FarmOwnerApplication{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        email,
		FarmName:     req.FarmName,
		FarmLocation: req.FarmLocation,
		Status:       domain.ApplicationPending,
	}
	if req.Phone != "" {
		app.Phone.String, app.Phone.Valid = req.Phone, true
	}
	if req.FarmSize > 0 {
		app.FarmSize.Float64, app.FarmSize.Valid = req.FarmSize, true
	}
	if req.FarmType != "" {
		app.FarmType.String, app.FarmType.Valid = req.FarmType, true
	}
	if req.ExpectedUsers > 0 {
		app.ExpectedUsers.Int64, app.ExpectedUsers.Valid = int64(req.ExpectedUsers), true
	}
	if req.Comments != "" {
		app.Comments.String, app.Comments.Valid = req.Comments, true
	}

	applicationID, err := s.applications.CreateApplication(ctx, app)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Validation("an application with this email already exists")
		}
		return nil, err
	}
	created, err := s.applications.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Farm owner application submitted",
		zap.String("application_id", applicationID),
		zap.String("farm_name", req.FarmName),
	)
	applicantName := req.FirstName + " " + req.LastName
	s.mail.SendApplicationConfirmation(email, applicantName, req.FarmName)
	s.notifyAdmins(ctx, applicationID, applicantName, req.FarmName)

	return newApplicationView(created), nil
}

// notifyAdmins 新申请提醒所有在任管理员（邮件 + 站内通知）
func (s *ApplicationService) notifyAdmins(ctx context.Context, applicationID, applicantName, farmName string) {
	admins, err := s.users.ListUsers(ctx, repository.UserFilters{
		Role: domain.RoleSystemAdmin, ActiveOnly: true,
	})
	if err != nil {
		s.logger.Warn("Failed to list admins for application notice", zap.Error(err))
		return
	}
	for _, admin := range admins {
		s.mail.SendNewApplicationNotice(admin.Email, applicantName, farmName)
		s.notify.Push(ctx, admin.UserID, &Notification{
			Type:  "application",
			Title: "New farm owner application",
			Body:  fmt.Sprintf("%s applied to register %s", applicantName, farmName),
			RefID: applicationID,
		})
	}
}

// ListApplicationsResponse 申请列表响应
type ListApplicationsResponse struct {
	Applications []*ApplicationView `json:"applications"`
	Total        int                `json:"total"`
}

// ListApplications 管理员按状态查申请
func (s *ApplicationService) ListApplications(ctx context.Context, actorID, status string) (*ListApplicationsResponse, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	var filter domain.ApplicationStatus
	if status != "" {
		filter = domain.ApplicationStatus(strings.ToUpper(status))
		switch filter {
		case domain.ApplicationPending, domain.ApplicationApproved, domain.ApplicationRejected:
		default:
			return nil, domain.Validation(fmt.Sprintf("unknown application status: %s", status))
		}
	}

	apps, err := s.applications.ListApplications(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]*ApplicationView, 0, len(apps))
	for _, a := range apps {
		views = append(views, newApplicationView(a))
	}
	return &ListApplicationsResponse{Applications: views, Total: len(views)}, nil
}

// requireAdmin 申请审批仅 SYSTEM_ADMIN
func (s *ApplicationService) requireAdmin(ctx context.Context, actorID string) error {
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Role != domain.RoleSystemAdmin {
		return domain.ErrPermissionDenied
	}
	return nil
}

// ApproveApplicationResponse 审批通过响应
type ApproveApplicationResponse struct {
	Application *ApplicationView `json:"application"`
	Username    string           `json:"username"`
	FarmID      string           `json:"farm_id"`
}

// ApproveApplication 审批通过：
// 生成 FARM_OWNER 账号（首登改密）+ 挂 owner 的农场，凭据邮件下发
func (s *ApplicationService) ApproveApplication(ctx context.Context, actorID, applicationID, notes string) (*ApproveApplicationResponse, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	app, err := s.applications.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != domain.ApplicationPending {
		return nil, fmt.Errorf("%w: application already reviewed", domain.ErrPreconditionFailed)
	}

	password, err := generatePassword()
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	hash, err := domain.HashPassword(password)
	if err != nil {
		return nil, err
	}

	owner := &domain.User{
		Username:           generateUsername(app.FirstName, app.LastName),
		Email:              app.Email,
		PasswordHash:       hash,
		FirstName:          app.FirstName,
		LastName:           app.LastName,
		Phone:              app.Phone,
		Role:               domain.RoleFarmOwner,
		IsActive:           true,
		MustChangePassword: true,
	}
	ownerID, err := s.users.CreateUser(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Validation("a user with this email or username already exists")
		}
		return nil, err
	}

	farm := &domain.Farm{
		Name:     app.FarmName,
		Location: app.FarmLocation,
		Size:     1,
	}
	if app.FarmSize.Valid {
		farm.Size = app.FarmSize.Float64
	}
	if app.FarmType.Valid {
		farm.Description.String = "Farm type: " + app.FarmType.String
		farm.Description.Valid = true
	}
	farm.OwnerID.String, farm.OwnerID.Valid = ownerID, true
	farmID, err := s.farms.CreateFarm(ctx, farm)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	review := &domain.FarmOwnerApplication{Status: domain.ApplicationApproved}
	review.ReviewedAt.Time, review.ReviewedAt.Valid = now, true
	review.ReviewedByID.String, review.ReviewedByID.Valid = actorID, true
	review.CreatedUserID.String, review.CreatedUserID.Valid = ownerID, true
	if notes != "" {
		review.ReviewNotes.String, review.ReviewNotes.Valid = notes, true
	}
	if err := s.applications.UpdateReview(ctx, applicationID, review); err != nil {
		return nil, err
	}

	s.logger.Info("Application approved",
		zap.String("application_id", applicationID),
		zap.String("owner_id", ownerID),
		zap.String("farm_id", farmID),
		zap.String("approved_by", actorID),
	)
	applicantName := app.FirstName + " " + app.LastName
	s.mail.SendApplicationApproval(app.Email, applicantName, owner.Username, password)
	s.notify.Push(ctx, ownerID, &Notification{
		Type:  "application",
		Title: "Application approved",
		Body:  fmt.Sprintf("Your farm %s is now registered on SmartFarm360", app.FarmName),
		RefID: applicationID,
	})

	updated, err := s.applications.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return &ApproveApplicationResponse{
		Application: newApplicationView(updated),
		Username:    owner.Username,
		FarmID:      farmID,
	}, nil
}

// RejectApplication 审批驳回（仅 PENDING 可驳回）
func (s *ApplicationService) RejectApplication(ctx context.Context, actorID, applicationID, notes string) (*ApplicationView, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	app, err := s.applications.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != domain.ApplicationPending {
		return nil, fmt.Errorf("%w: application already reviewed", domain.ErrPreconditionFailed)
	}

	now := time.Now()
	review := &domain.FarmOwnerApplication{Status: domain.ApplicationRejected}
	review.ReviewedAt.Time, review.ReviewedAt.Valid = now, true
	review.ReviewedByID.String, review.ReviewedByID.Valid = actorID, true
	if notes != "" {
		review.ReviewNotes.String, review.ReviewNotes.Valid = notes, true
	}
	if err := s.applications.UpdateReview(ctx, applicationID, review); err != nil {
		return nil, err
	}

	s.logger.Info("Application rejected",
		zap.String("application_id", applicationID),
		zap.String("rejected_by", actorID),
	)
	s.mail.SendApplicationRejection(app.Email, app.FirstName+" "+app.LastName, notes)

	updated, err := s.applications.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return newApplicationView(updated), nil
}
