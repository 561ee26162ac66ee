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

// UserView 对外用户视图（不含密码哈希）
type UserView struct {
	UserID             string    `json:"user_id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	FullName           string    `json:"full_name"`
	Phone              string    `json:"phone,omitempty"`
	Role               string    `json:"role"`
	AssignedFarmID     string    `json:"assigned_farm_id,omitempty"`
	SupervisedFarmIDs  []string  `json:"supervised_farm_ids,omitempty"`
	IsActive           bool      `json:"is_active"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
}

// newUserView 构造用户视图
func newUserView(u *domain.User) *UserView {
	v := &UserView{
		UserID:             u.UserID,
		Username:           u.Username,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		FullName:           u.FullName(),
		Role:               string(u.Role),
		IsActive:           u.IsActive,
		MustChangePassword: u.MustChangePassword,
		CreatedAt:          u.CreatedAt,
	}
	if u.Phone.Valid {
		v.Phone = u.Phone.String
	}
	if u.AssignedFarmID.Valid {
		v.AssignedFarmID = u.AssignedFarmID.String
	}
	return v
}

// newUserViews 批量构造用户视图
func newUserViews(users []*domain.User) []*UserView {
	views := make([]*UserView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	return views
}

// UserService 用户管理
type UserService struct {
	users       repository.UsersRepository
	assignments repository.AssignmentsRepository
	resolver    *ActorResolver
	mail        *MailClient
	logger      *zap.Logger
}

// NewUserService 创建用户服务
func NewUserService(
	users repository.UsersRepository,
	assignments repository.AssignmentsRepository,
	resolver *ActorResolver,
	mail *MailClient,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:       users,
		assignments: assignments,
		resolver:    resolver,
		mail:        mail,
		logger:      logger,
	}
}

// ListUsersRequest 用户列表请求
type ListUsersRequest struct {
	Role   string `json:"role"`
	Search string `json:"search"`
}

// ListUsersResponse 用户列表响应
type ListUsersResponse struct {
	Users []*UserView `json:"users"`
	Total int         `json:"total"`
}

// ListUsers 按调用者角色裁剪可见用户范围
//
// 可见性规则：
//   - SYSTEM_ADMIN：全部用户
//   - FARM_OWNER：名下农场的主管和工人
//   - SUPERVISOR：所辖农场的工人
//   - WORKER：仅自己
func (s *UserService) ListUsers(ctx context.Context, actorID string, req *ListUsersRequest) (*ListUsersResponse, error) {
	self, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	filters := repository.UserFilters{
		Search: req.Search,
	}
	if req.Role != "" {
		role := domain.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
		if !role.Valid() {
			return nil, domain.ErrInvalidRole
		}
		filters.Role = role
	}

	switch actor.Role {
	case domain.RoleSystemAdmin:
		// 不加范围限制
	case domain.RoleFarmOwner:
		if len(actor.OwnedFarmIDs) == 0 {
			return &ListUsersResponse{Users: []*UserView{}}, nil
		}
		filters.FarmIDs = actor.OwnedFarmIDs
		filters.Roles = []domain.Role{domain.RoleSupervisor, domain.RoleWorker}
	case domain.RoleSupervisor:
		if actor.AssignedFarmID == "" {
			return &ListUsersResponse{Users: []*UserView{}}, nil
		}
		filters.FarmIDs = []string{actor.AssignedFarmID}
		filters.Roles = []domain.Role{domain.RoleWorker}
	default:
		return &ListUsersResponse{Users: []*UserView{newUserView(self)}, Total: 1}, nil
	}

	users, err := s.users.ListUsers(ctx, filters)
	if err != nil {
		return nil, err
	}
	views := newUserViews(users)
	if err := s.hydrateSupervisedFarms(ctx, users, views); err != nil {
		return nil, err
	}
	return &ListUsersResponse{Users: views, Total: len(views)}, nil
}

// hydrateSupervisedFarms 给结果里的主管补上负责农场列表，
// 免得调用方为每个主管再查一次指派接口
func (s *UserService) hydrateSupervisedFarms(ctx context.Context, users []*domain.User, views []*UserView) error {
	for i, u := range users {
		if u.Role != domain.RoleSupervisor {
			continue
		}
		farmIDs, err := s.assignments.ListFarmIDsBySupervisor(ctx, u.UserID)
		if err != nil {
			return fmt.Errorf("failed to load supervised farms for %s: %w", u.UserID, err)
		}
		views[i].SupervisedFarmIDs = farmIDs
	}
	return nil
}

// GetUser 查看单个用户，按角色层级授权
func (s *UserService) GetUser(ctx context.Context, actorID, targetID string) (*UserView, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.users.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	targetActor, err := s.resolver.ActorFor(ctx, target)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewUser(actor, targetActor) {
		return nil, domain.ErrPermissionDenied
	}
	view := newUserView(target)
	view.SupervisedFarmIDs = targetActor.SupervisedFarmIDs
	return view, nil
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	FarmID    string `json:"farm_id"`
}

// CreateUserResponse 创建用户响应
type CreateUserResponse struct {
	User     *UserView `json:"user"`
	Username string    `json:"username"`
}

// CreateUser 由上级创建下级账号，生成初始凭据并邮件下发
//
// 角色创建规则：
//   - SYSTEM_ADMIN 可创建任意角色
//   - FARM_OWNER 可创建 SUPERVISOR / WORKER
//   - SUPERVISOR 可创建 WORKER
func (s *UserService) CreateUser(ctx context.Context, actorID string, req *CreateUserRequest) (*CreateUserResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	role := domain.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	if !policy.CanCreateRole(actor.Role, role) {
		return nil, domain.ErrPermissionDenied
	}
	if req.Email == "" || req.FirstName == "" || req.LastName == "" {
		return nil, domain.Validation("email, first name and last name are required")
	}

	// WORKER 必须落在创建者可管理的农场上
	var assignedFarmID *string
	if role == domain.RoleWorker {
		farmID := req.FarmID
		if farmID == "" && actor.Role == domain.RoleSupervisor {
			farmID = actor.AssignedFarmID
		}
		if farmID == "" {
			return nil, domain.Validation("farm_id is required for worker accounts")
		}
		if actor.Role != domain.RoleSystemAdmin && !containsString(managedFarmIDs(actor), farmID) {
			return nil, domain.ErrPermissionDenied
		}
		assignedFarmID = &farmID
	}

	password, err := generatePassword()
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	hash, err := domain.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:           generateUsername(req.FirstName, req.LastName),
		Email:              strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:       hash,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Role:               role,
		IsActive:           true,
		MustChangePassword: true,
	}
	if req.Phone != "" {
		user.Phone.String, user.Phone.Valid = req.Phone, true
	}
	if assignedFarmID != nil {
		user.AssignedFarmID.String, user.AssignedFarmID.Valid = *assignedFarmID, true
	}

	userID, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Validation("a user with this email or username already exists")
		}
		return nil, err
	}
	created, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.String("user_id", created.UserID),
		zap.String("role", string(created.Role)),
		zap.String("created_by", actorID),
	)
	s.mail.SendCredentials(created.Email, created.FullName(), created.Username, password)

	return &CreateUserResponse{User: newUserView(created), Username: created.Username}, nil
}

// UpdateUserRequest 更新用户请求
type UpdateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// UpdateUser 更新用户资料（本人或有权查看该用户的上级）
func (s *UserService) UpdateUser(ctx context.Context, actorID, targetID string, req *UpdateUserRequest) (*UserView, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.users.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if actorID != targetID {
		targetActor, err := s.resolver.ActorFor(ctx, target)
		if err != nil {
			return nil, err
		}
		if !policy.CanViewUser(actor, targetActor) {
			return nil, domain.ErrPermissionDenied
		}
	}

	patch := &domain.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
	}
	if req.Phone != "" {
		patch.Phone.String, patch.Phone.Valid = req.Phone, true
	}
	if err := s.users.UpdateUser(ctx, targetID, patch); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Validation("a user with this email already exists")
		}
		return nil, err
	}
	updated, err := s.users.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return newUserView(updated), nil
}

// SetUserActive 启用 / 停用账号（不可操作自己）
func (s *UserService) SetUserActive(ctx context.Context, actorID, targetID string, active bool) error {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return err
	}
	if actorID == targetID {
		return domain.Validation("cannot change your own active status")
	}
	target, err := s.users.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	targetActor, err := s.resolver.ActorFor(ctx, target)
	if err != nil {
		return err
	}
	if !policy.CanViewUser(actor, targetActor) {
		return domain.ErrPermissionDenied
	}
	if actor.Role != domain.RoleSystemAdmin && target.Role.Level() >= actor.Role.Level() {
		return domain.ErrPermissionDenied
	}
	if err := s.users.SetActive(ctx, targetID, active); err != nil {
		return err
	}
	s.logger.Info("User active status changed",
		zap.String("user_id", targetID),
		zap.Bool("active", active),
		zap.String("changed_by", actorID),
	)
	return nil
}

// DeactivateUser 停用账号（软删除）
func (s *UserService) DeactivateUser(ctx context.Context, actorID, targetID string) error {
	return s.SetUserActive(ctx, actorID, targetID, false)
}

// managedFarmIDs 调用者可安置下级的农场集合：
// owner 为自有农场，主管仅归属农场
func managedFarmIDs(actor policy.Actor) []string {
	switch actor.Role {
	case domain.RoleFarmOwner:
		return actor.OwnedFarmIDs
	case domain.RoleSupervisor:
		if actor.AssignedFarmID != "" {
			return []string{actor.AssignedFarmID}
		}
		return nil
	default:
		return nil
	}
}

// containsString 切片包含判断
func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
