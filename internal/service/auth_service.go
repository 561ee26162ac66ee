package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"smartfarm-backend/internal/config"
	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// AuthClaims JWT 负载
type AuthClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService 登录 / 注册 / 密码管理
type AuthService struct {
	users  repository.UsersRepository
	farms  repository.FarmsRepository
	mail   *MailClient
	cfg    config.JWTConfig
	logger *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(users repository.UsersRepository, farms repository.FarmsRepository, mail *MailClient, cfg config.JWTConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		farms:  farms,
		mail:   mail,
		cfg:    cfg,
		logger: logger,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token              string    `json:"token"`
	ExpiresAt          time.Time `json:"expires_at"`
	MustChangePassword bool      `json:"must_change_password"`
	User               *UserView `json:"user"`
}

// Login 校验用户名密码并签发 JWT
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, domain.Validation("username and password are required")
	}

	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Validation("invalid username or password")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.Validation("account is deactivated")
	}
	if !domain.CheckPassword(user.PasswordHash, req.Password) {
		return nil, domain.Validation("invalid username or password")
	}

	token, expiresAt, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in",
		zap.String("user_id", user.UserID),
		zap.String("role", string(user.Role)),
	)

	return &LoginResponse{
		Token:              token,
		ExpiresAt:          expiresAt,
		MustChangePassword: user.MustChangePassword,
		User:               newUserView(user),
	}, nil
}

// issueToken 签发 HS256 令牌
func (s *AuthService) issueToken(user *domain.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(s.cfg.ExpireHours) * time.Hour)
	claims := &AuthClaims{
		UserID:   user.UserID,
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Subject:   user.UserID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// RegisterRequest 公开注册请求
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	FarmID    string `json:"farm_id"`
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	User *UserView `json:"user"`
}

// Register 公开注册 SUPERVISOR / WORKER 账号。
// FARM_OWNER 走入驻申请审批，SYSTEM_ADMIN 不开放自助注册
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	if req.Username == "" || req.Email == "" || req.FirstName == "" || req.LastName == "" {
		return nil, domain.Validation("username, email, first name and last name are required")
	}
	if len(req.Password) < 8 {
		return nil, domain.Validation("password must be at least 8 characters")
	}

	role := domain.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if role != domain.RoleSupervisor && role != domain.RoleWorker {
		return nil, domain.Validation("role must be SUPERVISOR or WORKER")
	}

	hash, err := domain.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		IsActive:     true,
	}
	if req.Phone != "" {
		user.Phone.String, user.Phone.Valid = req.Phone, true
	}
	if req.FarmID != "" {
		if _, err := s.farms.GetFarm(ctx, req.FarmID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.Validation("farm not found")
			}
			return nil, err
		}
		user.AssignedFarmID.String, user.AssignedFarmID.Valid = req.FarmID, true
	}

	userID, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Validation("username or email is already taken")
		}
		return nil, err
	}
	created, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered",
		zap.String("user_id", userID),
		zap.String("role", string(role)),
	)
	return &RegisterResponse{User: newUserView(created)}, nil
}

// MeResponse 当前用户信息
type MeResponse struct {
	User *UserView `json:"user"`
}

// Me 返回当前登录用户
func (s *AuthService) Me(ctx context.Context, userID string) (*MeResponse, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MeResponse{User: newUserView(user)}, nil
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ChangePassword 修改当前用户密码，并清除首登改密标记
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	if req.NewPassword == "" {
		return domain.Validation("new password is required")
	}
	if len(req.NewPassword) < 8 {
		return domain.Validation("password must be at least 8 characters")
	}
	if req.NewPassword != req.ConfirmPassword {
		return domain.Validation("password confirmation does not match")
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !domain.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return domain.Validation("current password is incorrect")
	}

	hash, err := domain.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash, false); err != nil {
		return err
	}

	s.logger.Info("Password changed", zap.String("user_id", userID))
	s.mail.SendPasswordChangeNotice(user.Email, user.FullName())
	return nil
}
