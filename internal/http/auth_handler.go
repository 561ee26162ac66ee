package httpapi

import (
	"net/http"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// AuthHandler 登录 / 当前用户 / 改密
type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

// NewAuthHandler 创建认证 Handler
func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// Login 登录（公开接口）
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		h.logger.Warn("Login failed", zap.String("username", req.Username), zap.Error(err))
		// 登录失败统一 401，不区分用户不存在与密码错误
		writeJSON(w, http.StatusUnauthorized, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Register 自助注册（公开接口，仅限主管 / 工人角色）
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		return
	}
	var req service.RegisterRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	resp, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Me 当前登录用户
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	resp, err := h.authService.Me(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// ChangePassword 修改当前用户密码
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req service.ChangePasswordRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	if err := h.authService.ChangePassword(r.Context(), UserIDFromContext(r.Context()), &req); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}
