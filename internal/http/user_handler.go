package httpapi

import (
	"net/http"
	"strings"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// UserHandler 用户管理接口
// - GET    /api/users            列表（按角色可见范围）
// - POST   /api/users            创建（自动生成账号并邮件下发）
// - GET    /api/users/{id}       详情
// - PUT    /api/users/{id}       更新
// - DELETE /api/users/{id}       停用
// - POST   /api/users/{id}/activate    启用
// - POST   /api/users/{id}/deactivate  停用
type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

func (h *UserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID := UserIDFromContext(r.Context())
	path := strings.TrimPrefix(r.URL.Path, "/api/users")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r, actorID)
		case http.MethodPost:
			h.create(w, r, actorID)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		}
		return
	}

	parts := strings.Split(path, "/")
	userID := parts[0]

	if len(parts) == 2 && r.Method == http.MethodPost {
		switch parts[1] {
		case "activate":
			h.setActive(w, r, actorID, userID, true)
		case "deactivate":
			h.setActive(w, r, actorID, userID, false)
		default:
			writeJSON(w, http.StatusNotFound, Fail("not found"))
		}
		return
	}

	if len(parts) != 1 {
		writeJSON(w, http.StatusNotFound, Fail("not found"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, actorID, userID)
	case http.MethodPut:
		h.update(w, r, actorID, userID)
	case http.MethodDelete:
		h.setActive(w, r, actorID, userID, false)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
	}
}

func (h *UserHandler) list(w http.ResponseWriter, r *http.Request, actorID string) {
	req := service.ListUsersRequest{
		Role:   r.URL.Query().Get("role"),
		Search: r.URL.Query().Get("search"),
	}
	resp, err := h.userService.ListUsers(r.Context(), actorID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *UserHandler) create(w http.ResponseWriter, r *http.Request, actorID string) {
	var req service.CreateUserRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	resp, err := h.userService.CreateUser(r.Context(), actorID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *UserHandler) get(w http.ResponseWriter, r *http.Request, actorID, userID string) {
	resp, err := h.userService.GetUser(r.Context(), actorID, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *UserHandler) update(w http.ResponseWriter, r *http.Request, actorID, userID string) {
	var req service.UpdateUserRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	resp, err := h.userService.UpdateUser(r.Context(), actorID, userID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *UserHandler) setActive(w http.ResponseWriter, r *http.Request, actorID, userID string, active bool) {
	if err := h.userService.SetUserActive(r.Context(), actorID, userID, active); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}
