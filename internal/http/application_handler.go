package httpapi

import (
	"net/http"
	"strings"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// ApplicationHandler 农场主入驻申请
// - POST /api/applications               提交（公开接口）
// - GET  /api/applications               列表（仅管理员，?status=）
// - POST /api/applications/{id}/approve  批准：建账号建农场并邮件下发
// - POST /api/applications/{id}/reject   驳回
type ApplicationHandler struct {
	applicationService *service.ApplicationService
	logger             *zap.Logger
}

func NewApplicationHandler(applicationService *service.ApplicationService, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{applicationService: applicationService, logger: logger}
}

type reviewApplicationRequest struct {
	Notes string `json:"notes"`
}

// Submit 公开提交入口，不经过认证中间件
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		return
	}
	var req service.SubmitApplicationRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	resp, err := h.applicationService.SubmitApplication(r.Context(), &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *ApplicationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID := UserIDFromContext(r.Context())
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/applications"), "/")

	if path == "" {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
			return
		}
		resp, err := h.applicationService.ListApplications(r.Context(), actorID, r.URL.Query().Get("status"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
		return
	}

	parts := strings.Split(path, "/")
	if len(parts) != 2 || r.Method != http.MethodPost {
		writeJSON(w, http.StatusNotFound, Fail("not found"))
		return
	}
	applicationID := parts[0]

	var req reviewApplicationRequest
	if r.ContentLength > 0 {
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
	}

	switch parts[1] {
	case "approve":
		resp, err := h.applicationService.ApproveApplication(r.Context(), actorID, applicationID, req.Notes)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	case "reject":
		resp, err := h.applicationService.RejectApplication(r.Context(), actorID, applicationID, req.Notes)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	default:
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	}
}
