package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// DashboardHandler 仪表盘 / 工人绩效 / 通知
// - GET    /api/dashboard               角色化统计
// - GET    /api/workers/stats           团队绩效（?from=&to=）
// - GET    /api/workers/{id}/stats      单个工人绩效
// - GET    /api/notifications           通知历史（?limit=）
// - DELETE /api/notifications           清空通知
// - POST   /api/notifications/send      发送通知（管理员 / 主管）
// - GET    /api/notifications/config    通知配置（管理员）
// - PUT    /api/notifications/config    更新通知配置（管理员）
type DashboardHandler struct {
	dashboardService   *service.DashboardService
	workerStatsService *service.WorkerStatsService
	notifications      *service.NotificationService
	logger             *zap.Logger
}

func NewDashboardHandler(
	dashboardService *service.DashboardService,
	workerStatsService *service.WorkerStatsService,
	notifications *service.NotificationService,
	logger *zap.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		dashboardService:   dashboardService,
		workerStatsService: workerStatsService,
		notifications:      notifications,
		logger:             logger,
	}
}

func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		return
	}
	resp, err := h.dashboardService.Dashboard(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *DashboardHandler) WorkerStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		return
	}
	actorID := UserIDFromContext(r.Context())
	req := service.WorkerStatsRequest{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/workers"), "/")
	if path == "stats" {
		resp, err := h.workerStatsService.TeamStats(r.Context(), actorID, &req)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
		return
	}

	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "stats" {
		writeJSON(w, http.StatusNotFound, Fail("not found"))
		return
	}
	resp, err := h.workerStatsService.WorkerStats(r.Context(), actorID, parts[0], &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *DashboardHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	actorID := UserIDFromContext(r.Context())
	switch strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/notifications"), "/") {
	case "":
	case "send":
		h.sendNotification(w, r, actorID)
		return
	case "config":
		h.notificationConfig(w, r, actorID)
		return
	default:
		writeJSON(w, http.StatusNotFound, Fail("not found"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, Fail("invalid limit"))
				return
			}
			limit = n
		}
		items, err := h.notifications.History(r.Context(), actorID, limit)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(items))
	case http.MethodDelete:
		if err := h.notifications.Clear(r.Context(), actorID); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok[any](nil))
	default:
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
	}
}

func (h *DashboardHandler) sendNotification(w http.ResponseWriter, r *http.Request, actorID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		return
	}
	var req service.SendNotificationRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if err := h.notifications.Send(r.Context(), actorID, &req); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

func (h *DashboardHandler) notificationConfig(w http.ResponseWriter, r *http.Request, actorID string) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := h.notifications.Config(r.Context(), actorID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(cfg))
	case http.MethodPut:
		raw, err := readBodyRaw(r, 1<<20)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if err := h.notifications.UpdateConfig(r.Context(), actorID, raw); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok[any](nil))
	default:
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
	}
}
