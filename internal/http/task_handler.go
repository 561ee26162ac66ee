package httpapi

import (
	"net/http"
	"strings"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// TaskHandler 任务接口
// - GET    /api/tasks              列表（?status= 过滤）
// - POST   /api/tasks              创建（仅主管→本农场工人）
// - GET    /api/tasks/today        今日到期任务
// - GET    /api/tasks/stats        状态统计
// - GET    /api/tasks/{id}         详情
// - PUT    /api/tasks/{id}/status  状态流转
// - DELETE /api/tasks/{id}         删除
type TaskHandler struct {
	taskService *service.TaskService
	logger      *zap.Logger
}

func NewTaskHandler(taskService *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, logger: logger}
}

func (h *TaskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID := UserIDFromContext(r.Context())
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tasks"), "/")

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

	if r.Method == http.MethodGet {
		switch path {
		case "today":
			h.today(w, r, actorID)
			return
		case "stats":
			h.stats(w, r, actorID)
			return
		}
	}

	parts := strings.Split(path, "/")
	taskID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.get(w, r, actorID, taskID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.del(w, r, actorID, taskID)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPut:
		h.updateStatus(w, r, actorID, taskID)
	default:
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	}
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request, actorID string) {
	req := service.ListTasksRequest{Status: r.URL.Query().Get("status")}
	resp, err := h.taskService.ListTasks(r.Context(), actorID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *TaskHandler) today(w http.ResponseWriter, r *http.Request, actorID string) {
	resp, err := h.taskService.TodayTasks(r.Context(), actorID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *TaskHandler) stats(w http.ResponseWriter, r *http.Request, actorID string) {
	resp, err := h.taskService.TaskStats(r.Context(), actorID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *TaskHandler) create(w http.ResponseWriter, r *http.Request, actorID string) {
	var req service.CreateTaskRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	resp, err := h.taskService.CreateTask(r.Context(), actorID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *TaskHandler) get(w http.ResponseWriter, r *http.Request, actorID, taskID string) {
	resp, err := h.taskService.GetTask(r.Context(), actorID, taskID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *TaskHandler) updateStatus(w http.ResponseWriter, r *http.Request, actorID, taskID string) {
	var req service.UpdateTaskStatusRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	resp, err := h.taskService.UpdateTaskStatus(r.Context(), actorID, taskID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *TaskHandler) del(w http.ResponseWriter, r *http.Request, actorID, taskID string) {
	if err := h.taskService.DeleteTask(r.Context(), actorID, taskID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}
