package httpapi

import (
	"net/http"
	"strings"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// FarmHandler 农场 + 主管指派接口
// - GET    /api/farms                              列表
// - POST   /api/farms                              创建
// - GET    /api/farms/{id}                         详情
// - PUT    /api/farms/{id}                         更新
// - DELETE /api/farms/{id}                         删除
// - GET    /api/farms/{id}/supervisors             农场当前主管
// - POST   /api/farms/{id}/supervisors             指派主管（body: supervisor_id）
// - DELETE /api/farms/{id}/supervisors/{supID}     移除主管
type FarmHandler struct {
	farmService       *service.FarmService
	assignmentService *service.AssignmentService
	logger            *zap.Logger
}

func NewFarmHandler(farmService *service.FarmService, assignmentService *service.AssignmentService, logger *zap.Logger) *FarmHandler {
	return &FarmHandler{farmService: farmService, assignmentService: assignmentService, logger: logger}
}

type assignSupervisorRequest struct {
	SupervisorID string `json:"supervisor_id"`
}

func (h *FarmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID := UserIDFromContext(r.Context())
	path := strings.TrimPrefix(r.URL.Path, "/api/farms")
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
	farmID := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, actorID, farmID)
		case http.MethodPut:
			h.update(w, r, actorID, farmID)
		case http.MethodDelete:
			h.del(w, r, actorID, farmID)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		}
	case len(parts) == 2 && parts[1] == "supervisors":
		switch r.Method {
		case http.MethodGet:
			h.supervisors(w, r, actorID, farmID)
		case http.MethodPost:
			h.assign(w, r, actorID, farmID)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		}
	case len(parts) == 3 && parts[1] == "supervisors" && r.Method == http.MethodDelete:
		h.remove(w, r, actorID, farmID, parts[2])
	default:
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	}
}

func (h *FarmHandler) list(w http.ResponseWriter, r *http.Request, actorID string) {
	resp, err := h.farmService.ListFarms(r.Context(), actorID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *FarmHandler) create(w http.ResponseWriter, r *http.Request, actorID string) {
	var req service.CreateFarmRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	resp, err := h.farmService.CreateFarm(r.Context(), actorID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *FarmHandler) get(w http.ResponseWriter, r *http.Request, actorID, farmID string) {
	resp, err := h.farmService.GetFarm(r.Context(), actorID, farmID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *FarmHandler) update(w http.ResponseWriter, r *http.Request, actorID, farmID string) {
	var req service.UpdateFarmRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	resp, err := h.farmService.UpdateFarm(r.Context(), actorID, farmID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *FarmHandler) del(w http.ResponseWriter, r *http.Request, actorID, farmID string) {
	if err := h.farmService.DeleteFarm(r.Context(), actorID, farmID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

func (h *FarmHandler) supervisors(w http.ResponseWriter, r *http.Request, actorID, farmID string) {
	resp, err := h.assignmentService.SupervisorsForFarm(r.Context(), actorID, farmID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *FarmHandler) assign(w http.ResponseWriter, r *http.Request, actorID, farmID string) {
	var req assignSupervisorRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.SupervisorID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("supervisor_id is required"))
		return
	}
	if err := h.assignmentService.AssignSupervisor(r.Context(), actorID, farmID, req.SupervisorID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

func (h *FarmHandler) remove(w http.ResponseWriter, r *http.Request, actorID, farmID, supervisorID string) {
	if err := h.assignmentService.RemoveSupervisor(r.Context(), actorID, farmID, supervisorID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}
