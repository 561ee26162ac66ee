package httpapi

import (
	"net/http"
	"strings"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// SupervisorHandler 主管视角的指派查询与调动
// - GET  /api/supervisors/{id}/farms     主管当前负责的农场
// - POST /api/supervisors/{id}/reassign  原子调动（body: from_farm_id, to_farm_id）
type SupervisorHandler struct {
	assignmentService *service.AssignmentService
	logger            *zap.Logger
}

func NewSupervisorHandler(assignmentService *service.AssignmentService, logger *zap.Logger) *SupervisorHandler {
	return &SupervisorHandler{assignmentService: assignmentService, logger: logger}
}

type reassignRequest struct {
	FromFarmID string `json:"from_farm_id"`
	ToFarmID   string `json:"to_farm_id"`
}

func (h *SupervisorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID := UserIDFromContext(r.Context())
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/supervisors"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, Fail("not found"))
		return
	}
	supervisorID := parts[0]

	switch {
	case parts[1] == "farms" && r.Method == http.MethodGet:
		resp, err := h.assignmentService.FarmsForSupervisor(r.Context(), actorID, supervisorID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	case parts[1] == "reassign" && r.Method == http.MethodPost:
		var req reassignRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if req.FromFarmID == "" || req.ToFarmID == "" {
			writeJSON(w, http.StatusBadRequest, Fail("from_farm_id and to_farm_id are required"))
			return
		}
		if err := h.assignmentService.ReassignSupervisor(r.Context(), actorID, supervisorID, req.FromFarmID, req.ToFarmID); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok[any](nil))
	default:
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	}
}
