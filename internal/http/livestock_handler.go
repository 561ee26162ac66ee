package httpapi

import (
	"net/http"
	"strings"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// LivestockHandler 牲畜接口（/api/livestock），删除为软删除
type LivestockHandler struct {
	livestockService *service.LivestockService
	logger           *zap.Logger
}

func NewLivestockHandler(livestockService *service.LivestockService, logger *zap.Logger) *LivestockHandler {
	return &LivestockHandler{livestockService: livestockService, logger: logger}
}

func (h *LivestockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID := UserIDFromContext(r.Context())
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/livestock"), "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			resp, err := h.livestockService.ListLivestock(r.Context(), actorID)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, Ok(resp))
		case http.MethodPost:
			var req service.LivestockRequest
			if err := readBodyJSON(r, 1<<20, &req); err != nil {
				writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
				return
			}
			resp, err := h.livestockService.CreateLivestock(r.Context(), actorID, &req)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, Ok(resp))
		default:
			writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		}
		return
	}

	if strings.Contains(path, "/") {
		writeJSON(w, http.StatusNotFound, Fail("not found"))
		return
	}
	livestockID := path

	switch r.Method {
	case http.MethodGet:
		resp, err := h.livestockService.GetLivestock(r.Context(), actorID, livestockID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	case http.MethodPut:
		var req service.LivestockRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		resp, err := h.livestockService.UpdateLivestock(r.Context(), actorID, livestockID, &req)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	case http.MethodDelete:
		if err := h.livestockService.DeleteLivestock(r.Context(), actorID, livestockID); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok[any](nil))
	default:
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
	}
}
