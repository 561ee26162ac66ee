package httpapi

import (
	"net/http"
	"strings"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// CropHandler 作物接口（/api/crops）
type CropHandler struct {
	cropService *service.CropService
	logger      *zap.Logger
}

func NewCropHandler(cropService *service.CropService, logger *zap.Logger) *CropHandler {
	return &CropHandler{cropService: cropService, logger: logger}
}

func (h *CropHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID := UserIDFromContext(r.Context())
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/crops"), "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			resp, err := h.cropService.ListCrops(r.Context(), actorID)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, Ok(resp))
		case http.MethodPost:
			var req service.CropRequest
			if err := readBodyJSON(r, 1<<20, &req); err != nil {
				writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
				return
			}
			resp, err := h.cropService.CreateCrop(r.Context(), actorID, &req)
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
	cropID := path

	switch r.Method {
	case http.MethodGet:
		resp, err := h.cropService.GetCrop(r.Context(), actorID, cropID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	case http.MethodPut:
		var req service.CropRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		resp, err := h.cropService.UpdateCrop(r.Context(), actorID, cropID, &req)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	case http.MethodDelete:
		if err := h.cropService.DeleteCrop(r.Context(), actorID, cropID); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok[any](nil))
	default:
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
	}
}
