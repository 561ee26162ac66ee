package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// ReportHandler 农场运营报表导出
// - GET /api/reports/farms/{id}  导出 xlsx（任务 / 考勤 / 人力三个工作表）
type ReportHandler struct {
	reportService *service.ReportService
	logger        *zap.Logger
}

func NewReportHandler(reportService *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reportService: reportService, logger: logger}
}

func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/reports"), "/")
	if !strings.HasPrefix(path, "farms/") {
		writeJSON(w, http.StatusNotFound, Fail("not found"))
		return
	}
	farmID := strings.TrimPrefix(path, "farms/")
	if farmID == "" || strings.Contains(farmID, "/") {
		writeJSON(w, http.StatusNotFound, Fail("not found"))
		return
	}

	data, filename, err := h.reportService.FarmReport(r.Context(), UserIDFromContext(r.Context()), farmID)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Write report response failed", zap.Error(err))
	}
}
