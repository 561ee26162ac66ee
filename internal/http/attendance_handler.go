package httpapi

import (
	"net/http"
	"strings"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// AttendanceHandler 考勤接口
// - POST /api/attendance/check-in   签到
// - POST /api/attendance/check-out  签退
// - GET  /api/attendance/today      今日状态
// - GET  /api/attendance            历史（?user_id=&from=&to=）
type AttendanceHandler struct {
	attendanceService *service.AttendanceService
	logger            *zap.Logger
}

func NewAttendanceHandler(attendanceService *service.AttendanceService, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService, logger: logger}
}

func (h *AttendanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID := UserIDFromContext(r.Context())
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/attendance"), "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.list(w, r, actorID)
	case path == "check-in" && r.Method == http.MethodPost:
		h.checkIn(w, r, actorID)
	case path == "check-out" && r.Method == http.MethodPost:
		h.checkOut(w, r, actorID)
	case path == "today" && r.Method == http.MethodGet:
		h.today(w, r, actorID)
	default:
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	}
}

func (h *AttendanceHandler) checkIn(w http.ResponseWriter, r *http.Request, actorID string) {
	var req service.CheckInRequest
	if r.ContentLength > 0 {
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
	}
	resp, err := h.attendanceService.CheckIn(r.Context(), actorID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *AttendanceHandler) checkOut(w http.ResponseWriter, r *http.Request, actorID string) {
	var req service.CheckOutRequest
	if r.ContentLength > 0 {
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
	}
	resp, err := h.attendanceService.CheckOut(r.Context(), actorID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *AttendanceHandler) today(w http.ResponseWriter, r *http.Request, actorID string) {
	resp, err := h.attendanceService.TodayStatus(r.Context(), actorID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *AttendanceHandler) list(w http.ResponseWriter, r *http.Request, actorID string) {
	req := service.ListAttendanceRequest{
		UserID: r.URL.Query().Get("user_id"),
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
	}
	resp, err := h.attendanceService.ListAttendance(r.Context(), actorID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}
