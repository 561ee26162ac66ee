package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"smartfarm-backend/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func readBodyRaw(r *http.Request, maxBytes int64) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return nil, err
	}
	if len(body) > 0 && !json.Valid(body) {
		return nil, errors.New("invalid json")
	}
	return body, nil
}

// failStatus 错误到 HTTP 状态码的映射：
// 校验/业务错误走 400，权限 403，未找到 404，其余按系统错误 500
func failStatus(err error) int {
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.As(err, &validationErr),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrAlreadyAssigned),
		errors.Is(err, domain.ErrNotAssigned),
		errors.Is(err, domain.ErrPreconditionFailed),
		errors.Is(err, domain.ErrInvalidAssignment),
		errors.Is(err, domain.ErrDuplicate):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeErr 统一错误出口。400 档透出 message，
// 500 档只回固定文案避免泄漏内部细节
func writeErr(w http.ResponseWriter, err error) {
	status := failStatus(err)
	if status == http.StatusInternalServerError {
		writeJSON(w, http.StatusInternalServerError, Fail("internal server error"))
		return
	}
	writeJSON(w, status, Fail(err.Error()))
}
