package domain

import "errors"

// 业务错误哨兵。service / repository 统一用 errors.Is 判断，
// HTTP 层把它们映射为 400 + 错误消息
var (
	ErrNotFound           = errors.New("resource not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidRole        = errors.New("invalid role for this operation")
	ErrCapacityExceeded   = errors.New("supervisor already manages the maximum number of farms")
	ErrAlreadyAssigned    = errors.New("supervisor is already assigned to this farm")
	ErrNotAssigned        = errors.New("supervisor is not assigned to this farm")
	ErrPreconditionFailed = errors.New("operation precondition not met")
	ErrInvalidAssignment  = errors.New("invalid task assignment")
	ErrDuplicate          = errors.New("resource already exists")
)

// ValidationError 请求参数校验失败（HTTP 层映射为 400，消息原样透出）
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation 构造校验错误
func Validation(msg string) error {
	return &ValidationError{Msg: msg}
}
