package policy

import "errors"

// 任务创建前置校验的细分错误，service 层映射为业务错误返回
var (
	ErrCreatorNotSupervisor = errors.New("only supervisors can create tasks")
	ErrCreatorUnassigned    = errors.New("supervisor has no assigned farm")
	ErrAssigneeNotWorker    = errors.New("tasks can only be assigned to workers")
	ErrCrossFarmAssignment  = errors.New("worker does not belong to the supervisor's farm")
)
