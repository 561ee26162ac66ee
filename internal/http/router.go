package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	auth   *AuthMiddleware
	logger *zap.Logger
}

func NewRouter(auth *AuthMiddleware, logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		auth:   auth,
		logger: logger,
	}
}

// Handle 注册公开路由（不校验 JWT）
func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleAuth 注册需要登录态的路由
func (r *Router) HandleAuth(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, r.auth.Wrap(h))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAuthRoutes 登录 / 注册 / 当前用户 / 改密
func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.Handle("/api/auth/login", h.Login)
	r.Handle("/api/auth/register", h.Register)
	r.HandleAuth("/api/auth/me", h.Me)
	r.HandleAuth("/api/auth/change-password", h.ChangePassword)
}

// RegisterUserRoutes 用户管理
func (r *Router) RegisterUserRoutes(h *UserHandler) {
	r.HandleAuth("/api/users", h.ServeHTTP)
	r.HandleAuth("/api/users/", h.ServeHTTP)
}

// RegisterFarmRoutes 农场 + 主管指派
func (r *Router) RegisterFarmRoutes(farms *FarmHandler, supervisors *SupervisorHandler) {
	r.HandleAuth("/api/farms", farms.ServeHTTP)
	r.HandleAuth("/api/farms/", farms.ServeHTTP)
	r.HandleAuth("/api/supervisors/", supervisors.ServeHTTP)
}

// RegisterTaskRoutes 任务
func (r *Router) RegisterTaskRoutes(h *TaskHandler) {
	r.HandleAuth("/api/tasks", h.ServeHTTP)
	r.HandleAuth("/api/tasks/", h.ServeHTTP)
}

// RegisterAttendanceRoutes 考勤
func (r *Router) RegisterAttendanceRoutes(h *AttendanceHandler) {
	r.HandleAuth("/api/attendance", h.ServeHTTP)
	r.HandleAuth("/api/attendance/", h.ServeHTTP)
}

// RegisterMessageRoutes 私信 + 群聊
func (r *Router) RegisterMessageRoutes(h *MessageHandler) {
	r.HandleAuth("/api/messages", h.ServeHTTP)
	r.HandleAuth("/api/messages/", h.ServeHTTP)
	r.HandleAuth("/api/chat", h.ServeHTTP)
}

// RegisterResourceRoutes 作物与牲畜
func (r *Router) RegisterResourceRoutes(crops *CropHandler, livestock *LivestockHandler) {
	r.HandleAuth("/api/crops", crops.ServeHTTP)
	r.HandleAuth("/api/crops/", crops.ServeHTTP)
	r.HandleAuth("/api/livestock", livestock.ServeHTTP)
	r.HandleAuth("/api/livestock/", livestock.ServeHTTP)
}

// RegisterApplicationRoutes 入驻申请：提交公开，审核需要管理员登录态
func (r *Router) RegisterApplicationRoutes(h *ApplicationHandler) {
	r.Handle("/api/applications/submit", h.Submit)
	r.HandleAuth("/api/applications", h.ServeHTTP)
	r.HandleAuth("/api/applications/", h.ServeHTTP)
}

// RegisterDashboardRoutes 仪表盘 / 工人绩效 / 通知
func (r *Router) RegisterDashboardRoutes(h *DashboardHandler) {
	r.HandleAuth("/api/dashboard", h.Dashboard)
	r.HandleAuth("/api/workers/", h.WorkerStats)
	r.HandleAuth("/api/notifications", h.Notifications)
	r.HandleAuth("/api/notifications/", h.Notifications)
}

// RegisterReportRoutes 报表导出
func (r *Router) RegisterReportRoutes(h *ReportHandler) {
	r.HandleAuth("/api/reports/", h.ServeHTTP)
}
