package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartfarm-backend/internal/config"
	"smartfarm-backend/internal/database"
	"smartfarm-backend/internal/domain"
	httpapi "smartfarm-backend/internal/http"
	"smartfarm-backend/internal/logger"
	"smartfarm-backend/internal/repository"
	"smartfarm-backend/internal/service"
	"smartfarm-backend/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "smartfarm-backend")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("connect postgres failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	kv := store.NewRedisKV(redisClient)

	// repositories
	usersRepo := repository.NewPostgresUsersRepository(db)
	farmsRepo := repository.NewPostgresFarmsRepository(db)
	assignmentsRepo := repository.NewPostgresAssignmentsRepository(db)
	tasksRepo := repository.NewPostgresTasksRepository(db)
	attendanceRepo := repository.NewPostgresAttendanceRepository(db)
	messagesRepo := repository.NewPostgresMessagesRepository(db)
	chatRepo := repository.NewPostgresChatRepository(db)
	cropsRepo := repository.NewPostgresCropsRepository(db)
	livestockRepo := repository.NewPostgresLivestockRepository(db)
	applicationsRepo := repository.NewPostgresApplicationsRepository(db)

	if cfg.SeedAdmin {
		seedSystemAdmin(log, usersRepo)
	}

	// services
	resolver := service.NewActorResolver(usersRepo, farmsRepo, assignmentsRepo)
	mail := service.NewMailClient(cfg.Mail, log)
	notifications := service.NewNotificationService(kv, usersRepo, mail, cfg.Mail, log)

	authService := service.NewAuthService(usersRepo, farmsRepo, mail, cfg.JWT, log)
	userService := service.NewUserService(usersRepo, assignmentsRepo, resolver, mail, log)
	farmService := service.NewFarmService(farmsRepo, usersRepo, assignmentsRepo, resolver, log)
	assignmentService := service.NewAssignmentService(usersRepo, farmsRepo, assignmentsRepo, resolver, log)
	taskService := service.NewTaskService(tasksRepo, usersRepo, farmsRepo, resolver, mail, notifications, log)
	attendanceService := service.NewAttendanceService(attendanceRepo, usersRepo, resolver, log)
	messageService := service.NewMessageService(messagesRepo, usersRepo, resolver, log)
	chatService := service.NewChatService(chatRepo, usersRepo, log)
	cropService := service.NewCropService(cropsRepo, farmsRepo, resolver, log)
	livestockService := service.NewLivestockService(livestockRepo, farmsRepo, resolver, log)
	applicationService := service.NewApplicationService(applicationsRepo, usersRepo, farmsRepo, mail, notifications, log)
	dashboardService := service.NewDashboardService(usersRepo, farmsRepo, tasksRepo, cropsRepo, livestockRepo, applicationsRepo, messagesRepo, attendanceRepo, resolver, log)
	workerStatsService := service.NewWorkerStatsService(usersRepo, tasksRepo, attendanceRepo, resolver, log)
	reportService := service.NewReportService(farmsRepo, usersRepo, tasksRepo, attendanceRepo, resolver, log)

	// http
	auth := httpapi.NewAuthMiddleware(cfg.JWT, log)
	router := httpapi.NewRouter(auth, log)
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(authService, log))
	router.RegisterUserRoutes(httpapi.NewUserHandler(userService, log))
	router.RegisterFarmRoutes(
		httpapi.NewFarmHandler(farmService, assignmentService, log),
		httpapi.NewSupervisorHandler(assignmentService, log),
	)
	router.RegisterTaskRoutes(httpapi.NewTaskHandler(taskService, log))
	router.RegisterAttendanceRoutes(httpapi.NewAttendanceHandler(attendanceService, log))
	router.RegisterMessageRoutes(httpapi.NewMessageHandler(messageService, chatService, log))
	router.RegisterResourceRoutes(
		httpapi.NewCropHandler(cropService, log),
		httpapi.NewLivestockHandler(livestockService, log),
	)
	router.RegisterApplicationRoutes(httpapi.NewApplicationHandler(applicationService, log))
	router.RegisterDashboardRoutes(httpapi.NewDashboardHandler(dashboardService, workerStatsService, notifications, log))
	router.RegisterReportRoutes(httpapi.NewReportHandler(reportService, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	log.Info("smartfarm-backend started", zap.String("addr", cfg.HTTP.Addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// seedSystemAdmin 首次启动写入内置系统管理员（已存在则跳过）
func seedSystemAdmin(log *zap.Logger, users *repository.PostgresUsersRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const adminUsername = "admin"
	if _, err := users.GetUserByUsername(ctx, adminUsername); err == nil {
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		log.Warn("seed admin lookup failed", zap.Error(err))
		return
	}

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "ChangeMe123!"
	}
	hash, err := domain.HashPassword(password)
	if err != nil {
		log.Warn("seed admin hash failed", zap.Error(err))
		return
	}

	id, err := users.CreateUser(ctx, &domain.User{
		Username:           adminUsername,
		Email:              "admin@smartfarm360.com",
		PasswordHash:       hash,
		FirstName:          "System",
		LastName:           "Admin",
		Role:               domain.RoleSystemAdmin,
		IsActive:           true,
		MustChangePassword: true,
	})
	if err != nil {
		log.Warn("seed admin create failed", zap.Error(err))
		return
	}
	log.Info("seeded system admin account", zap.String("user_id", id), zap.String("username", adminUsername))
}
