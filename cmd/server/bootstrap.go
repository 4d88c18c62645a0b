package main

import (
	"github.com/huangang/uptask/internal/config"
	"github.com/huangang/uptask/internal/handlers"
	"github.com/huangang/uptask/internal/models"
	"github.com/huangang/uptask/internal/realtime"
	"github.com/huangang/uptask/internal/services"
	"github.com/huangang/uptask/internal/utils"
	"github.com/huangang/uptask/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	router      *realtime.Router
	redisClient *redis.Client
	backplane   *realtime.RedisBackplane
	mailQueue   services.MailQueue
	worker      *services.Worker
	reconciler  *services.Reconciler

	authHandler     *handlers.AuthHandler
	projectHandler  *handlers.ProjectHandler
	taskHandler     *handlers.TaskHandler
	realtimeHandler *handlers.RealtimeHandler
	healthHandler   *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database, cfg.Server.Mode == "debug"); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()

	svc := &appServices{router: realtime.NewRouter()}

	// Realtime backplane shares events between instances when Redis is enabled
	if cfg.Redis.Enabled {
		svc.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		svc.backplane = realtime.NewRedisBackplane(svc.redisClient, cfg.Realtime.Channel, svc.router)
	}

	// Mail goes through asynq when Redis is enabled, otherwise it is sent inline
	mailer := services.NewMailer(&cfg.Mail)
	svc.mailQueue = services.NewMailQueue(cfg, mailer)
	if svc.mailQueue.IsAsync() {
		svc.worker = services.NewWorker(&cfg.Redis, mailer)
		if svc.worker != nil {
			if err := svc.worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start mail worker")
			}
		}
	}

	if cfg.Reconcile.Enabled {
		svc.reconciler = services.NewReconciler(db, cfg.Reconcile.Schedule)
		if err := svc.reconciler.StartScheduler(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start reconcile scheduler")
			svc.reconciler = nil
		}
	}

	projects := services.NewProjectService(db)
	collaboration := services.NewCollaborationService(db, svc.router)
	authService := services.NewAuthService(db, &cfg.JWT, svc.mailQueue, cfg.Server.FrontendURL)

	svc.authHandler = handlers.NewAuthHandler(authService)
	svc.projectHandler = handlers.NewProjectHandler(projects, collaboration)
	svc.taskHandler = handlers.NewTaskHandler(services.NewTaskService(db, projects), collaboration)
	svc.realtimeHandler = handlers.NewRealtimeHandler(svc.router, projects, &cfg.Realtime, cfg.Server.FrontendURL)
	svc.healthHandler = handlers.NewHealthHandler(db, svc.mailQueue, svc.router)

	return svc
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	if s.reconciler != nil {
		s.reconciler.StopScheduler()
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.mailQueue != nil {
		if err := s.mailQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close mail queue")
		}
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	logger.Info().Msg("All background services stopped")
}
