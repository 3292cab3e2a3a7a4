// internal/app/server.go
package app

import (
	"context"
	"fmt"

	"pasturelink-service/internal/config"
	"pasturelink-service/internal/db"
	intakeHandler "pasturelink-service/internal/handlers/intake"
	rancherHandler "pasturelink-service/internal/handlers/rancher"
	referralHandler "pasturelink-service/internal/handlers/referral"
	"pasturelink-service/internal/middleware"
	"pasturelink-service/internal/pkg/capacity"
	"pasturelink-service/internal/repository/postgres"
	intakeUsecase "pasturelink-service/internal/service/intake"
	"pasturelink-service/internal/service/notification"
	ranchersvc "pasturelink-service/internal/service/rancher"
	lifecycleUsecase "pasturelink-service/internal/service/referral"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.Default()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	// ----- Redis (notification feed) -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis", zap.String("addr", s.cfg.RedisAddr))

	// ----- Repositories -----
	buyerRepo := postgres.NewBuyerRepository(pool)
	rancherRepo := postgres.NewRancherRepository(pool)
	referralRepo := postgres.NewReferralRepository(pool)

	// ----- Capacity Ledger & Notifier -----
	ledger := capacity.NewLedger(rancherRepo, logger)
	notifier := notification.NewRedisPublisher(redisClient, s.cfg.NotifyChannel, logger)

	// ----- Services (Usecases) -----
	lifecycleService := lifecycleUsecase.NewLifecycleService(
		referralRepo,
		rancherRepo,
		buyerRepo,
		ledger,
		notifier,
		s.cfg.ReleaseCapacityOnClose,
		logger,
	)
	intakeService := intakeUsecase.NewIntakeService(buyerRepo, rancherRepo, lifecycleService, logger)
	rancherService := ranchersvc.NewRancherService(rancherRepo, logger)

	// ----- Handlers -----
	intakeHandlerInst := intakeHandler.NewIntakeHandler(intakeService)
	referralHandlerInst := referralHandler.NewReferralHandler(lifecycleService)
	rancherHandlerInst := rancherHandler.NewRancherHandler(rancherService)

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		IntakeHandler:   intakeHandlerInst,
		ReferralHandler: referralHandlerInst,
		RancherHandler:  rancherHandlerInst,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}
