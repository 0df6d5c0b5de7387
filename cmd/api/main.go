package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/itsmahammad/UniversityERP/api/swagger"
	"github.com/itsmahammad/UniversityERP/internal/handler"
	"github.com/itsmahammad/UniversityERP/internal/middleware"
	"github.com/itsmahammad/UniversityERP/internal/repository"
	"github.com/itsmahammad/UniversityERP/internal/service"
	"github.com/itsmahammad/UniversityERP/pkg/cache"
	"github.com/itsmahammad/UniversityERP/pkg/config"
	"github.com/itsmahammad/UniversityERP/pkg/database"
	"github.com/itsmahammad/UniversityERP/pkg/logger"
	"github.com/itsmahammad/UniversityERP/pkg/mailer"
	corsmiddleware "github.com/itsmahammad/UniversityERP/pkg/middleware/cors"
	reqidmiddleware "github.com/itsmahammad/UniversityERP/pkg/middleware/requestid"
	"github.com/itsmahammad/UniversityERP/pkg/security"
)

// @title University ERP API
// @version 1.0.0
// @description Staff and user management for the university ERP
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "uerp:")
	defer cacheRepo.Close() //nolint:errcheck

	hasher := security.NewHasher(cfg.Security.BcryptCost)
	tokens := security.NewTokenIssuer(security.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Expiry:   cfg.JWT.Expiration,
	})

	sender, err := mailer.New(cfg.SMTP, logr)
	if err != nil {
		logr.Fatal("failed to configure mailer", zap.Error(err))
	}
	notifier := service.NewCredentialNotifier(sender, metrics, logr)

	accounts := service.AccountConfig{
		EmailDomain:        cfg.Accounts.EmailDomain,
		TempPasswordLength: cfg.Accounts.TempPasswordLength,
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Faculty.CacheTTL, logr)

	authSvc := service.NewAuthService(userRepo, hasher, tokens, metrics, validate, logr)
	userSvc := service.NewUserService(userRepo, hasher, notifier, validate, logr, accounts)
	importSvc := service.NewUserImportService(userRepo, hasher, notifier, metrics, validate, logr, service.ImportConfig{
		Accounts:         accounts,
		MaxFileSizeBytes: cfg.Import.MaxFileSizeBytes,
	})
	facultySvc := service.NewFacultyService(facultyRepo, userRepo, cacheSvc, cfg.Faculty.CacheTTL, validate, logr)
	exportSvc := service.NewExportService(logr, nil, nil)

	if cfg.Env == config.EnvDevelopment {
		seeder := service.NewSeedService(userRepo, hasher, accounts, logr)
		if _, err := seeder.EnsureSuperAdmin(context.Background(), cfg.Seed.SuperAdminPassword); err != nil {
			logr.Error("super administrator seed failed", zap.Error(err))
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.RegisterRoutes(r, cfg.APIPrefix, authSvc, handler.Handlers{
		Auth:    handler.NewAuthHandler(authSvc),
		Account: handler.NewAccountHandler(authSvc),
		Users:   handler.NewUserHandler(userSvc, importSvc, exportSvc),
		Faculty: handler.NewFacultyHandler(facultySvc),
		Metrics: handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
			"database": db.PingContext,
			"cache":    cacheRepo.Ping,
		}),
	})

	if !cfg.IsProduction() {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
