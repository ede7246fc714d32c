package main

import (
	_ "github.com/appdotbuilder/vehicle-refuel-manager/api/swagger" // swagger docs
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/config"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/database"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/handler"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/logger"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/metrics"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/middleware"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/repository"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Vehicle Refuel Manager API
// @version         1.0
// @description     Refueling request workflow: distributors submit, sales approves or rejects, shift completes.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.WithField("config", cfg.String()).Info("configuration loaded")

	db, err := database.NewConnection(cfg.Database, log)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.WithField("driver", cfg.Database.Driver).Info("connected to database")

	gin.SetMode(cfg.GinMode)
	auth := middleware.NewAuthenticator([]byte(cfg.JWT.Secret), cfg.GinMode == gin.ReleaseMode)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	refuelingRepo := repository.NewRefuelingRepository(db)

	userService := service.NewUserService(userRepo, []byte(cfg.JWT.Secret), cfg.JWT.TTL)
	refuelingService := service.NewRefuelingService(refuelingRepo, txManager, log)

	userHandler := handler.NewUserHandler(userService, auth, cfg.JWT.TTL)
	refuelingHandler := handler.NewRefuelingHandler(refuelingService)

	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(log), middleware.Metrics())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("")
	userHandler.RegisterRoutes(api)
	refuelingHandler.RegisterRoutes(api, auth.Authenticate())

	log.Infof("Server listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
