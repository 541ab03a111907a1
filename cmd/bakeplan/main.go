package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/ovenbird/bakeplan/internal/config"
	"github.com/ovenbird/bakeplan/internal/middleware"
	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/ovenbird/bakeplan/internal/plan/handler"
	"github.com/ovenbird/bakeplan/internal/plan/repository"
	"github.com/ovenbird/bakeplan/internal/plan/service"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting bakeplan service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Ingredient{},
		&entity.PurchaseEntry{},
		&entity.Recipe{},
		&entity.RecipeComponent{},
		&entity.ProductionPlan{},
		&entity.PlanTarget{},
		&entity.Snapshot{},
		&entity.PlanAmendment{},
	); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, db, zapLogger)
	handlers := handler.NewHandlers(services, repos)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 当前用户
		v1.GET("/me", h.User.Me)

		// 原料与采购
		ingredients := v1.Group("/ingredients")
		{
			ingredients.POST("", h.Catalog.CreateIngredient)
			ingredients.GET("", h.Catalog.ListIngredients)
			ingredients.GET("/:id", h.Catalog.GetIngredient)
			ingredients.GET("/:id/cost", h.Catalog.GetIngredientCost)
			ingredients.POST("/:id/purchases", h.Catalog.RecordPurchase)
			ingredients.GET("/:id/purchases", h.Catalog.ListPurchases)
		}

		// 配方
		recipes := v1.Group("/recipes")
		{
			recipes.POST("", h.Catalog.CreateRecipe)
			recipes.GET("", h.Catalog.ListRecipes)
			recipes.GET("/:id", h.Catalog.GetRecipe)
			recipes.GET("/:id/cost", h.Catalog.GetRecipeCost)
			recipes.POST("/:id/snapshots", h.Snapshot.CaptureRecipeSnapshot)
			recipes.GET("/:id/snapshots", h.Snapshot.ListRecipeSnapshots)
		}

		// 快照
		v1.GET("/snapshots/:id", h.Snapshot.GetSnapshot)

		// 生产计划
		plans := v1.Group("/plans")
		{
			plans.POST("", h.Plan.CreatePlan)
			plans.GET("", h.Plan.ListPlans)
			plans.GET("/:id", h.Plan.GetPlan)
			plans.DELETE("/:id", h.Plan.DeletePlan)
			plans.POST("/:id/targets", h.Plan.AddTarget)
			plans.PUT("/:id/targets/:targetId", h.Plan.UpdateTargetQuantity)
			plans.DELETE("/:id/targets/:targetId", h.Plan.RemoveTarget)
			plans.POST("/:id/lock", h.Plan.LockPlan)
			plans.POST("/:id/start-production", h.Plan.StartProduction)
			plans.POST("/:id/complete", h.Plan.CompletePlan)
			plans.POST("/:id/amendments", h.Amendment.RecordAmendment)
			plans.GET("/:id/amendments", h.Amendment.ListAmendments)
			plans.GET("/:id/summary", h.Summary.GetPlanSummary)
			plans.GET("/:id/comparison", h.Summary.ComparePlan)
			plans.GET("/:id/shopping-list/export", h.Summary.ExportShoppingList)
		}
	}
}
