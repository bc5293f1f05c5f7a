package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "medsupply/api/swagger" // swagger docs
	"medsupply/internal/config"
	"medsupply/internal/database"
	"medsupply/internal/handler"
	"medsupply/internal/logger"
	"medsupply/internal/middleware"
	"medsupply/internal/repository"
	"medsupply/internal/service"
	"medsupply/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Medsupply Production & Order API
// @version         1.0
// @description     Raw material ledger, batch production and clinic order fulfilment for medical manufacturers.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env")
	if err != nil {
		logger.NewForEnvironment(os.Getenv("MEDSUPPLY_APP_ENV"), "info").Fatal("failed to load configuration", zap.Error(err))
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	defer func() { _ = log.Sync() }()

	db, err := database.NewConnection(cfg.Database, log, cfg.Log.Level)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	log.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsHub := websocket.NewHub(log, cfg.HTTP.CORSAllowOrigins)
	go wsHub.Run(ctx)

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db, cfg.Database.TxTimeout)
	orgRepo := repository.NewOrganisationRepository(db)
	productRepo := repository.NewProductRepository(db)
	materialRepo := repository.NewRawMaterialRepository(db)
	formulaRepo := repository.NewFormulaRepository(db)
	stageRepo := repository.NewProcessStageRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	invTxRepo := repository.NewInventoryTxRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	seqRepo := repository.NewSequenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	reportRepo := repository.NewLedgerReportRepository(db)

	ledgerService := service.NewInventoryLedgerService(materialRepo, productRepo, invTxRepo, reportRepo, auditRepo, txManager, wsHub)
	formulaService := service.NewFormulaService(formulaRepo, materialRepo, productRepo, auditRepo, txManager)
	stageService := service.NewProcessStageService(stageRepo, auditRepo, txManager)
	batchService := service.NewBatchService(batchRepo, formulaRepo, materialRepo, productRepo, stageRepo, invTxRepo,
		seqRepo, auditRepo, txManager, ledgerService, wsHub, service.BatchOptions{
			NumberPrefix: cfg.Manufacturing.BatchNumberPrefix,
			RequireQC:    cfg.Manufacturing.RequireQC,
		})
	orderService := service.NewOrderService(orderRepo, productRepo, orgRepo, seqRepo, auditRepo, txManager,
		ledgerService, wsHub, service.OrderOptions{NumberPrefix: cfg.Orders.NumberPrefix})
	auditService := service.NewAuditService(auditRepo)
	reportService := service.NewReportService(reportRepo, materialRepo)

	handler.SetupValidator()
	routes := []interface{ RegisterRoutes(*gin.RouterGroup) }{
		handler.NewInventoryHandler(ledgerService),
		handler.NewFormulaHandler(formulaService, stageService),
		handler.NewBatchHandler(batchService),
		handler.NewOrderHandler(orderService),
		handler.NewAuditHandler(auditService),
		handler.NewReportHandler(reportService),
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Request-ID"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.Clients()})
	})

	secret := []byte(cfg.JWT.Secret)
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	api := router.Group("", middleware.Authenticate(secret))
	for _, r := range routes {
		r.RegisterRoutes(api)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
