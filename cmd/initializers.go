package main

import (
	"fmt"
	"net/http"
	"time"

	"astroline/app/handler"
	"astroline/app/router"
	"astroline/internal/service"
	"astroline/pkg/config"
	"astroline/pkg/directory"
	"astroline/pkg/logger"
	queue "astroline/pkg/queue/asynq"
	"astroline/pkg/routing"
	mysqlstore "astroline/pkg/store/mysql"
	redisstore "astroline/pkg/store/redis"
	"astroline/pkg/workload"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.Sync()
		logger.InfoCtx(app.ctx, "Logging system has been closed")
	})
	return nil
}

// initMySQL initializes MySQL
func (app *Application) initMySQL() error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		app.config.MySQL.User,
		app.config.MySQL.Password,
		app.config.MySQL.Host,
		app.config.MySQL.Port,
		app.config.MySQL.Database,
	)

	repo, err := mysqlstore.NewRepository(dsn)
	if err != nil {
		return err
	}

	app.mysqlRepo = repo
	app.registerCleanup(func() {
		repo.Close()
		logger.InfoCtx(app.ctx, "MySQL connection has been closed")
	})

	return nil
}

// initRedis initializes Redis
func (app *Application) initRedis() error {
	client, err := redisstore.NewRedisClient(app.config)
	if err != nil {
		return err
	}

	app.redisClient = client
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})

	return nil
}

// initRoutingCore initializes the workload store, rule cache and engine
func (app *Application) initRoutingCore() error {
	app.workloadStore = workload.NewStore()

	app.ruleCache = service.NewRuleCache(app.mysqlRepo)
	if err := app.ruleCache.Refresh(app.ctx); err != nil {
		// Start with empty tables; the refresh job retries.
		logger.WarnCtx(app.ctx, "initial rule cache load failed, starting empty: %v", err)
	}

	routingCfg := &routing.Config{
		MaxRedirectHops:   app.config.Routing.MaxRedirectHops,
		OverloadThreshold: app.config.Routing.OverloadThreshold,
		ReleaseThreshold:  app.config.Routing.ReleaseThreshold,
	}

	app.routingEngine = routing.NewEngine(routingCfg, app.workloadStore, app.ruleCache)
	app.rebalancer = routing.NewRebalancer(routingCfg, app.workloadStore)

	presenceTTL := time.Duration(app.config.Routing.PresenceTTL) * time.Second
	app.presenceStore = directory.NewPresenceStore(app.redisClient.GetClient(), presenceTTL)

	return nil
}

// initServices initializes service layer
func (app *Application) initServices() error {
	app.ruleService = service.NewRuleService(app.mysqlRepo, app.ruleCache)
	app.routingEngine.
		WithRuleStats(app.ruleService).
		WithDecisionRecorder(service.NewDecisionAuditor(app.mysqlRepo.Decision))

	app.routingService = service.NewRoutingService(app.routingEngine, app.workloadStore, app.presenceStore, app.ruleCache)
	app.workloadService = service.NewWorkloadService(app.workloadStore, app.rebalancer, app.mysqlRepo)

	// Seed the workload store before the first request arrives.
	if err := app.routingService.SyncDirectory(app.ctx); err != nil {
		logger.WarnCtx(app.ctx, "initial directory sync failed, pool starts empty: %v", err)
	}

	return nil
}

// initQueue initializes the completion-event queue
func (app *Application) initQueue() error {
	manager, err := queue.NewManager(app.config)
	if err != nil {
		return err
	}

	manager.RegisterHandler(queue.TypeConsultationEnded, asynq.HandlerFunc(app.routingService.HandleCompletionTask))

	app.queueManager = manager
	app.registerCleanup(func() {
		manager.Close()
		logger.InfoCtx(app.ctx, "Completion-event queue has been closed")
	})

	return nil
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	app.routingHandler = handler.NewRoutingHandler(app.routingService, app.queueManager)
	app.ruleHandler = handler.NewRuleHandler(app.ruleService)
	app.workloadHandler = handler.NewWorkloadHandler(app.workloadService, app.routingService)
	app.dashboardHandler = handler.NewDashboardHandler(app.workloadService, app.routingService)
	return nil
}

// initHTTPServer initializes HTTP server
func (app *Application) initHTTPServer() error {
	r := router.NewRouter(app.routingHandler, app.ruleHandler, app.workloadHandler, app.dashboardHandler)

	// Set Gin mode
	gin.SetMode(app.config.Server.Mode)

	// Create Gin engine
	app.ginEngine = gin.New()
	app.ginEngine.Use(gin.Recovery())

	// Setup routes
	r.Setup(app.ginEngine)

	// Create HTTP server
	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.ginEngine,
	}

	return nil
}
