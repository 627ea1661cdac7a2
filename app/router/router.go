package router

import (
	"astroline/app/handler"
	"astroline/app/middleware"

	"github.com/gin-gonic/gin"
)

// Router Router
type Router struct {
	routingHandler   *handler.RoutingHandler
	ruleHandler      *handler.RuleHandler
	workloadHandler  *handler.WorkloadHandler
	dashboardHandler *handler.DashboardHandler
}

// NewRouter creates a new Router
func NewRouter(routingHandler *handler.RoutingHandler, ruleHandler *handler.RuleHandler, workloadHandler *handler.WorkloadHandler, dashboardHandler *handler.DashboardHandler) *Router {
	return &Router{
		routingHandler:   routingHandler,
		ruleHandler:      ruleHandler,
		workloadHandler:  workloadHandler,
		dashboardHandler: dashboardHandler,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())

	// V1 API - consultation lifecycle interface
	v1 := engine.Group("/v1")
	{
		v1.POST("/assign", r.routingHandler.Assign)
		v1.POST("/release", r.routingHandler.Release)
		v1.POST("/events/consultation-ended", r.routingHandler.ConsultationEnded)
	}

	// API v1 - operator console interface
	api := engine.Group("/api/v1")
	api.Use(middleware.AuthMiddleware())
	{
		// Override rule management
		overrides := api.Group("/override-rules")
		{
			overrides.POST("", r.ruleHandler.CreateOverrideRule)
			overrides.GET("", r.ruleHandler.ListOverrideRules)
			overrides.GET("/:id", r.ruleHandler.GetOverrideRule)
			overrides.PUT("/:id", r.ruleHandler.UpdateOverrideRule)
			overrides.PATCH("/:id/active", r.ruleHandler.SetOverrideRuleActive)
			overrides.DELETE("/:id", r.ruleHandler.DeleteOverrideRule)
		}

		// Smart rule management
		smart := api.Group("/smart-rules")
		{
			smart.POST("", r.ruleHandler.CreateSmartRule)
			smart.GET("", r.ruleHandler.ListSmartRules)
			smart.GET("/:id", r.ruleHandler.GetSmartRule)
			smart.PUT("/:id", r.ruleHandler.UpdateSmartRule)
			smart.PATCH("/:id/active", r.ruleHandler.SetSmartRuleActive)
			smart.DELETE("/:id", r.ruleHandler.DeleteSmartRule)
		}

		// Workload dashboard and operator control
		workloads := api.Group("/workloads")
		{
			workloads.GET("", r.workloadHandler.ListWorkloads)
			workloads.GET("/:id", r.workloadHandler.GetWorkload)
			workloads.GET("/:id/history", r.workloadHandler.GetWorkloadHistory)
			workloads.POST("/:id/break", r.workloadHandler.StartBreak)
			workloads.DELETE("/:id/break", r.workloadHandler.EndBreak)
		}

		api.POST("/rebalance", r.workloadHandler.TriggerRebalance)
		api.GET("/rebalances", r.workloadHandler.ListRebalances)
		api.GET("/metrics", r.workloadHandler.GetMetrics)

		// Live dashboard stream (WebSocket)
		if r.dashboardHandler != nil {
			api.GET("/dashboard/ws", r.dashboardHandler.Stream)
		}
	}

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
