package handler

import (
	"context"
	"net/http"
	"time"

	"astroline/internal/service"
	"astroline/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// DashboardHandler streams live workload state to the operator console
type DashboardHandler struct {
	workloadService *service.WorkloadService
	routingService  *service.RoutingService

	upgrader websocket.Upgrader
	interval time.Duration
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(workloadService *service.WorkloadService, routingService *service.RoutingService) *DashboardHandler {
	return &DashboardHandler{
		workloadService: workloadService,
		routingService:  routingService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The console is served from a different origin than the API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		interval: 3 * time.Second,
	}
}

type dashboardFrame struct {
	Timestamp time.Time   `json:"timestamp"`
	Metrics   interface{} `json:"metrics"`
	Workloads interface{} `json:"workloads"`
}

// Stream upgrades the connection and pushes a workload frame every few
// seconds until the client disconnects.
// @Summary Live workload stream
// @Tags dashboard
// @Router /api/v1/dashboard/ws [get]
func (h *DashboardHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WarnCtx(c.Request.Context(), "dashboard websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	logger.InfoCtx(ctx, "dashboard stream connected: %s", c.ClientIP())

	// Drain client frames so pings and close messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// First frame immediately, then on the ticker.
	if err := h.writeFrame(ctx, conn); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			logger.InfoCtx(ctx, "dashboard stream closed by client: %s", c.ClientIP())
			return
		case <-ticker.C:
			if err := h.writeFrame(ctx, conn); err != nil {
				logger.DebugCtx(ctx, "dashboard stream write failed: %v", err)
				return
			}
		}
	}
}

func (h *DashboardHandler) writeFrame(ctx context.Context, conn *websocket.Conn) error {
	frame := dashboardFrame{
		Timestamp: time.Now(),
		Metrics:   h.routingService.Metrics(ctx),
		Workloads: h.workloadService.ListWorkloads(ctx),
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(frame)
}
