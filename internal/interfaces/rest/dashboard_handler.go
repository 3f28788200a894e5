package rest

import (
	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	svc StatsServiceInterface
}

func NewDashboardHandler(svc StatsServiceInterface) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// GetStats handles GET /api/dashboard/stats
func (h *DashboardHandler) GetStats(c *gin.Context) {
	HandleGetEnvelope(c, keyData, func() (any, error) {
		return h.svc.Dashboard(c.Request.Context())
	})
}
