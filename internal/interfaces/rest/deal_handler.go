package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/internal/application/services"
	"github.com/nexuscrm/taskdesk/pkg/constants"
)

type DealHandler struct {
	svc DealServiceInterface
}

func NewDealHandler(svc DealServiceInterface) *DealHandler {
	return &DealHandler{svc: svc}
}

type stageRequest struct {
	Stage constants.DealStage `json:"stage" binding:"required"`
}

type loseRequest struct {
	Reason string `json:"reason"`
}

// CreateDeal handles POST /api/deals
func (h *DealHandler) CreateDeal(c *gin.Context) {
	user := GetUserFromContext(c)
	var req services.DealInput
	HandleCreateEnvelope(c, "Deal created", &req, func() (any, error) {
		return h.svc.Create(c.Request.Context(), user, req)
	})
}

// ChangeStage handles POST /api/deals/:id/stage
func (h *DealHandler) ChangeStage(c *gin.Context) {
	user := GetUserFromContext(c)
	var req stageRequest
	HandleUpdateEnvelope(c, "Deal stage changed", &req, func() (any, error) {
		return h.svc.ChangeStage(c.Request.Context(), user, c.Param("id"), req.Stage)
	})
}

// WinDeal handles POST /api/deals/:id/win
func (h *DealHandler) WinDeal(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleUpdateEnvelope(c, "Deal won", nil, func() (any, error) {
		return h.svc.Win(c.Request.Context(), user, c.Param("id"))
	})
}

// LoseDeal handles POST /api/deals/:id/lose. The body is optional.
func (h *DealHandler) LoseDeal(c *gin.Context) {
	user := GetUserFromContext(c)
	var req loseRequest
	if c.Request.ContentLength > 0 && !BindJSON(c, &req) {
		return
	}
	HandleUpdateEnvelope(c, "Deal lost", nil, func() (any, error) {
		return h.svc.Lose(c.Request.Context(), user, c.Param("id"), req.Reason)
	})
}
