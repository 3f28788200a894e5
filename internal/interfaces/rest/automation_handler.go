package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/internal/application/services"
)

type AutomationHandler struct {
	svc AutomationServiceInterface
}

func NewAutomationHandler(svc AutomationServiceInterface) *AutomationHandler {
	return &AutomationHandler{svc: svc}
}

// ListAutomations handles GET /api/automations
func (h *AutomationHandler) ListAutomations(c *gin.Context) {
	HandleGetEnvelope(c, keyData, func() (any, error) {
		return h.svc.List(c.Request.Context())
	})
}

// GetAutomation handles GET /api/automations/:id
func (h *AutomationHandler) GetAutomation(c *gin.Context) {
	HandleGetEnvelope(c, keyData, func() (any, error) {
		return h.svc.Get(c.Request.Context(), c.Param("id"))
	})
}

// CreateAutomation handles POST /api/automations
func (h *AutomationHandler) CreateAutomation(c *gin.Context) {
	user := GetUserFromContext(c)
	var req services.AutomationInput
	HandleCreateEnvelope(c, "Automation created", &req, func() (any, error) {
		return h.svc.Create(c.Request.Context(), user, req)
	})
}

// UpdateAutomation handles PUT /api/automations/:id
func (h *AutomationHandler) UpdateAutomation(c *gin.Context) {
	var req services.AutomationInput
	HandleUpdateEnvelope(c, "Automation updated", &req, func() (any, error) {
		return h.svc.Update(c.Request.Context(), c.Param("id"), req)
	})
}

// DeleteAutomation handles DELETE /api/automations/:id
func (h *AutomationHandler) DeleteAutomation(c *gin.Context) {
	HandleDeleteEnvelope(c, "Automation deleted", func() error {
		return h.svc.Delete(c.Request.Context(), c.Param("id"))
	})
}
