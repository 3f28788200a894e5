package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/internal/application/services"
)

type ClientHandler struct {
	svc ClientServiceInterface
}

func NewClientHandler(svc ClientServiceInterface) *ClientHandler {
	return &ClientHandler{svc: svc}
}

// CreateClient handles POST /api/clients
func (h *ClientHandler) CreateClient(c *gin.Context) {
	user := GetUserFromContext(c)
	var req services.ClientInput
	HandleCreateEnvelope(c, "Client created", &req, func() (any, error) {
		return h.svc.Create(c.Request.Context(), user, req)
	})
}

// UpdateClient handles PATCH /api/clients/:id
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	user := GetUserFromContext(c)
	var req services.ClientPatch
	HandleUpdateEnvelope(c, "Client updated", &req, func() (any, error) {
		return h.svc.Update(c.Request.Context(), user, c.Param("id"), req)
	})
}

// DeleteClient handles DELETE /api/clients/:id
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleDeleteEnvelope(c, "Client deleted", func() error {
		return h.svc.Delete(c.Request.Context(), user, c.Param("id"))
	})
}
