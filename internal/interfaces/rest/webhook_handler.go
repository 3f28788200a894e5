package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/internal/application/services"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

type WebhookHandler struct {
	svc WebhookServiceInterface
}

func NewWebhookHandler(svc WebhookServiceInterface) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// ListWebhooks handles GET /api/webhooks
func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, keyData, func() (any, error) {
		return h.svc.List(c.Request.Context(), user)
	})
}

// GetWebhook handles GET /api/webhooks/:id
func (h *WebhookHandler) GetWebhook(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, keyData, func() (any, error) {
		return h.svc.Get(c.Request.Context(), user, c.Param("id"))
	})
}

// CreateWebhook handles POST /api/webhooks. The response carries the signing
// secret; later reads do not.
func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	user := GetUserFromContext(c)
	var req services.WebhookInput
	HandleCreateEnvelope(c, "Webhook created", &req, func() (any, error) {
		w, err := h.svc.Create(c.Request.Context(), user, req)
		if err != nil {
			return nil, err
		}
		return models.CreatedWebhook{Webhook: w, Secret: w.Secret}, nil
	})
}

// UpdateWebhook handles PATCH /api/webhooks/:id
func (h *WebhookHandler) UpdateWebhook(c *gin.Context) {
	user := GetUserFromContext(c)
	var req services.WebhookPatch
	HandleUpdateEnvelope(c, "Webhook updated", &req, func() (any, error) {
		return h.svc.Update(c.Request.Context(), user, c.Param("id"), req)
	})
}

// DeleteWebhook handles DELETE /api/webhooks/:id
func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleDeleteEnvelope(c, "Webhook deleted", func() error {
		return h.svc.Delete(c.Request.Context(), user, c.Param("id"))
	})
}

// GetLogs handles GET /api/webhooks/:id/logs
func (h *WebhookHandler) GetLogs(c *gin.Context) {
	user := GetUserFromContext(c)
	limit, _, err := pageQuery(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	HandleGetEnvelope(c, keyData, func() (any, error) {
		return h.svc.Logs(c.Request.Context(), user, c.Param("id"), limit)
	})
}

// SendTest handles POST /api/webhooks/:id/test
func (h *WebhookHandler) SendTest(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleUpdateEnvelope(c, "Test delivery sent", nil, func() (any, error) {
		return h.svc.SendTest(c.Request.Context(), user, c.Param("id"))
	})
}
