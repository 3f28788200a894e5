package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/pkg/utils"
)

type NotificationHandler struct {
	svc NotificationServiceInterface
}

func NewNotificationHandler(svc NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// GetNotifications handles GET /api/notifications
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	user := GetUserFromContext(c)
	limit, _, err := pageQuery(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	unreadOnly := utils.ToBool(c.Query("unread"))

	HandleGetEnvelope(c, keyData, func() (any, error) {
		return h.svc.List(c.Request.Context(), user.ID, unreadOnly, limit)
	})
}

// GetUnreadCount handles GET /api/notifications/unread-count
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, keyData, func() (any, error) {
		count, err := h.svc.UnreadCount(c.Request.Context(), user.ID)
		if err != nil {
			return nil, err
		}
		return map[string]int{"count": count}, nil
	})
}

// MarkAsRead handles POST /api/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleUpdateEnvelope(c, "Notification marked as read", nil, func() (any, error) {
		return nil, h.svc.MarkRead(c.Request.Context(), c.Param("id"), user.ID)
	})
}

// MarkAllAsRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleUpdateEnvelope(c, "Notifications marked as read", nil, func() (any, error) {
		n, err := h.svc.MarkAllRead(c.Request.Context(), user.ID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": n}, nil
	})
}
