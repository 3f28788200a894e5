package rest

import (
	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	svc ActivityServiceInterface
}

func NewActivityHandler(svc ActivityServiceInterface) *ActivityHandler {
	return &ActivityHandler{svc: svc}
}

// GetRecent handles GET /api/activity
func (h *ActivityHandler) GetRecent(c *gin.Context) {
	limit, before, err := pageQuery(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	HandleGetEnvelope(c, keyData, func() (any, error) {
		return h.svc.RecentFeed(c.Request.Context(), before, limit)
	})
}

// GetSubjectFeed handles GET /api/activity/:subjectType/:subjectId
func (h *ActivityHandler) GetSubjectFeed(c *gin.Context) {
	limit, before, err := pageQuery(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	HandleGetEnvelope(c, keyData, func() (any, error) {
		return h.svc.SubjectFeed(c.Request.Context(), c.Param("subjectType"), c.Param("subjectId"), before, limit)
	})
}

// GetActorFeed handles GET /api/activity/actor/:userId
func (h *ActivityHandler) GetActorFeed(c *gin.Context) {
	limit, before, err := pageQuery(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	HandleGetEnvelope(c, keyData, func() (any, error) {
		return h.svc.ActorFeed(c.Request.Context(), c.Param("userId"), before, limit)
	})
}
