package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/internal/application/services"
)

type TaskHandler struct {
	svc TaskServiceInterface
}

func NewTaskHandler(svc TaskServiceInterface) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// AssignRequest is the body of POST /api/tasks/:id/assign
type AssignRequest struct {
	AssigneeID string `json:"assignee_id" binding:"required"`
}

// CreateTask handles POST /api/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	user := GetUserFromContext(c)
	var req services.TaskInput
	HandleCreateEnvelope(c, "Task created", &req, func() (any, error) {
		return h.svc.Create(c.Request.Context(), user, req)
	})
}

// UpdateTask handles PATCH /api/tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	user := GetUserFromContext(c)
	var req services.TaskPatch
	HandleUpdateEnvelope(c, "Task updated", &req, func() (any, error) {
		return h.svc.Update(c.Request.Context(), user, c.Param("id"), req)
	})
}

// AssignTask handles POST /api/tasks/:id/assign
func (h *TaskHandler) AssignTask(c *gin.Context) {
	user := GetUserFromContext(c)
	var req AssignRequest
	HandleUpdateEnvelope(c, "Task assigned", &req, func() (any, error) {
		return h.svc.Assign(c.Request.Context(), user, c.Param("id"), req.AssigneeID)
	})
}

// CompleteTask handles POST /api/tasks/:id/complete
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleUpdateEnvelope(c, "Task completed", nil, func() (any, error) {
		return h.svc.Complete(c.Request.Context(), user, c.Param("id"))
	})
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleDeleteEnvelope(c, "Task deleted", func() error {
		return h.svc.Delete(c.Request.Context(), user, c.Param("id"))
	})
}
