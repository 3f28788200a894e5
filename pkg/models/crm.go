package models

import (
	"time"

	"github.com/nexuscrm/taskdesk/pkg/constants"
)

// User is a person who can sign in.
type User struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	PasswordHash string             `json:"-"`
	Role         constants.UserRole `json:"role"`
	IsActive     bool               `json:"is_active"`
	LastLoginAt  *time.Time         `json:"last_login_at,omitempty"`
	Timestamps
}

// Session is a persisted login, keyed by the JWT id.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	TokenID      string    `json:"token_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
	IsRevoked    bool      `json:"is_revoked"`
	CreatedAt    time.Time `json:"created_at"`
}

// Client is a customer account.
type Client struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     *string    `json:"email,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Company   *string    `json:"company,omitempty"`
	OwnerID   string     `json:"owner_id"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	Timestamps
}

// Deal is a sales opportunity that moves through pipeline stages.
type Deal struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	ClientID   *string             `json:"client_id,omitempty"`
	OwnerID    string              `json:"owner_id"`
	Amount     float64             `json:"amount"`
	Stage      constants.DealStage `json:"stage"`
	LostReason *string             `json:"lost_reason,omitempty"`
	ClosedAt   *time.Time          `json:"closed_at,omitempty"`
	Timestamps
}

// Task is a unit of work, optionally tied to a client or deal.
type Task struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   *string                `json:"description,omitempty"`
	Status        constants.TaskStatus   `json:"status"`
	Priority      constants.TaskPriority `json:"priority"`
	AssigneeID    *string                `json:"assignee_id,omitempty"`
	CreatorID     string                 `json:"creator_id"`
	ClientID      *string                `json:"client_id,omitempty"`
	DealID        *string                `json:"deal_id,omitempty"`
	DueAt         *time.Time             `json:"due_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	OverdueFlagAt *time.Time             `json:"overdue_flagged_at,omitempty"`
	Timestamps
}

// IsOverdue reports whether an open task is past its due date at now.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueAt != nil && t.Status != constants.TaskStatusDone && t.DueAt.Before(now)
}

// AssigneeOrEmpty returns the assignee id, or "" when unassigned.
func (t *Task) AssigneeOrEmpty() string {
	if t.AssigneeID == nil {
		return ""
	}
	return *t.AssigneeID
}

// DashboardStats is the aggregated view served by /api/dashboard/stats.
type DashboardStats struct {
	OpenTasks     int            `json:"open_tasks"`
	OverdueTasks  int            `json:"overdue_tasks"`
	TasksByStatus map[string]int `json:"tasks_by_status"`
	DealsByStage  map[string]int `json:"deals_by_stage"`
	PipelineValue float64        `json:"pipeline_value"`
	WonValue      float64        `json:"won_value"`
	ActiveClients int            `json:"active_clients"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
