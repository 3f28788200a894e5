package constants

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// TaskPriority orders tasks by urgency.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

// DealStage is a step in the sales pipeline.
type DealStage string

const (
	DealStageLead        DealStage = "lead"
	DealStageQualified   DealStage = "qualified"
	DealStageProposal    DealStage = "proposal"
	DealStageNegotiation DealStage = "negotiation"
	DealStageWon         DealStage = "won"
	DealStageLost        DealStage = "lost"
)

// OpenDealStages are the stages a deal moves through before it is closed.
var OpenDealStages = []DealStage{DealStageLead, DealStageQualified, DealStageProposal, DealStageNegotiation}

func (s DealStage) Valid() bool {
	switch s {
	case DealStageLead, DealStageQualified, DealStageProposal, DealStageNegotiation, DealStageWon, DealStageLost:
		return true
	}
	return false
}

// IsClosed reports whether the deal has reached a terminal stage.
func (s DealStage) IsClosed() bool {
	return s == DealStageWon || s == DealStageLost
}

// UserRole is the coarse permission level of a user.
type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleMember UserRole = "member"
)

// WebhookLogStatus tracks a single delivery.
type WebhookLogStatus string

const (
	WebhookLogPending   WebhookLogStatus = "pending"
	WebhookLogSending   WebhookLogStatus = "sending"
	WebhookLogDelivered WebhookLogStatus = "delivered"
	WebhookLogFailed    WebhookLogStatus = "failed"
)

// AutomationAction is what a TaskAutomation does when its condition matches.
type AutomationAction string

const (
	AutomationCreateTask  AutomationAction = "create_task"
	AutomationAssignTask  AutomationAction = "assign_task"
	AutomationSetPriority AutomationAction = "set_priority"
	AutomationNotify      AutomationAction = "notify"
)

func (a AutomationAction) Valid() bool {
	switch a {
	case AutomationCreateTask, AutomationAssignTask, AutomationSetPriority, AutomationNotify:
		return true
	}
	return false
}

// Subject types used by activity logs and events.
const (
	SubjectTask    = "task"
	SubjectDeal    = "deal"
	SubjectClient  = "client"
	SubjectUser    = "user"
	SubjectWebhook = "webhook"
)

// Event dispatch modes.
const (
	DispatchModeSync   = "sync"
	DispatchModeOutbox = "outbox"
)
