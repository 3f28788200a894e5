package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/infrastructure/database"
	"github.com/nexuscrm/taskdesk/internal/logger"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
	"github.com/nexuscrm/taskdesk/pkg/expression"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/nexuscrm/taskdesk/pkg/utils"
	"go.opentelemetry.io/otel/attribute"
)

// Action config keys.
const (
	ConfigTitle      = "title"
	ConfigBody       = "body"
	ConfigDesc       = "description"
	ConfigPriority   = "priority"
	ConfigAssignee   = "assignee_id"
	ConfigTaskID     = "task_id"
	ConfigRecipient  = "recipient_id"
	ConfigDueInDays  = "due_in_days"
	notificationType = "automation"
)

// TaskActions is what automations do to tasks.
type TaskActions interface {
	Create(ctx context.Context, actor *auth.UserSession, in TaskInput) (*models.Task, error)
	Assign(ctx context.Context, actor *auth.UserSession, id, assigneeID string) (*models.Task, error)
	SetPriority(ctx context.Context, actor *auth.UserSession, id string, p constants.TaskPriority) (*models.Task, error)
}

// Notifier stores a notification.
type Notifier interface {
	Deliver(ctx context.Context, n *models.Notification) (bool, error)
}

// AutomationInput is the body of create and update requests.
type AutomationInput struct {
	Name         string                     `json:"name"`
	TriggerEvent string                     `json:"trigger_event"`
	Condition    string                     `json:"condition"`
	Action       constants.AutomationAction `json:"action"`
	ActionConfig map[string]any             `json:"action_config"`
	IsActive     *bool                      `json:"is_active,omitempty"`
	Priority     int                        `json:"priority"`
}

// AutomationService runs TaskAutomation rules against events and manages them.
type AutomationService struct {
	repo     AutomationStore
	tasks    TaskActions
	notifier Notifier
	engine   *expression.Engine
	logger   *slog.Logger
}

func NewAutomationService(repo AutomationStore, tasks TaskActions, notifier Notifier, logger *slog.Logger) *AutomationService {
	return &AutomationService{
		repo:     repo,
		tasks:    tasks,
		notifier: notifier,
		engine:   expression.NewEngine(),
		logger:   logger,
	}
}

// Register subscribes the rule runner to every event type.
func (s *AutomationService) Register(bus ports.EventPublisher) []func() {
	var unsubs []func()
	for _, t := range events.AllTypes() {
		unsubs = append(unsubs, bus.Subscribe(t, s.HandleEvent))
	}
	return unsubs
}

// HandleEvent evaluates the active automations for the event's type in
// priority order. Within one event only the first match per (action, target)
// runs. Failures are logged and never stop the remaining automations.
func (s *AutomationService) HandleEvent(ctx context.Context, ev *events.Event) error {
	ctx = logger.WithComponent(ctx, "listener.automation")
	if ev.AutomationDepth >= constants.MaxAutomationDepth {
		s.logger.DebugContext(ctx, "automation depth limit reached, not evaluating", "depth", ev.AutomationDepth)
		return nil
	}

	rules, err := s.repo.ListActiveByTrigger(ctx, ev.Type.String())
	if err != nil {
		return fmt.Errorf("load automations: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	env := conditionEnv(ev)
	vars := automationVars(ev)
	winners := make(map[string]string)

	for i := range rules {
		a := &rules[i]
		matched, err := s.engine.EvaluateBool(a.Condition, env)
		if err != nil {
			s.logger.WarnContext(ctx, "automation condition failed", "automation", a.Name, "error", err)
			continue
		}
		if !matched {
			continue
		}

		target, err := actionTarget(a, ev, vars)
		if err != nil {
			s.logger.WarnContext(ctx, "automation skipped", "automation", a.Name, "error", err)
			continue
		}
		key := string(a.Action) + "|" + target
		if winner, taken := winners[key]; taken {
			s.logger.InfoContext(ctx, "automation suppressed by higher priority rule",
				"automation", a.Name, "winner", winner, "action", a.Action, "target", target)
			continue
		}
		winners[key] = a.Name

		if err := s.run(ctx, a, ev, target, vars); err != nil {
			s.logger.ErrorContext(ctx, "automation failed", "automation", a.Name, "action", a.Action, "error", err)
		}
	}
	return nil
}

func (s *AutomationService) run(ctx context.Context, a *models.TaskAutomation, ev *events.Event, target string, vars map[string]string) error {
	sc := logger.StartSpan(ctx, "automation.run")
	defer sc.End()
	sc.Span().SetAttributes(
		attribute.String("automation.id", a.ID),
		attribute.String("automation.action", string(a.Action)),
	)
	ctx = withAutomationDepth(sc.Context(), ev.AutomationDepth+1)

	err := s.execute(ctx, a, ev, target, vars)
	sc.RecordError(err)
	if err == nil {
		s.logger.InfoContext(ctx, "automation executed", "automation", a.Name, "action", a.Action, "target", target)
	}
	return err
}

func (s *AutomationService) execute(ctx context.Context, a *models.TaskAutomation, ev *events.Event, target string, vars map[string]string) error {
	cfg := a.ActionConfig
	switch a.Action {
	case constants.AutomationCreateTask:
		in := TaskInput{
			ID:       derivedID(a.ID, ev.ID),
			Title:    render(GetConfigString(cfg, ConfigTitle), vars),
			Priority: constants.TaskPriority(GetConfigString(cfg, ConfigPriority)),
		}
		if d := render(GetConfigString(cfg, ConfigDesc), vars); d != "" {
			in.Description = &d
		}
		if as := render(GetConfigString(cfg, ConfigAssignee), vars); as != "" {
			in.AssigneeID = &as
		}
		if days, ok := GetConfigInt(cfg, ConfigDueInDays); ok {
			in.DueAt = utils.Ptr(time.Now().UTC().AddDate(0, 0, days))
		}
		switch ev.SubjectType {
		case constants.SubjectDeal:
			in.DealID = utils.Ptr(ev.SubjectID)
			if c := ev.Str(events.KeyDeal, "client_id"); c != "" {
				in.ClientID = &c
			}
		case constants.SubjectClient:
			in.ClientID = utils.Ptr(ev.SubjectID)
		}
		_, err := s.tasks.Create(ctx, nil, in)
		if database.IsDuplicateKey(err) {
			// Redelivered event: the task already exists.
			return nil
		}
		return err

	case constants.AutomationAssignTask:
		_, err := s.tasks.Assign(ctx, nil, target, render(GetConfigString(cfg, ConfigAssignee), vars))
		return err

	case constants.AutomationSetPriority:
		_, err := s.tasks.SetPriority(ctx, nil, target, constants.TaskPriority(GetConfigString(cfg, ConfigPriority)))
		return err

	case constants.AutomationNotify:
		derived := derivedID(a.ID, ev.ID)
		_, err := s.notifier.Deliver(ctx, &models.Notification{
			ID:          utils.GenerateID(),
			RecipientID: target,
			Type:        notificationType,
			Title:       render(GetConfigString(cfg, ConfigTitle), vars),
			Body:        render(GetConfigString(cfg, ConfigBody), vars),
			Link:        subjectLink(ev.SubjectType, ev.SubjectID),
			EventID:     derived,
			CreatedAt:   time.Now().UTC(),
		})
		return err
	}
	return fmt.Errorf("unknown action %q", a.Action)
}

// derivedID is stable for one automation reacting to one event, so replays
// produce the same row ids.
func derivedID(automationID, eventID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(automationID+":"+eventID)).String()
}

// actionTarget names what an action touches, for conflict resolution.
func actionTarget(a *models.TaskAutomation, ev *events.Event, vars map[string]string) (string, error) {
	switch a.Action {
	case constants.AutomationCreateTask:
		return ev.SubjectType + ":" + ev.SubjectID, nil
	case constants.AutomationAssignTask, constants.AutomationSetPriority:
		if id := render(GetConfigString(a.ActionConfig, ConfigTaskID), vars); id != "" {
			return id, nil
		}
		if ev.SubjectType == constants.SubjectTask {
			return ev.SubjectID, nil
		}
		return "", fmt.Errorf("%s needs a task: set %s or trigger on a task event", a.Action, ConfigTaskID)
	case constants.AutomationNotify:
		r := render(GetConfigString(a.ActionConfig, ConfigRecipient), vars)
		if r == "" || strings.Contains(r, "{") {
			return "", fmt.Errorf("notify recipient %q did not resolve", r)
		}
		return r, nil
	}
	return "", fmt.Errorf("unknown action %q", a.Action)
}

// conditionEnv is what a condition expression sees.
func conditionEnv(ev *events.Event) map[string]any {
	var actor any
	if ev.Actor != nil {
		actor = ev.Actor.ToMap()
	}
	return map[string]any{
		"event": map[string]any{
			"id":               ev.ID,
			"type":             ev.Type.String(),
			"subject_type":     ev.SubjectType,
			"subject_id":       ev.SubjectID,
			"automation_depth": ev.AutomationDepth,
		},
		"payload": ev.Payload,
		"subject": ev.Object(ev.SubjectType),
		"actor":   actor,
	}
}

// automationVars extends the template placeholders with ids that action
// configs commonly reference.
func automationVars(ev *events.Event) map[string]string {
	vars := templateVars(ev)
	vars["actor_id"] = ev.ActorID()
	vars["subject_id"] = ev.SubjectID
	vars["owner_id"] = ev.Str(ev.SubjectType, "owner_id")
	vars["creator_id"] = ev.Str(ev.SubjectType, "creator_id")
	vars["assignee_id"] = ev.Str(ev.SubjectType, "assignee_id")
	return vars
}

// ---- management ----

func (s *AutomationService) List(ctx context.Context) ([]models.TaskAutomation, error) {
	return s.repo.List(ctx)
}

func (s *AutomationService) Get(ctx context.Context, id string) (*models.TaskAutomation, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperrors.NewNotFoundError("automation", id)
	}
	return a, nil
}

func (s *AutomationService) Create(ctx context.Context, actor *auth.UserSession, in AutomationInput) (*models.TaskAutomation, error) {
	a := &models.TaskAutomation{ID: utils.GenerateID()}
	apply(a, in)
	if actor != nil {
		a.CreatedBy = utils.Ptr(actor.ID)
	}
	if err := s.Validate(a); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AutomationService) Update(ctx context.Context, id string, in AutomationInput) (*models.TaskAutomation, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(a, in)
	if err := s.Validate(a); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AutomationService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Seed stores automations loaded from the seed file.
func (s *AutomationService) Seed(ctx context.Context, rules []models.TaskAutomation) (int, error) {
	for i := range rules {
		a := &rules[i]
		if a.ID == "" {
			a.ID = utils.GenerateID()
		}
		if err := s.Validate(a); err != nil {
			return i, fmt.Errorf("automation %q: %w", a.Name, err)
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return i, err
		}
	}
	return len(rules), nil
}

func apply(a *models.TaskAutomation, in AutomationInput) {
	a.Name = strings.TrimSpace(in.Name)
	a.TriggerEvent = strings.TrimSpace(in.TriggerEvent)
	a.Condition = strings.TrimSpace(in.Condition)
	a.Action = in.Action
	a.ActionConfig = in.ActionConfig
	a.Priority = in.Priority
	a.IsActive = in.IsActive == nil || *in.IsActive
}

// Validate checks an automation before it is stored.
func (s *AutomationService) Validate(a *models.TaskAutomation) error {
	if a.Name == "" {
		return apperrors.NewValidationError("name", "is required")
	}
	if !events.IsKnown(a.TriggerEvent) {
		return apperrors.NewValidationError("trigger_event", fmt.Sprintf("unknown event type %q", a.TriggerEvent))
	}
	if !a.Action.Valid() {
		return apperrors.NewValidationError("action", "must be create_task, assign_task, set_priority or notify")
	}
	if err := s.engine.Validate(a.Condition); err != nil {
		return apperrors.NewValidationError("condition", err.Error())
	}
	if a.ActionConfig == nil {
		a.ActionConfig = map[string]any{}
	}

	cfg := a.ActionConfig
	var required []string
	switch a.Action {
	case constants.AutomationCreateTask:
		required = []string{ConfigTitle}
		if p := GetConfigString(cfg, ConfigPriority); p != "" && !constants.TaskPriority(p).Valid() {
			return apperrors.NewValidationError("action_config.priority", "must be low, medium, high or urgent")
		}
	case constants.AutomationAssignTask:
		required = []string{ConfigAssignee}
	case constants.AutomationSetPriority:
		required = []string{ConfigPriority}
		if !constants.TaskPriority(GetConfigString(cfg, ConfigPriority)).Valid() {
			return apperrors.NewValidationError("action_config.priority", "must be low, medium, high or urgent")
		}
	case constants.AutomationNotify:
		required = []string{ConfigRecipient, ConfigTitle}
	}
	for _, key := range required {
		if _, err := GetConfigStringRequired(cfg, key); err != nil {
			return apperrors.NewValidationError("action_config."+key, err.Error())
		}
	}
	return nil
}
