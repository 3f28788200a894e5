package services

import (
	"sort"
	"strings"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/utils"
)

// templateVars collects the placeholders available to activity and
// notification templates for an event.
func templateVars(ev *events.Event) map[string]string {
	subject := ev.Object(ev.SubjectType)
	vars := map[string]string{
		"actor":          ev.ActorName(),
		"id":             ev.SubjectID,
		"title":          utils.ToString(subject["title"]),
		"name":           utils.ToString(subject["name"]),
		"status":         utils.ToString(subject["status"]),
		"priority":       utils.ToString(subject["priority"]),
		"stage":          utils.ToString(subject["stage"]),
		"amount":         utils.ToString(subject["amount"]),
		"assignee":       utils.ToString(subject["assignee_id"]),
		"due_at":         utils.ToString(subject["due_at"]),
		"url":            utils.ToString(subject["url"]),
		"previous_stage": ev.Str(events.KeyPreviousStage),
		"reason":         ev.Str(events.KeyReason),
		"fields":         strings.Join(changedFields(ev), ", "),
		"attempts":       ev.Str(events.KeyDelivery, "attempts"),
		"event":          ev.Str(events.KeyDelivery, "event_type"),
	}
	if vars["assignee"] == "" {
		vars["assignee"] = "nobody"
	}
	return vars
}

// render substitutes {placeholders} in tmpl. Unknown placeholders are left as is.
func render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func changedFields(ev *events.Event) []string {
	changes := ev.Object(events.KeyChanges)
	fields := make([]string, 0, len(changes))
	for f := range changes {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// subjectLink is the front-end path for a subject.
func subjectLink(subjectType, id string) string {
	switch subjectType {
	case constants.SubjectTask:
		return "/tasks/" + id
	case constants.SubjectDeal:
		return "/deals/" + id
	case constants.SubjectClient:
		return "/clients/" + id
	case constants.SubjectWebhook:
		return "/webhooks/" + id
	}
	return ""
}
