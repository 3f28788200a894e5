package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/infrastructure/cache"
	"github.com/nexuscrm/taskdesk/internal/infrastructure/persistence"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

// In-memory stand-ins for the repositories. They keep just enough behavior
// (uniqueness, status filters) for the services under test.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	alice = &auth.UserSession{ID: "u-alice", Name: "Alice", Email: "alice@example.com", Role: constants.UserRoleMember}
	bob   = &auth.UserSession{ID: "u-bob", Name: "Bob", Email: "bob@example.com", Role: constants.UserRoleMember}
	admin = &auth.UserSession{ID: "u-admin", Name: "Admin", Email: "admin@example.com", Role: constants.UserRoleAdmin}
)

type passthroughTx struct{ calls int }

func (p *passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

// failingCommitTx runs the work and then reports a failed commit.
type failingCommitTx struct{ err error }

func (f failingCommitTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return f.err
}

// recordingDispatcher captures what producers hand to the dispatcher.
type recordingDispatcher struct {
	mu        sync.Mutex
	inTx      []*events.Event
	committed []*events.Event
}

func (d *recordingDispatcher) InTx(_ context.Context, evs ...*events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inTx = append(d.inTx, evs...)
	return nil
}

func (d *recordingDispatcher) Committed(_ context.Context, evs ...*events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.committed = append(d.committed, evs...)
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, ev *events.Event) error {
	d.Committed(ctx, ev)
	return nil
}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.committed))
	for _, ev := range d.committed {
		out = append(out, ev.Type)
	}
	return out
}

func duplicateKeyErr() error {
	return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
}

// ---- users ----

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUsers(us ...*auth.UserSession) *memUsers {
	m := &memUsers{users: map[string]*models.User{}}
	for _, u := range us {
		m.users[u.ID] = &models.User{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, IsActive: true}
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memUsers) CheckUserExistsByEmail(ctx context.Context, email string) (bool, error) {
	u, _ := m.FindByEmail(ctx, email)
	return u != nil, nil
}

func (m *memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.users[id]; u != nil {
		u.LastLoginAt = &at
	}
	return nil
}

// ---- sessions ----

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newMemSessions() *memSessions { return &memSessions{sessions: map[string]*models.Session{}} }

func (m *memSessions) Insert(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.TokenID] = s
	return nil
}

func (m *memSessions) GetByTokenID(_ context.Context, tokenID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[tokenID], nil
}

func (m *memSessions) Revoke(_ context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[tokenID]; s != nil {
		s.IsRevoked = true
	}
	return nil
}

func (m *memSessions) Touch(_ context.Context, tokenID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[tokenID]; s != nil {
		s.LastActivity = at
	}
	return nil
}

func (m *memSessions) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, s := range m.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(m.sessions, k)
			n++
		}
	}
	return n, nil
}

// ---- tasks ----

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]models.Task
}

func newMemTasks() *memTasks { return &memTasks{tasks: map[string]models.Task{}} }

func (m *memTasks) Create(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; ok {
		return duplicateKeyErr()
	}
	t.Touch(time.Now())
	m.tasks[t.ID] = *t
	return nil
}

func (m *memTasks) Get(_ context.Context, id string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memTasks) Update(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Touch(time.Now())
	m.tasks[t.ID] = *t
	return nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func (m *memTasks) ListOverdueUnflagged(_ context.Context, now time.Time, limit int) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if t.IsOverdue(now) && t.OverdueFlagAt == nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memTasks) FlagOverdue(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.OverdueFlagAt != nil {
		return false, nil
	}
	t.OverdueFlagAt = &at
	m.tasks[id] = t
	return true, nil
}

func (m *memTasks) all() []models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out
}

// ---- deals ----

type memDeals struct {
	mu    sync.Mutex
	deals map[string]models.Deal
}

func newMemDeals() *memDeals { return &memDeals{deals: map[string]models.Deal{}} }

func (m *memDeals) Create(_ context.Context, d *models.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals[d.ID] = *d
	return nil
}

func (m *memDeals) Get(_ context.Context, id string) (*models.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memDeals) Update(_ context.Context, d *models.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals[d.ID] = *d
	return nil
}

// ---- clients ----

type memClients struct {
	mu      sync.Mutex
	clients map[string]models.Client
}

func newMemClients() *memClients { return &memClients{clients: map[string]models.Client{}} }

func (m *memClients) Create(_ context.Context, c *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = *c
	return nil
}

func (m *memClients) Get(_ context.Context, id string) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok || c.DeletedAt != nil {
		return nil, nil
	}
	return &c, nil
}

func (m *memClients) Update(_ context.Context, c *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = *c
	return nil
}

// ---- activity ----

type memActivity struct {
	mu   sync.Mutex
	rows []models.ActivityLog
}

func (m *memActivity) Insert(_ context.Context, a *models.ActivityLog) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.EventID == a.EventID {
			return false, nil
		}
	}
	m.rows = append(m.rows, *a)
	return true, nil
}

func (m *memActivity) List(_ context.Context, q persistence.ActivityQuery) ([]models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ActivityLog
	for i := len(m.rows) - 1; i >= 0; i-- {
		r := m.rows[i]
		if q.SubjectType != "" && (r.SubjectType != q.SubjectType || r.SubjectID != q.SubjectID) {
			continue
		}
		if q.ActorID != "" && (r.ActorID == nil || *r.ActorID != q.ActorID) {
			continue
		}
		if q.Before != nil && !r.CreatedAt.Before(*q.Before) {
			continue
		}
		out = append(out, r)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// ---- notifications ----

type memNotifications struct {
	mu   sync.Mutex
	rows []*models.Notification
}

func (m *memNotifications) Insert(_ context.Context, n *models.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.RecipientID == n.RecipientID && r.EventID == n.EventID {
			return false, nil
		}
	}
	cp := *n
	m.rows = append(m.rows, &cp)
	return true, nil
}

func (m *memNotifications) ListForRecipient(_ context.Context, recipientID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.rows[i]
		if r.RecipientID == recipientID && (!unreadOnly || !r.IsRead) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memNotifications) CountUnread(_ context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.RecipientID == recipientID && !r.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *memNotifications) MarkRead(_ context.Context, id, recipientID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id && r.RecipientID == recipientID {
			r.IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotifications) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.RecipientID == recipientID && !r.IsRead {
			r.IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *memNotifications) forRecipient(id string) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, r := range m.rows {
		if r.RecipientID == id {
			out = append(out, *r)
		}
	}
	return out
}

// ---- webhooks ----

type memWebhooks struct {
	mu    sync.Mutex
	hooks map[string]*models.Webhook
}

func newMemWebhooks(hs ...*models.Webhook) *memWebhooks {
	m := &memWebhooks{hooks: map[string]*models.Webhook{}}
	for _, h := range hs {
		m.hooks[h.ID] = h
	}
	return m
}

func (m *memWebhooks) Create(_ context.Context, w *models.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.hooks[w.ID] = &cp
	return nil
}

func (m *memWebhooks) Get(_ context.Context, id string) (*models.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hooks[id]
	if !ok {
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

func (m *memWebhooks) ListByOwner(_ context.Context, ownerID string) ([]models.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Webhook
	for _, h := range m.hooks {
		if h.OwnerID == ownerID {
			out = append(out, *h)
		}
	}
	return out, nil
}

func (m *memWebhooks) ListActive(_ context.Context) ([]models.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Webhook
	for _, h := range m.hooks {
		if h.IsActive {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memWebhooks) Update(_ context.Context, w *models.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.hooks[w.ID] = &cp
	return nil
}

func (m *memWebhooks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hooks, id)
	return nil
}

func (m *memWebhooks) ResetFailures(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h := m.hooks[id]; h != nil {
		h.ConsecutiveFailures = 0
	}
	return nil
}

func (m *memWebhooks) RecordFailure(_ context.Context, id string, threshold int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hooks[id]
	h.ConsecutiveFailures++
	if h.IsActive && h.ConsecutiveFailures >= threshold {
		h.IsActive = false
		return h.ConsecutiveFailures, true, nil
	}
	return h.ConsecutiveFailures, false, nil
}

// ---- webhook logs ----

type memWebhookLogs struct {
	mu   sync.Mutex
	logs []*models.WebhookLog
}

func (m *memWebhookLogs) InsertPending(_ context.Context, l *models.WebhookLog) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.logs {
		if e.WebhookID == l.WebhookID && e.EventID == l.EventID {
			return false, nil
		}
	}
	cp := *l
	cp.Status = constants.WebhookLogPending
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.logs = append(m.logs, &cp)
	return true, nil
}

func (m *memWebhookLogs) ListDue(_ context.Context, now time.Time, limit int) ([]models.WebhookLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WebhookLog
	for _, e := range m.logs {
		if e.Status == constants.WebhookLogPending && !e.NextAttemptAt.After(now) && len(out) < limit {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memWebhookLogs) ListByWebhook(_ context.Context, webhookID string, limit int) ([]models.WebhookLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WebhookLog
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.logs[i].WebhookID == webhookID {
			out = append(out, *m.logs[i])
		}
	}
	return out, nil
}

func (m *memWebhookLogs) find(id string) *models.WebhookLog {
	for _, e := range m.logs {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (m *memWebhookLogs) Claim(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.find(id)
	if e == nil || e.Status != constants.WebhookLogPending {
		return false, nil
	}
	e.Status = constants.WebhookLogSending
	e.NextAttemptAt = time.Now().UTC()
	return true, nil
}

func (m *memWebhookLogs) settle(id string, status constants.WebhookLogStatus, res persistence.DeliveryResult) *models.WebhookLog {
	e := m.find(id)
	e.Status = status
	e.Attempts = res.Attempts
	e.ResponseCode = res.ResponseCode
	e.ResponseBody = res.ResponseBody
	e.Error = res.Error
	return e
}

func (m *memWebhookLogs) MarkDelivered(_ context.Context, id string, res persistence.DeliveryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.settle(id, constants.WebhookLogDelivered, res)
	now := time.Now().UTC()
	e.DeliveredAt = &now
	return nil
}

func (m *memWebhookLogs) ScheduleRetry(_ context.Context, id string, res persistence.DeliveryResult, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settle(id, constants.WebhookLogPending, res).NextAttemptAt = next
	return nil
}

func (m *memWebhookLogs) MarkFailed(_ context.Context, id string, res persistence.DeliveryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settle(id, constants.WebhookLogFailed, res)
	return nil
}

func (m *memWebhookLogs) ReleaseStale(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.logs {
		if e.Status == constants.WebhookLogSending && e.NextAttemptAt.Before(olderThan) {
			e.Status = constants.WebhookLogPending
			n++
		}
	}
	return n, nil
}

func (m *memWebhookLogs) PurgeDelivered(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*models.WebhookLog
	var n int64
	for _, e := range m.logs {
		if e.Status == constants.WebhookLogDelivered && e.DeliveredAt != nil && e.DeliveredAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.logs = kept
	return n, nil
}

func (m *memWebhookLogs) snapshot() []models.WebhookLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.WebhookLog, 0, len(m.logs))
	for _, e := range m.logs {
		out = append(out, *e)
	}
	return out
}

// ---- automations ----

type memAutomations struct {
	mu    sync.Mutex
	rules []models.TaskAutomation
}

func (m *memAutomations) Create(_ context.Context, a *models.TaskAutomation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Touch(time.Now())
	m.rules = append(m.rules, *a)
	return nil
}

func (m *memAutomations) Get(_ context.Context, id string) (*models.TaskAutomation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memAutomations) List(_ context.Context) ([]models.TaskAutomation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TaskAutomation(nil), m.rules...), nil
}

func (m *memAutomations) ListActiveByTrigger(_ context.Context, trigger string) ([]models.TaskAutomation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TaskAutomation
	for _, r := range m.rules {
		if r.IsActive && r.TriggerEvent == trigger {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (m *memAutomations) Update(_ context.Context, a *models.TaskAutomation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == a.ID {
			m.rules[i] = *a
		}
	}
	return nil
}

func (m *memAutomations) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return nil
}

// ---- outbox ----

type memOutbox struct {
	mu   sync.Mutex
	rows []*models.OutboxEvent
}

func (m *memOutbox) Enqueue(_ context.Context, id, eventType string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, &models.OutboxEvent{
		ID: id, EventType: eventType, Payload: string(payload),
		Status: persistence.OutboxStatusPending, CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *memOutbox) GetPendingEvents(_ context.Context, limit int) ([]models.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OutboxEvent
	for _, r := range m.rows {
		if r.Status == persistence.OutboxStatusPending && len(out) < limit {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memOutbox) get(id string) *models.OutboxEvent {
	for _, r := range m.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (m *memOutbox) ClaimEvent(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.get(id)
	return r != nil && r.Status == persistence.OutboxStatusPending, nil
}

func (m *memOutbox) MarkProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	r := m.get(id)
	r.Status = persistence.OutboxStatusProcessed
	r.ProcessedAt = &now
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, id, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.get(id)
	r.Status = persistence.OutboxStatusFailed
	r.LastError = &msg
	return nil
}

func (m *memOutbox) IncrementRetry(_ context.Context, id string, n int, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.get(id)
	r.RetryCount = n
	r.LastError = &msg
	return nil
}

func (m *memOutbox) CleanupProcessed(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*models.OutboxEvent
	var n int64
	for _, r := range m.rows {
		if r.Status == persistence.OutboxStatusProcessed && r.ProcessedAt != nil && r.ProcessedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return n, nil
}

// ---- mailer ----

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) Send(_ context.Context, msg ports.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg.To+"|"+msg.Subject)
	return nil
}

func newMemCache() *cache.MemoryCache { return cache.NewMemoryCache() }
