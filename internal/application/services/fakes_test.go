package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/events"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

// In-memory fakes of the ports used by service tests.

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{users: map[string]*models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	u, _ := m.FindByEmail(ctx, email)
	return u != nil, nil
}

func (m *memUsers) List(_ context.Context) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memUsers) Update(_ context.Context, id string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case constants.FieldName:
			u.Name = v.(string)
		case constants.FieldRole:
			u.Role = v.(string)
		case constants.FieldStatus:
			u.Status = v.(string)
		case constants.FieldPasswordHash:
			u.PasswordHash = v.(string)
		case constants.FieldTemporaryPassword:
			u.TemporaryPassword, _ = v.(string)
		case constants.FieldMustChangePassword:
			u.MustChangePassword = v.(bool)
		case constants.FieldEmailVerified:
			u.EmailVerified = v.(bool)
		case constants.FieldLastLoginAt:
			t := v.(time.Time)
			u.LastLoginAt = &t
		}
	}
	return nil
}

func (m *memUsers) get(id string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]*models.Session{}}
}

func (m *memSessions) Insert(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) DeleteForUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(before) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *memSessions) countFor(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

type memVerifications struct {
	mu     sync.Mutex
	tokens []*models.VerificationToken
}

func (m *memVerifications) Insert(_ context.Context, t *models.VerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens = append(m.tokens, &cp)
	return nil
}

func (m *memVerifications) Consume(_ context.Context, hash string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash && t.ConsumedAt == nil && t.ExpiresAt.After(now) {
			t.ConsumedAt = &now
			return t.UserID, nil
		}
	}
	return "", nil
}

func (m *memVerifications) InvalidateForUser(_ context.Context, userID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID && t.ConsumedAt == nil {
			t.ConsumedAt = &now
		}
	}
	return nil
}

type memContacts struct {
	mu       sync.Mutex
	contacts map[string]*models.Contact
}

func newMemContacts(cs ...*models.Contact) *memContacts {
	m := &memContacts{contacts: map[string]*models.Contact{}}
	for _, c := range cs {
		m.contacts[c.ID] = c
	}
	return m
}

func (m *memContacts) Create(_ context.Context, c *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.contacts[c.ID] = &cp
	return nil
}

func (m *memContacts) FindByID(_ context.Context, id string) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contacts[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *memContacts) find(match func(*models.Contact) bool) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memContacts) FindByEmail(_ context.Context, email string) (*models.Contact, error) {
	return m.find(func(c *models.Contact) bool { return c.Email != nil && *c.Email == email })
}

func (m *memContacts) FindByPhone(_ context.Context, phone string) (*models.Contact, error) {
	return m.find(func(c *models.Contact) bool { return c.Phone != nil && *c.Phone == phone })
}

func (m *memContacts) FindByChannelID(_ context.Context, channel, externalID string) (*models.Contact, error) {
	return m.find(func(c *models.Contact) bool {
		switch channel {
		case constants.ChannelMessenger:
			return c.MessengerPSID != nil && *c.MessengerPSID == externalID
		case constants.ChannelInstagram:
			return c.InstagramID != nil && *c.InstagramID == externalID
		case constants.ChannelSMS:
			return c.Phone != nil && *c.Phone == externalID
		}
		return false
	})
}

func (m *memContacts) List(_ context.Context, filter ports.ContactFilter) ([]*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Contact, 0)
	for _, c := range m.contacts {
		if filter.Type == "" || c.Type == filter.Type {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memContacts) Update(_ context.Context, c *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.contacts[c.ID] = &cp
	return nil
}

func (m *memContacts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contacts, id)
	return nil
}

type memPipelines struct {
	mu        sync.Mutex
	pipelines map[string]*models.Pipeline
	stages    map[string]*models.Stage
	templates map[string]*models.TaskTemplate
}

func newMemPipelines() *memPipelines {
	return &memPipelines{
		pipelines: map[string]*models.Pipeline{},
		stages:    map[string]*models.Stage{},
		templates: map[string]*models.TaskTemplate{},
	}
}

func (m *memPipelines) CreatePipeline(_ context.Context, p *models.Pipeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.Stages = nil
	m.pipelines[p.ID] = &cp
	return nil
}

func (m *memPipelines) ListPipelines(_ context.Context) ([]*models.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Pipeline, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memPipelines) FindPipeline(_ context.Context, id string) (*models.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pipelines[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memPipelines) FindDefaultPipeline(_ context.Context) (*models.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pipelines {
		if p.IsDefault {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPipelines) CreateStage(_ context.Context, s *models.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.stages[s.ID] = &cp
	return nil
}

func (m *memPipelines) FindStage(_ context.Context, id string) (*models.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stages[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memPipelines) ListStages(_ context.Context, pipelineID string) ([]models.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Stage, 0)
	for _, s := range m.stages {
		if s.PipelineID == pipelineID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memPipelines) FindStageByKind(ctx context.Context, pipelineID, kind string) (*models.Stage, error) {
	stages, _ := m.ListStages(ctx, pipelineID)
	for _, s := range stages {
		if s.Kind == kind {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPipelines) UpdateStage(_ context.Context, s *models.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.stages[s.ID] = &cp
	return nil
}

func (m *memPipelines) DeleteStage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stages, id)
	return nil
}

func (m *memPipelines) CreateTemplate(_ context.Context, t *models.TaskTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *memPipelines) FindTemplate(_ context.Context, id string) (*models.TaskTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.templates[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *memPipelines) ListTemplates(_ context.Context, stageID string) ([]models.TaskTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TaskTemplate, 0)
	for _, t := range m.templates {
		if t.StageID == stageID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memPipelines) UpdateTemplate(_ context.Context, t *models.TaskTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *memPipelines) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.templates, id)
	return nil
}

type memOpps struct {
	mu   sync.Mutex
	opps map[string]*models.Opportunity
}

func newMemOpps() *memOpps {
	return &memOpps{opps: map[string]*models.Opportunity{}}
}

func (m *memOpps) Create(_ context.Context, o *models.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.opps[o.ID] = &cp
	return nil
}

func (m *memOpps) FindByID(_ context.Context, id string) (*models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.opps[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (m *memOpps) List(_ context.Context, filter ports.OpportunityFilter) ([]*models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Opportunity, 0)
	for _, o := range m.opps {
		if filter.PipelineID != "" && o.PipelineID != filter.PipelineID {
			continue
		}
		if filter.StageID != "" && o.StageID != filter.StageID {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memOpps) Update(_ context.Context, o *models.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.opps[o.ID] = &cp
	return nil
}

func (m *memOpps) UpdateStage(_ context.Context, id, stageID string, enteredAt time.Time, closedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.opps[id]; ok {
		o.StageID = stageID
		o.StageEnteredAt = enteredAt
		o.ClosedAt = closedAt
	}
	return nil
}

func (m *memOpps) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.opps, id)
	return nil
}

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
	order []string
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: map[string]*models.Task{}}
}

func (m *memTasks) Create(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	m.order = append(m.order, t.ID)
	return nil
}

func (m *memTasks) FindByID(_ context.Context, id string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *memTasks) List(_ context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Task, 0)
	for _, id := range m.order {
		t, ok := m.tasks[id]
		if !ok {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.OpportunityID != "" && (t.OpportunityID == nil || *t.OpportunityID != filter.OpportunityID) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memTasks) Complete(_ context.Context, id, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		t.Status = constants.TaskStatusCompleted
		t.CompletedAt = &at
		t.CompletedByID = &userID
	}
	return nil
}

func (m *memTasks) Reopen(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		t.Status = constants.TaskStatusOpen
		t.CompletedAt = nil
		t.CompletedByID = nil
	}
	return nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*models.ScheduledJob
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[string]*models.ScheduledJob{}}
}

func (m *memJobs) Create(_ context.Context, j *models.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *memJobs) CancelPending(_ context.Context, oppID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, j := range m.jobs {
		if j.OpportunityID == oppID && j.Status == constants.JobStatusPending {
			j.Status = constants.JobStatusCancelled
			n++
		}
	}
	return n, nil
}

func (m *memJobs) FindDue(_ context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.ScheduledJob, 0)
	for _, j := range m.jobs {
		if j.Status == constants.JobStatusPending && !j.RunAt.After(now) {
			cp := *j
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobs) Claim(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != constants.JobStatusPending {
		return false, nil
	}
	j.Status = constants.JobStatusRunning
	return true, nil
}

func (m *memJobs) Finish(_ context.Context, id, status, errMsg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = status
		j.ProcessedAt = &at
		if errMsg != "" {
			j.LastError = &errMsg
		}
	}
	return nil
}

func (m *memJobs) byStatus(status string) []*models.ScheduledJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ScheduledJob
	for _, j := range m.jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	return out
}

type memConversations struct {
	mu       sync.Mutex
	convs    map[string]*models.Conversation
	messages []*models.Message
}

func newMemConversations() *memConversations {
	return &memConversations{convs: map[string]*models.Conversation{}}
}

func (m *memConversations) FindOrCreate(_ context.Context, contactID, channel string, pageID *string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.ContactID == contactID && c.Channel == channel {
			return c, nil
		}
	}
	c := &models.Conversation{ID: "conv-" + contactID + "-" + channel, ContactID: contactID, Channel: channel, PageID: pageID}
	m.convs[c.ID] = c
	return c, nil
}

func (m *memConversations) FindByID(_ context.Context, id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *memConversations) List(_ context.Context, filter ports.ConversationFilter) ([]*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Conversation, 0)
	for _, c := range m.convs {
		if filter.Channel == "" || c.Channel == filter.Channel {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memConversations) InsertMessage(_ context.Context, msg *models.Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ExternalID != nil {
		for _, existing := range m.messages {
			if existing.ExternalID != nil && *existing.ExternalID == *msg.ExternalID {
				return false, nil
			}
		}
	}
	cp := *msg
	m.messages = append(m.messages, &cp)
	return true, nil
}

func (m *memConversations) ListMessages(_ context.Context, conversationID string, limit int) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memConversations) TouchLastMessage(_ context.Context, id string, at time.Time, preview string, inbound bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[id]; ok {
		c.LastMessageAt = &at
		c.LastPreview = &preview
		if inbound {
			c.UnreadCount++
		}
	}
	return nil
}

func (m *memConversations) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[id]; ok {
		c.UnreadCount = 0
	}
	return nil
}

type memPages struct {
	mu    sync.Mutex
	pages map[string]*models.MetaPage
}

func newMemPages(pages ...*models.MetaPage) *memPages {
	m := &memPages{pages: map[string]*models.MetaPage{}}
	for _, p := range pages {
		m.pages[p.ID] = p
	}
	return m
}

func (m *memPages) Upsert(_ context.Context, p *models.MetaPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.pages {
		if existing.PageID == p.PageID {
			existing.Name = p.Name
			existing.EncryptedToken = p.EncryptedToken
			existing.InstagramAccountID = p.InstagramAccountID
			return nil
		}
	}
	cp := *p
	m.pages[p.ID] = &cp
	return nil
}

func (m *memPages) List(_ context.Context) ([]*models.MetaPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.MetaPage, 0)
	for _, p := range m.pages {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPages) FindByID(_ context.Context, id string) (*models.MetaPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memPages) findBy(match func(*models.MetaPage) bool) (*models.MetaPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pages {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPages) FindByPageID(_ context.Context, pageID string) (*models.MetaPage, error) {
	return m.findBy(func(p *models.MetaPage) bool { return p.PageID == pageID })
}

func (m *memPages) FindByInstagramID(_ context.Context, igID string) (*models.MetaPage, error) {
	return m.findBy(func(p *models.MetaPage) bool { return p.InstagramAccountID != nil && *p.InstagramAccountID == igID })
}

func (m *memPages) SetSubscribed(_ context.Context, id string, subscribed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[id]; ok {
		p.Subscribed = subscribed
	}
	return nil
}

func (m *memPages) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, id)
	return nil
}

type memCalls struct {
	mu     sync.Mutex
	calls  map[string]*models.CallLog
	latest *time.Time
}

func newMemCalls() *memCalls {
	return &memCalls{calls: map[string]*models.CallLog{}}
}

func (m *memCalls) Upsert(_ context.Context, c *models.CallLog) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calls[c.ExternalID]; ok {
		return false, nil
	}
	cp := *c
	m.calls[c.ExternalID] = &cp
	return true, nil
}

func (m *memCalls) List(_ context.Context, limit, offset int) ([]*models.CallLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.CallLog, 0)
	for _, c := range m.calls {
		out = append(out, c)
	}
	return out, nil
}

func (m *memCalls) LatestStart(_ context.Context) (*time.Time, error) {
	return m.latest, nil
}

type memInvoices struct {
	mu       sync.Mutex
	invoices map[string]*models.Invoice
}

func newMemInvoices() *memInvoices {
	return &memInvoices{invoices: map[string]*models.Invoice{}}
}

func (m *memInvoices) Create(_ context.Context, inv *models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memInvoices) FindByID(_ context.Context, id string) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invoices[id]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, nil
}

func (m *memInvoices) FindByExternalID(_ context.Context, externalID string) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.ExternalID != nil && *inv.ExternalID == externalID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memInvoices) List(_ context.Context, filter ports.InvoiceFilter) ([]*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Invoice, 0)
	for _, inv := range m.invoices {
		if filter.Status == "" || inv.Status == filter.Status {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memInvoices) Update(_ context.Context, id string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case constants.FieldStatus:
			inv.Status = v.(string)
		case constants.FieldPaidCents:
			inv.PaidCents = v.(int64)
		case constants.FieldPaidAt:
			t := v.(time.Time)
			inv.PaidAt = &t
		case constants.FieldSentAt:
			t := v.(time.Time)
			inv.SentAt = &t
		}
	}
	return nil
}

type memWorkshops struct {
	mu            sync.Mutex
	workshops     map[string]*models.Workshop
	registrations map[string]*models.Registration
}

func newMemWorkshops() *memWorkshops {
	return &memWorkshops{workshops: map[string]*models.Workshop{}, registrations: map[string]*models.Registration{}}
}

func (m *memWorkshops) Create(_ context.Context, w *models.Workshop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.workshops[w.ID] = &cp
	return nil
}

func (m *memWorkshops) active(workshopID string) int {
	n := 0
	for _, r := range m.registrations {
		if r.WorkshopID == workshopID && r.Status != constants.RegistrationCancelled {
			n++
		}
	}
	return n
}

func (m *memWorkshops) FindByID(_ context.Context, id string) (*models.Workshop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.workshops[id]; ok {
		cp := *w
		cp.Registered = m.active(id)
		return &cp, nil
	}
	return nil, nil
}

func (m *memWorkshops) List(_ context.Context, upcomingOnly bool, now time.Time) ([]*models.Workshop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Workshop, 0)
	for _, w := range m.workshops {
		if upcomingOnly && w.StartsAt.Before(now) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memWorkshops) Update(_ context.Context, w *models.Workshop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.workshops[w.ID] = &cp
	return nil
}

func (m *memWorkshops) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workshops, id)
	return nil
}

func (m *memWorkshops) Register(_ context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.workshops[reg.WorkshopID]
	if w.Capacity > 0 && m.active(reg.WorkshopID) >= w.Capacity {
		return ports.ErrWorkshopFull
	}
	cp := *reg
	m.registrations[reg.ID] = &cp
	return nil
}

func (m *memWorkshops) FindRegistration(_ context.Context, id string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.registrations[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *memWorkshops) FindRegistrationByContact(_ context.Context, workshopID, contactID string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.registrations {
		if r.WorkshopID == workshopID && r.ContactID == contactID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memWorkshops) ListRegistrations(_ context.Context, workshopID string) ([]*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Registration, 0)
	for _, r := range m.registrations {
		if r.WorkshopID == workshopID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memWorkshops) UpdateRegistrationStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.registrations[id]; ok {
		r.Status = status
	}
	return nil
}

// recordingBus captures published events without dispatching them
type recordingBus struct {
	mu        sync.Mutex
	published []publishedEvent
}

type publishedEvent struct {
	Type    events.EventType
	Payload interface{}
}

func (b *recordingBus) Subscribe(events.EventType, ports.EventHandler) func() { return func() {} }

func (b *recordingBus) Publish(_ context.Context, et events.EventType, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, publishedEvent{Type: et, Payload: payload})
	return nil
}

func (b *recordingBus) ofType(et events.EventType) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, e := range b.published {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

// recordingQueue captures outbox enqueues
type recordingQueue struct {
	mu     sync.Mutex
	queued []publishedEvent
	err    error
}

func (q *recordingQueue) Enqueue(_ context.Context, et events.EventType, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.queued = append(q.queued, publishedEvent{Type: et, Payload: payload})
	return nil
}

// fakeNotifier records every email request
type fakeNotifier struct {
	mu            sync.Mutex
	verifications []string
	invites       []string
	invoices      []string
	alerts        []string
	err           error
}

func (n *fakeNotifier) SendVerification(_ context.Context, to, _, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.verifications = append(n.verifications, link)
	return nil
}

func (n *fakeNotifier) SendInvite(_ context.Context, to, _, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.invites = append(n.invites, to)
	return nil
}

func (n *fakeNotifier) SendInvoice(_ context.Context, to, _, number, _ string, _ int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.invoices = append(n.invoices, number)
	return nil
}

func (n *fakeNotifier) SendIntakeAlert(_ context.Context, _, _, opportunityID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, opportunityID)
	return nil
}

// fakeLimiter denies every key listed in deny
type fakeLimiter struct {
	deny map[string]bool
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	if l.deny[key] {
		return false, 30 * time.Second, nil
	}
	return true, 0, nil
}

// plainCipher marks values instead of encrypting them
type plainCipher struct{}

func (plainCipher) Encrypt(s string) (string, error) { return "enc:" + s, nil }
func (plainCipher) Decrypt(s string) (string, error) { return s[len("enc:"):], nil }

// MockMetaGraph mocks the Graph API client
type MockMetaGraph struct {
	mock.Mock
}

func (m *MockMetaGraph) DialogURL(state string) string {
	return "https://www.facebook.com/v21.0/dialog/oauth?state=" + state
}

func (m *MockMetaGraph) ExchangeCode(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func (m *MockMetaGraph) ExchangeLongLived(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *MockMetaGraph) ListPages(ctx context.Context, token string) ([]ports.MetaPageAccount, error) {
	args := m.Called(ctx, token)
	pages, _ := args.Get(0).([]ports.MetaPageAccount)
	return pages, args.Error(1)
}

func (m *MockMetaGraph) SubscribePage(ctx context.Context, pageID, token string) error {
	return m.Called(ctx, pageID, token).Error(0)
}

func (m *MockMetaGraph) SendMessage(ctx context.Context, token, recipient, text string) (string, error) {
	args := m.Called(ctx, token, recipient, text)
	return args.String(0), args.Error(1)
}

// MockRingCentral mocks the RingCentral client
type MockRingCentral struct {
	mock.Mock
}

func (m *MockRingCentral) SendSMS(ctx context.Context, from, to, text string) (string, error) {
	args := m.Called(ctx, from, to, text)
	return args.String(0), args.Error(1)
}

func (m *MockRingCentral) RingOut(ctx context.Context, from, to string) (string, error) {
	args := m.Called(ctx, from, to)
	return args.String(0), args.Error(1)
}

func (m *MockRingCentral) CallLog(ctx context.Context, since time.Time) ([]ports.CallRecord, error) {
	args := m.Called(ctx, since)
	recs, _ := args.Get(0).([]ports.CallRecord)
	return recs, args.Error(1)
}

// MockConfido mocks the Confido GraphQL client
type MockConfido struct {
	mock.Mock
}

func (m *MockConfido) CreatePaymentLink(ctx context.Context, in ports.PaymentLinkInput) (*ports.PaymentLink, error) {
	args := m.Called(ctx, in)
	link, _ := args.Get(0).(*ports.PaymentLink)
	return link, args.Error(1)
}

func (m *MockConfido) GetPaymentLink(ctx context.Context, id string) (*ports.PaymentLink, error) {
	args := m.Called(ctx, id)
	link, _ := args.Get(0).(*ports.PaymentLink)
	return link, args.Error(1)
}

func (m *MockConfido) VoidPaymentLink(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// fixedClock returns a now func pinned to t
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
