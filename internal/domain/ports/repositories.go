package ports

import (
	"context"
	"errors"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
)

// ErrWorkshopFull is returned when a registration would exceed capacity
var ErrWorkshopFull = errors.New("workshop is at capacity")

// Lookups return (nil, nil) when no row matches.

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
}

type SessionRepository interface {
	Insert(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type VerificationRepository interface {
	Insert(ctx context.Context, token *models.VerificationToken) error
	// Consume marks an unexpired, unconsumed token as used and returns its user id.
	// An empty user id means the token was unknown, expired or already consumed.
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)
	InvalidateForUser(ctx context.Context, userID string, now time.Time) error
}

type ContactFilter struct {
	Query  string
	Type   string
	Limit  int
	Offset int
}

type ContactRepository interface {
	Create(ctx context.Context, contact *models.Contact) error
	FindByID(ctx context.Context, id string) (*models.Contact, error)
	FindByEmail(ctx context.Context, email string) (*models.Contact, error)
	FindByPhone(ctx context.Context, phone string) (*models.Contact, error)
	FindByChannelID(ctx context.Context, channel, externalID string) (*models.Contact, error)
	List(ctx context.Context, filter ContactFilter) ([]*models.Contact, error)
	Update(ctx context.Context, contact *models.Contact) error
	Delete(ctx context.Context, id string) error
}

type PipelineRepository interface {
	CreatePipeline(ctx context.Context, p *models.Pipeline) error
	ListPipelines(ctx context.Context) ([]*models.Pipeline, error)
	FindPipeline(ctx context.Context, id string) (*models.Pipeline, error)
	FindDefaultPipeline(ctx context.Context) (*models.Pipeline, error)

	CreateStage(ctx context.Context, s *models.Stage) error
	FindStage(ctx context.Context, id string) (*models.Stage, error)
	ListStages(ctx context.Context, pipelineID string) ([]models.Stage, error)
	FindStageByKind(ctx context.Context, pipelineID, kind string) (*models.Stage, error)
	UpdateStage(ctx context.Context, s *models.Stage) error
	DeleteStage(ctx context.Context, id string) error

	CreateTemplate(ctx context.Context, t *models.TaskTemplate) error
	FindTemplate(ctx context.Context, id string) (*models.TaskTemplate, error)
	ListTemplates(ctx context.Context, stageID string) ([]models.TaskTemplate, error)
	UpdateTemplate(ctx context.Context, t *models.TaskTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
}

type OpportunityFilter struct {
	PipelineID string
	StageID    string
	ContactID  string
	OwnerID    string
	Limit      int
	Offset     int
}

type OpportunityRepository interface {
	Create(ctx context.Context, opp *models.Opportunity) error
	FindByID(ctx context.Context, id string) (*models.Opportunity, error)
	List(ctx context.Context, filter OpportunityFilter) ([]*models.Opportunity, error)
	Update(ctx context.Context, opp *models.Opportunity) error
	UpdateStage(ctx context.Context, id, stageID string, enteredAt time.Time, closedAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	Complete(ctx context.Context, id, userID string, at time.Time) error
	Reopen(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type JobRepository interface {
	Create(ctx context.Context, job *models.ScheduledJob) error
	CancelPending(ctx context.Context, opportunityID string) (int64, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error)
	// Claim moves a job from pending to running; false means another worker owns it
	Claim(ctx context.Context, id string) (bool, error)
	Finish(ctx context.Context, id, status, errMsg string, at time.Time) error
}

type ConversationFilter struct {
	Channel string
	Limit   int
	Offset  int
}

type ConversationRepository interface {
	FindOrCreate(ctx context.Context, contactID, channel string, pageID *string) (*models.Conversation, error)
	FindByID(ctx context.Context, id string) (*models.Conversation, error)
	List(ctx context.Context, filter ConversationFilter) ([]*models.Conversation, error)
	// InsertMessage returns false when a message with the same external id already exists
	InsertMessage(ctx context.Context, msg *models.Message) (bool, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
	TouchLastMessage(ctx context.Context, conversationID string, at time.Time, preview string, inbound bool) error
	MarkRead(ctx context.Context, conversationID string) error
}

type CallLogRepository interface {
	// Upsert returns true when the record was new
	Upsert(ctx context.Context, rec *models.CallLog) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*models.CallLog, error)
	LatestStart(ctx context.Context) (*time.Time, error)
}

type MetaPageRepository interface {
	Upsert(ctx context.Context, page *models.MetaPage) error
	List(ctx context.Context) ([]*models.MetaPage, error)
	FindByID(ctx context.Context, id string) (*models.MetaPage, error)
	FindByPageID(ctx context.Context, pageID string) (*models.MetaPage, error)
	FindByInstagramID(ctx context.Context, igID string) (*models.MetaPage, error)
	SetSubscribed(ctx context.Context, id string, subscribed bool) error
	Delete(ctx context.Context, id string) error
}

type InvoiceFilter struct {
	ContactID string
	Status    string
	Limit     int
	Offset    int
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *models.Invoice) error
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]*models.Invoice, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
}

type WorkshopRepository interface {
	Create(ctx context.Context, w *models.Workshop) error
	FindByID(ctx context.Context, id string) (*models.Workshop, error)
	List(ctx context.Context, upcomingOnly bool, now time.Time) ([]*models.Workshop, error)
	Update(ctx context.Context, w *models.Workshop) error
	Delete(ctx context.Context, id string) error

	// Register inserts reg unless the workshop is full (ErrWorkshopFull)
	Register(ctx context.Context, reg *models.Registration) error
	FindRegistration(ctx context.Context, id string) (*models.Registration, error)
	FindRegistrationByContact(ctx context.Context, workshopID, contactID string) (*models.Registration, error)
	ListRegistrations(ctx context.Context, workshopID string) ([]*models.Registration, error)
	UpdateRegistrationStatus(ctx context.Context, id, status string) error
}
