package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/cache"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/integrations/confido"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/integrations/meta"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/integrations/relay"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/integrations/ringcentral"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/messaging"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/persistence"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/expression"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/vault"
)

const (
	outboxRetention = 7 * 24 * time.Hour
	jobTimeout      = 5 * time.Minute
)

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	cfg         *config.Config
	db          *sql.DB
	redis       *redis.Client
	broker      *messaging.Publisher
	unsubscribe []func()

	Issuer  *auth.Issuer
	Limiter ports.RateLimiter

	EventBus      *EventBus
	Outbox        *OutboxService
	Notifications *NotificationService
	Auth          *AuthService
	Users         *UserService
	Contacts      *ContactService
	Pipelines     *PipelineService
	Opportunities *OpportunityService
	Automation    *AutomationService
	Tasks         *TaskService
	Conversations *ConversationService
	Meta          *MetaService
	RingCentral   *RingCentralService
	Invoices      *InvoiceService
	Intake        *IntakeService
	Workshops     *WorkshopService
	Scheduler     *SchedulerService
}

// NewServiceManager creates a new service manager with all dependencies wired.
// Integrations whose credentials are missing are left unconfigured.
func NewServiceManager(cfg *config.Config, db *sql.DB) (*ServiceManager, error) {
	sm := &ServiceManager{cfg: cfg, db: db}

	cipher, err := vault.NewCipher(cfg.Auth.TokenEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to init token cipher: %w", err)
	}

	// Repositories
	users := persistence.NewUserRepository(db)
	sessions := persistence.NewSessionRepository(db)
	verifications := persistence.NewVerificationRepository(db)
	contacts := persistence.NewContactRepository(db)
	pipelines := persistence.NewPipelineRepository(db)
	opps := persistence.NewOpportunityRepository(db)
	tasks := persistence.NewTaskRepository(db)
	jobs := persistence.NewJobRepository(db)
	conversations := persistence.NewConversationRepository(db)
	pages := persistence.NewMetaPageRepository(db)
	calls := persistence.NewCallLogRepository(db)
	invoices := persistence.NewInvoiceRepository(db)
	workshops := persistence.NewWorkshopRepository(db)

	// Cache-backed helpers degrade to in-process versions without Redis
	sm.redis = cache.NewRedisClient(cfg.Redis)
	sm.Limiter = cache.NewRateLimiter(cfg.RateLimit, sm.redis)
	tokens := cache.NewTokenCache(sm.redis)
	locker := cache.NewLocker(sm.redis)

	// Events and email delivery
	sm.EventBus = NewEventBus()
	sm.Outbox = NewOutboxService(db, sm.EventBus)
	sm.Notifications = NewNotificationService(sm.Outbox, users, cfg.Server.PublicURL)
	sm.unsubscribe = append(sm.unsubscribe, RegisterEmailRelay(sm.EventBus, relay.NewClient(cfg.Relay)))
	if sm.broker = messaging.NewPublisher(cfg.RabbitMQ); sm.broker.Enabled() {
		sm.unsubscribe = append(sm.unsubscribe, RegisterBrokerForwarding(sm.EventBus, sm.broker, time.Now)...)
	}

	// Optional third-party clients stay nil interfaces when not configured
	var (
		graph   ports.MetaGraph
		rc      ports.RingCentral
		billing ports.Confido
	)
	if cfg.Meta.Enabled() {
		graph = meta.NewClient(cfg.Meta)
	}
	if cfg.RingCentral.Enabled() {
		rc = ringcentral.NewClient(cfg.RingCentral, tokens)
	}
	if cfg.Confido.APIKey != "" {
		billing = confido.NewClient(cfg.Confido)
	}

	// Auth and users
	sm.Issuer = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	sm.Auth = NewAuthService(users, sessions, verifications, sm.Issuer, sm.Notifications, sm.Limiter, AuthOptions{
		PublicURL:       cfg.Server.PublicURL,
		VerificationTTL: cfg.Auth.VerificationTTL,
	})
	sm.Users = NewUserService(users, sessions, verifications, sm.Notifications, cfg.Server.PublicURL)

	// CRM core
	engine := expression.NewEngine()
	sm.Contacts = NewContactService(contacts, sm.EventBus)
	sm.Pipelines = NewPipelineService(pipelines, opps, engine)
	sm.Automation = NewAutomationService(pipelines, tasks, jobs, opps, engine, cfg.Automation.DidNotHireGrace)
	sm.Opportunities = NewOpportunityService(opps, pipelines, contacts, jobs, sm.Automation, sm.EventBus)
	sm.Automation.SetStageMover(sm.Opportunities)
	sm.Tasks = NewTaskService(tasks, opps)

	// Messaging
	sm.Conversations = NewConversationService(ConversationDeps{
		Repo:       conversations,
		Contacts:   contacts,
		Resolver:   sm.Contacts,
		Pages:      pages,
		Meta:       graph,
		RC:         rc,
		Cipher:     cipher,
		FromNumber: cfg.RingCentral.FromNumber,
		Events:     sm.EventBus,
	})
	sm.Meta = NewMetaService(graph, pages, cipher, sm.Issuer, sm.Conversations, cfg.Meta)
	sm.RingCentral = NewRingCentralService(RingCentralDeps{
		RC:            rc,
		Contacts:      contacts,
		Resolver:      sm.Contacts,
		Conversations: conversations,
		Sender:        sm.Conversations,
		Ingester:      sm.Conversations,
		Calls:         calls,
		Config:        cfg.RingCentral,
	})

	// Billing, intake, workshops
	sm.Invoices = NewInvoiceService(invoices, contacts, billing, sm.Notifications, sm.EventBus, cfg.Confido.WebhookSecret)
	sm.Intake = NewIntakeService(sm.Contacts, sm.Opportunities, sm.Notifications, cfg.Intake.SharedSecret)
	sm.Workshops = NewWorkshopService(workshops, contacts, sm.Contacts)

	sm.Scheduler = NewSchedulerService(locker)
	return sm, nil
}

// StartWorkers registers the recurring jobs and starts the outbox worker and the scheduler
func (sm *ServiceManager) StartWorkers() error {
	jobs := []struct {
		name string
		spec string
		fn   JobFunc
	}{
		{"automation_sweep", sm.cfg.Automation.SweepSchedule, func(ctx context.Context) error {
			res, err := sm.Automation.Sweep(ctx)
			if err == nil && res.Done+res.Skipped+res.Failed > 0 {
				log.Info().Int("done", res.Done).Int("skipped", res.Skipped).Int("failed", res.Failed).Msg("⚙️ Automation sweep")
			}
			return err
		}},
		{"session_cleanup", "@hourly", func(ctx context.Context) error {
			_, err := sm.Auth.CleanupExpiredSessions(ctx)
			return err
		}},
		{"outbox_cleanup", "@daily", func(ctx context.Context) error {
			_, err := sm.Outbox.CleanupProcessed(ctx, outboxRetention)
			return err
		}},
	}
	if sm.RingCentral.Enabled() && sm.cfg.RingCentral.CallLogSchedule != "" {
		jobs = append(jobs, struct {
			name string
			spec string
			fn   JobFunc
		}{"call_log_sync", sm.cfg.RingCentral.CallLogSchedule, func(ctx context.Context) error {
			_, err := sm.RingCentral.SyncCallLogs(ctx)
			return err
		}})
	}

	for _, j := range jobs {
		if err := sm.Scheduler.AddJob(j.name, j.spec, jobTimeout, j.fn); err != nil {
			return err
		}
	}

	sm.Outbox.StartWorker(OutboxPollInterval)
	sm.Scheduler.Start()
	return nil
}

// StopWorkers stops the scheduler and the outbox worker gracefully
func (sm *ServiceManager) StopWorkers(ctx context.Context) {
	sm.Scheduler.Stop(ctx)
	sm.Outbox.StopWorker()
}

// Close releases broker and cache connections
func (sm *ServiceManager) Close() {
	for _, unsub := range sm.unsubscribe {
		unsub()
	}
	if err := sm.broker.Close(); err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to close broker connection")
	}
	if sm.redis != nil {
		if err := sm.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("⚠️ Failed to close Redis client")
		}
	}
}
