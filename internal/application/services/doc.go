// Package services provides the business logic layer of the CRM.
//
// This package contains the service implementations that handle:
//   - Session authentication and the account lifecycle (AuthService, UserService)
//   - Contacts, pipelines, opportunities and tasks (ContactService, PipelineService, ...)
//   - Stage automation and its scheduled follow-ups (AutomationService, SchedulerService)
//   - Messaging over Meta and RingCentral (ConversationService, MetaService, RingCentralService)
//   - Confido invoices, web intake and workshops
//   - Event publishing (EventBus) and queued email delivery (OutboxService, NotificationService)
//
// Services depend on the interfaces in internal/domain/ports and are wired by ServiceManager.
package services
