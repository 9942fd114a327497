package constants

// Table names. Every CRM entity lives in its own table; there is no generic record store.
const (
	TableUser              = "users"
	TableSession           = "sessions"
	TableVerificationToken = "verification_tokens"
	TableContact           = "contacts"
	TablePipeline          = "pipelines"
	TableStage             = "pipeline_stages"
	TableTaskTemplate      = "stage_task_templates"
	TableOpportunity       = "opportunities"
	TableTask              = "tasks"
	TableScheduledJob      = "scheduled_jobs"
	TableConversation      = "conversations"
	TableMessage           = "messages"
	TableCallLog           = "call_logs"
	TableMetaPage          = "meta_pages"
	TableInvoice           = "invoices"
	TableWorkshop          = "workshops"
	TableRegistration      = "workshop_registrations"
	TableOutboxEvent       = "outbox_events"
)

// Common column names shared by most tables
const (
	FieldID               = "id"
	FieldName             = "name"
	FieldEmail            = "email"
	FieldRole             = "role"
	FieldStatus           = "status"
	FieldCreatedDate      = "created_date"
	FieldLastModifiedDate = "last_modified_date"
)

// User columns
const (
	FieldPasswordHash       = "password_hash"
	FieldTemporaryPassword  = "temporary_password"
	FieldMustChangePassword = "must_change_password"
	FieldEmailVerified      = "email_verified"
	FieldLastLoginAt        = "last_login_at"
)

// Invoice columns
const (
	FieldExternalID = "external_id"
	FieldPaymentURL = "payment_url"
	FieldPaidCents  = "paid_cents"
	FieldSentAt     = "sent_at"
	FieldPaidAt     = "paid_at"
)
