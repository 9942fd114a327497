package constants

// User roles
const (
	RoleAdmin     = "admin"
	RoleAttorney  = "attorney"
	RoleParalegal = "paralegal"
	RoleStaff     = "staff"
)

// IsValidRole reports whether role is one of the known user roles
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleAttorney, RoleParalegal, RoleStaff:
		return true
	}
	return false
}

// User account status
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// Contact types
const (
	ContactTypeLead   = "lead"
	ContactTypeClient = "client"
)

// Stage kinds
const (
	StageKindOpen       = "open"
	StageKindWon        = "won"
	StageKindLost       = "lost"
	StageKindDidNotHire = "did_not_hire"
	DidNotHireStageName = "Did Not Hire"
	DidNotHireTaskTitle = "Move to Did Not Hire"
	DefaultPipelineName = "Intake"
)

// Task status
const (
	TaskStatusOpen      = "open"
	TaskStatusCompleted = "completed"
)

// Scheduled job kinds and status
const (
	JobKindDidNotHire = "did_not_hire"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusDone      = "done"
	JobStatusSkipped   = "skipped"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// Messaging channels
const (
	ChannelMessenger = "messenger"
	ChannelInstagram = "instagram"
	ChannelSMS       = "sms"
)

// Message direction and status
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	MessageStatusReceived = "received"
	MessageStatusSent     = "sent"
	MessageStatusFailed   = "failed"
)

// Invoice status
const (
	InvoiceStatusDraft = "draft"
	InvoiceStatusSent  = "sent"
	InvoiceStatusPaid  = "paid"
	InvoiceStatusVoid  = "void"
)

// Workshop registration status
const (
	RegistrationRegistered = "registered"
	RegistrationAttended   = "attended"
	RegistrationNoShow     = "no_show"
	RegistrationCancelled  = "cancelled"
)

// IsValidRegistrationStatus reports whether status is a known registration status
func IsValidRegistrationStatus(status string) bool {
	switch status {
	case RegistrationRegistered, RegistrationAttended, RegistrationNoShow, RegistrationCancelled:
		return true
	}
	return false
}

// System actor used for automation-driven changes
const (
	SystemUserID   = "00000000-0000-0000-0000-000000000000"
	SystemUserName = "System Automation"
)
