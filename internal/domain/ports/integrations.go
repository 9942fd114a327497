package ports

import (
	"context"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
)

// MetaPageAccount is one entry of GET /me/accounts
type MetaPageAccount struct {
	ID                 string
	Name               string
	AccessToken        string
	InstagramAccountID string
}

// MetaGraph is the subset of the Graph API the CRM uses
type MetaGraph interface {
	DialogURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	ExchangeLongLived(ctx context.Context, shortToken string) (string, error)
	ListPages(ctx context.Context, userToken string) ([]MetaPageAccount, error)
	SubscribePage(ctx context.Context, pageID, pageToken string) error
	SendMessage(ctx context.Context, pageToken, recipientID, text string) (string, error)
}

// CallRecord is a RingCentral call-log entry
type CallRecord struct {
	ID          string
	Direction   string
	From        string
	To          string
	Result      string
	DurationSec int
	StartTime   time.Time
}

// RingCentral is the subset of the RingCentral REST API the CRM uses
type RingCentral interface {
	SendSMS(ctx context.Context, from, to, text string) (string, error)
	RingOut(ctx context.Context, from, to string) (string, error)
	CallLog(ctx context.Context, since time.Time) ([]CallRecord, error)
}

// PaymentLinkInput describes a Confido payment link to create
type PaymentLinkInput struct {
	ClientName  string
	ClientEmail string
	AmountCents int64
	Description string
	Reference   string
	DueDate     *time.Time
}

// PaymentLink is Confido's view of an invoice
type PaymentLink struct {
	ID          string
	URL         string
	Status      string
	AmountCents int64
	PaidCents   int64
	PaidAt      *time.Time
}

// Confido is the GraphQL billing API
type Confido interface {
	CreatePaymentLink(ctx context.Context, in PaymentLinkInput) (*PaymentLink, error)
	GetPaymentLink(ctx context.Context, id string) (*PaymentLink, error)
	VoidPaymentLink(ctx context.Context, id string) error
}

// EmailRelay delivers an email request to the automation webhook
type EmailRelay interface {
	Deliver(ctx context.Context, msg models.EmailMessage) error
}

// Notifier queues transactional emails
type Notifier interface {
	SendVerification(ctx context.Context, to, name, link string) error
	SendInvite(ctx context.Context, to, name, temporaryPassword, loginURL string) error
	SendInvoice(ctx context.Context, to, name, invoiceNumber, paymentURL string, amountCents int64) error
	SendIntakeAlert(ctx context.Context, contactName, contactID, opportunityID string) error
}
