package rest_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
)

// MockAuthService is a mock implementation of rest.AuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, in services.LoginInput) (*services.SessionResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SessionResult), args.Error(1)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, claims *auth.Claims, in services.ChangePasswordInput) (*services.SessionResult, error) {
	args := m.Called(ctx, claims, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SessionResult), args.Error(1)
}

func (m *MockAuthService) Verify(ctx context.Context, rawToken string, caller *auth.Claims, ip, userAgent string) (*services.VerifyResult, error) {
	args := m.Called(ctx, rawToken, caller, ip, userAgent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.VerifyResult), args.Error(1)
}

func (m *MockAuthService) ResendVerification(ctx context.Context, claims *auth.Claims) error {
	return m.Called(ctx, claims).Error(0)
}

func (m *MockAuthService) Logout(ctx context.Context, token string) {
	m.Called(ctx, token)
}

func (m *MockAuthService) Me(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	args := m.Called(ctx, claims)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockSessions resolves cookies for router tests
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) ValidateSession(ctx context.Context, token string) (*auth.Claims, domain.SessionState) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Get(1).(domain.SessionState)
	}
	return args.Get(0).(*auth.Claims), args.Get(1).(domain.SessionState)
}

// MockMetaService is a mock implementation of rest.MetaService
type MockMetaService struct {
	mock.Mock
}

func (m *MockMetaService) ConnectURL(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *MockMetaService) HandleCallback(ctx context.Context, state, code string) ([]*models.MetaPage, error) {
	args := m.Called(ctx, state, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MetaPage), args.Error(1)
}

func (m *MockMetaService) VerifySubscription(mode, token, challenge string) (string, bool) {
	args := m.Called(mode, token, challenge)
	return args.String(0), args.Bool(1)
}

func (m *MockMetaService) HandleWebhook(ctx context.Context, body []byte, sigHeader string) (int, error) {
	args := m.Called(ctx, body, sigHeader)
	return args.Int(0), args.Error(1)
}

func (m *MockMetaService) ListPages(ctx context.Context) ([]*models.MetaPage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MetaPage), args.Error(1)
}

func (m *MockMetaService) DisconnectPage(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockRingCentralService is a mock implementation of rest.RingCentralService
type MockRingCentralService struct {
	mock.Mock
}

func (m *MockRingCentralService) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *MockRingCentralService) SendSMS(ctx context.Context, in services.SMSInput, actorID string) (*models.Message, error) {
	args := m.Called(ctx, in, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockRingCentralService) Call(ctx context.Context, in services.CallInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *MockRingCentralService) ListCallLogs(ctx context.Context, limit, offset int) ([]*models.CallLog, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CallLog), args.Error(1)
}

func (m *MockRingCentralService) SyncCallLogs(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRingCentralService) HandleWebhook(ctx context.Context, body []byte, verificationToken string) error {
	return m.Called(ctx, body, verificationToken).Error(0)
}

// MockInvoiceService is a mock implementation of rest.InvoiceService
type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) Create(ctx context.Context, in services.InvoiceInput, actorID string) (*models.Invoice, error) {
	args := m.Called(ctx, in, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) List(ctx context.Context, filter ports.InvoiceFilter) ([]*models.Invoice, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) Get(ctx context.Context, id string) (*models.Invoice, error) {
	return m.invoice(m.Called(ctx, id))
}

func (m *MockInvoiceService) Send(ctx context.Context, id string) (*models.Invoice, error) {
	return m.invoice(m.Called(ctx, id))
}

func (m *MockInvoiceService) Void(ctx context.Context, id string) (*models.Invoice, error) {
	return m.invoice(m.Called(ctx, id))
}

func (m *MockInvoiceService) HandleWebhook(ctx context.Context, body []byte, sigHeader string) error {
	return m.Called(ctx, body, sigHeader).Error(0)
}

func (m *MockInvoiceService) invoice(args mock.Arguments) (*models.Invoice, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

// MockOpportunityService is a mock implementation of rest.OpportunityService
type MockOpportunityService struct {
	mock.Mock
}

func (m *MockOpportunityService) Create(ctx context.Context, in services.OpportunityInput, actorID string) (*models.Opportunity, error) {
	return m.opportunity(m.Called(ctx, in, actorID))
}

func (m *MockOpportunityService) Get(ctx context.Context, id string) (*models.Opportunity, error) {
	return m.opportunity(m.Called(ctx, id))
}

func (m *MockOpportunityService) List(ctx context.Context, filter ports.OpportunityFilter) ([]*models.Opportunity, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Opportunity), args.Error(1)
}

func (m *MockOpportunityService) Update(ctx context.Context, id string, in services.OpportunityInput) (*models.Opportunity, error) {
	return m.opportunity(m.Called(ctx, id, in))
}

func (m *MockOpportunityService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOpportunityService) MoveStage(ctx context.Context, id, stageID, actorID string) (*models.Opportunity, error) {
	return m.opportunity(m.Called(ctx, id, stageID, actorID))
}

func (m *MockOpportunityService) opportunity(args mock.Arguments) (*models.Opportunity, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Opportunity), args.Error(1)
}

// MockIntakeService is a mock implementation of rest.IntakeService
type MockIntakeService struct {
	mock.Mock
}

func (m *MockIntakeService) Submit(ctx context.Context, providedSecret string, form services.IntakeForm) (*services.IntakeResult, error) {
	args := m.Called(ctx, providedSecret, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.IntakeResult), args.Error(1)
}

// MockTaskService is a mock implementation of rest.TaskService
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTaskService) Create(ctx context.Context, in services.TaskInput, actorID string) (*models.Task, error) {
	return m.task(m.Called(ctx, in, actorID))
}

func (m *MockTaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	return m.task(m.Called(ctx, id))
}

func (m *MockTaskService) Complete(ctx context.Context, id, actorID string) (*models.Task, error) {
	return m.task(m.Called(ctx, id, actorID))
}

func (m *MockTaskService) Reopen(ctx context.Context, id string) (*models.Task, error) {
	return m.task(m.Called(ctx, id))
}

func (m *MockTaskService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockTaskService) task(args mock.Arguments) (*models.Task, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}
