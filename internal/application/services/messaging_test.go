package services

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/events"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	apperrors "github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/signature"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

const (
	testAppSecret   = "app-secret"
	testVerifyToken = "verify-me"
	testFromNumber  = "+15550100000"
)

type messagingFixture struct {
	contacts      *memContacts
	convs         *memConversations
	pages         *memPages
	calls         *memCalls
	bus           *recordingBus
	graph         *MockMetaGraph
	rc            *MockRingCentral
	issuer        *auth.Issuer
	conversations *ConversationService
	meta          *MetaService
	ringcentral   *RingCentralService
}

func newMessagingFixture(t *testing.T) *messagingFixture {
	t.Helper()
	f := &messagingFixture{
		contacts: newMemContacts(
			&models.Contact{ID: "c-fb", FirstName: "Facebook", LastName: "Friend", MessengerPSID: strp("PSID1")},
			&models.Contact{ID: "c-sms", FirstName: "Text", LastName: "Person", Phone: strp("+15550101234")},
			&models.Contact{ID: "c-none", FirstName: "No", LastName: "Channels"},
		),
		convs: newMemConversations(),
		pages: newMemPages(&models.MetaPage{
			ID: "row-1", PageID: "PAGE1", Name: "Law Firm", EncryptedToken: "enc:page-token",
			InstagramAccountID: strp("IG1"), Subscribed: true,
		}),
		calls:  newMemCalls(),
		bus:    &recordingBus{},
		graph:  &MockMetaGraph{},
		rc:     &MockRingCentral{},
		issuer: auth.NewIssuer(testJWTSecret, time.Hour),
	}
	people := NewContactService(f.contacts, f.bus)
	f.conversations = NewConversationService(ConversationDeps{
		Repo:       f.convs,
		Contacts:   f.contacts,
		Resolver:   people,
		Pages:      f.pages,
		Meta:       f.graph,
		RC:         f.rc,
		Cipher:     plainCipher{},
		FromNumber: testFromNumber,
		Events:     f.bus,
	})
	f.meta = NewMetaService(f.graph, f.pages, plainCipher{}, f.issuer, f.conversations, config.MetaConfig{
		AppID: "app", AppSecret: testAppSecret, VerifyToken: testVerifyToken,
	})
	f.ringcentral = NewRingCentralService(RingCentralDeps{
		RC:            f.rc,
		Contacts:      f.contacts,
		Resolver:      people,
		Conversations: f.convs,
		Sender:        f.conversations,
		Ingester:      f.conversations,
		Calls:         f.calls,
		Config:        config.RingCentralConfig{FromNumber: testFromNumber, VerificationToken: "rc-token"},
	})
	return f
}

func TestConversationService_IngestInbound(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()
	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	msg, inserted, err := f.conversations.IngestInbound(ctx, InboundMessage{
		Channel: constants.ChannelMessenger, SenderID: "PSID-NEW", DisplayName: "Pat Doe",
		PageID: strp("PAGE1"), ExternalID: "mid.1", Text: "Do you handle wills?", At: at,
	})
	require.NoError(t, err)
	require.True(t, inserted)
	assert.Equal(t, constants.DirectionInbound, msg.Direction)
	assert.Equal(t, at, msg.CreatedAt)

	contact, err := f.contacts.FindByChannelID(ctx, constants.ChannelMessenger, "PSID-NEW")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "Pat", contact.FirstName)

	conv, err := f.convs.FindByID(ctx, msg.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, "Do you handle wills?", *conv.LastPreview)

	received := f.bus.ofType(events.MessageReceived)
	require.Len(t, received, 1)
	assert.Equal(t, contact.ID, received[0].Payload.(events.MessageReceivedPayload).ContactID)

	// Redelivery of the same message id is dropped
	dup, inserted, err := f.conversations.IngestInbound(ctx, InboundMessage{
		Channel: constants.ChannelMessenger, SenderID: "PSID-NEW", ExternalID: "mid.1", Text: "Do you handle wills?",
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Nil(t, dup)
	assert.Len(t, f.bus.ofType(events.MessageReceived), 1)

	require.NoError(t, f.conversations.MarkRead(ctx, conv.ID))
	thread, err := f.conversations.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, thread.Conversation.UnreadCount)
	assert.Equal(t, contact.ID, thread.Conversation.Contact.ID)
	assert.Len(t, thread.Messages, 1)

	_, _, err = f.conversations.IngestInbound(ctx, InboundMessage{Channel: "fax", SenderID: "x"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestConversationService_SendMessenger(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()
	conv, err := f.convs.FindOrCreate(ctx, "c-fb", constants.ChannelMessenger, strp("PAGE1"))
	require.NoError(t, err)

	f.graph.On("SendMessage", mock.Anything, "page-token", "PSID1", "We do!").Return("mid.out", nil).Once()

	msg, err := f.conversations.SendMessage(ctx, conv.ID, " We do! ", "u1")
	require.NoError(t, err)
	assert.Equal(t, constants.MessageStatusSent, msg.Status)
	assert.Equal(t, "mid.out", *msg.ExternalID)
	assert.Equal(t, "u1", *msg.SentByID)
	f.graph.AssertExpectations(t)
}

func TestConversationService_SendFailureIsStored(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()
	conv, err := f.convs.FindOrCreate(ctx, "c-sms", constants.ChannelSMS, nil)
	require.NoError(t, err)

	upstream := apperrors.NewUpstreamError("ringcentral", 503, "unavailable")
	f.rc.On("SendSMS", mock.Anything, testFromNumber, "+15550101234", "Call us").Return("", upstream).Once()

	msg, err := f.conversations.SendMessage(ctx, conv.ID, "Call us", "u1")
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstream(err))
	require.NotNil(t, msg)
	assert.Equal(t, constants.MessageStatusFailed, msg.Status)
	assert.NotNil(t, msg.Error)

	stored, _ := f.convs.ListMessages(ctx, conv.ID, 10)
	require.Len(t, stored, 1)
	assert.Equal(t, constants.MessageStatusFailed, stored[0].Status)
}

func TestConversationService_SendValidation(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()
	conv, err := f.convs.FindOrCreate(ctx, "c-none", constants.ChannelInstagram, nil)
	require.NoError(t, err)

	_, err = f.conversations.SendMessage(ctx, conv.ID, "hello", "u1")
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.conversations.SendMessage(ctx, conv.ID, "   ", "u1")
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.conversations.SendMessage(ctx, "missing", "hello", "u1")
	assert.True(t, apperrors.IsNotFound(err))

	stored, _ := f.convs.ListMessages(ctx, conv.ID, 10)
	assert.Empty(t, stored)

	// Channel without a configured provider
	bare := NewConversationService(ConversationDeps{Repo: f.convs, Contacts: f.contacts, Pages: f.pages})
	smsConv, err := f.convs.FindOrCreate(ctx, "c-sms", constants.ChannelSMS, nil)
	require.NoError(t, err)
	_, err = bare.SendMessage(ctx, smsConv.ID, "hello", "u1")
	assert.True(t, apperrors.IsValidation(err))
}

const pageWebhook = `{
  "object": "page",
  "entry": [{
    "id": "PAGE1",
    "time": 1714564800000,
    "messaging": [
      {"sender": {"id": "PSID1"}, "recipient": {"id": "PAGE1"}, "timestamp": 1714564800000,
       "message": {"mid": "mid.in.1", "text": "Hello there"}},
      {"sender": {"id": "PAGE1"}, "recipient": {"id": "PSID1"}, "timestamp": 1714564801000,
       "message": {"mid": "mid.echo", "text": "Our reply", "is_echo": true}}
    ]
  }]
}`

const instagramWebhook = `{
  "object": "instagram",
  "entry": [{
    "id": "IG1",
    "messaging": [
      {"sender": {"id": "IGSID9"}, "recipient": {"id": "IG1"}, "timestamp": 1714564800000,
       "message": {"mid": "ig.mid.1", "text": "Saw your post"}}
    ]
  }]
}`

func TestMetaService_HandleWebhook(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	t.Run("bad signature", func(t *testing.T) {
		_, err := f.meta.HandleWebhook(ctx, []byte(pageWebhook), "sha256=deadbeef")
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("page messages skip echoes", func(t *testing.T) {
		body := []byte(pageWebhook)
		n, err := f.meta.HandleWebhook(ctx, body, "sha256="+signature.Sign(testAppSecret, body))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		conv, err := f.convs.FindOrCreate(ctx, "c-fb", constants.ChannelMessenger, nil)
		require.NoError(t, err)
		assert.Equal(t, "PAGE1", utils.Deref(conv.PageID))
		msgs, _ := f.convs.ListMessages(ctx, conv.ID, 10)
		require.Len(t, msgs, 1)
		assert.Equal(t, "Hello there", msgs[0].Body)

		// Meta retries deliver the same mid again
		n, err = f.meta.HandleWebhook(ctx, body, signature.Sign(testAppSecret, body))
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("instagram resolves the page", func(t *testing.T) {
		body := []byte(instagramWebhook)
		n, err := f.meta.HandleWebhook(ctx, body, signature.Sign(testAppSecret, body))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		contact, _ := f.contacts.FindByChannelID(ctx, constants.ChannelInstagram, "IGSID9")
		require.NotNil(t, contact)
		conv, _ := f.convs.FindOrCreate(ctx, contact.ID, constants.ChannelInstagram, nil)
		assert.Equal(t, "PAGE1", utils.Deref(conv.PageID))
	})

	t.Run("other objects are ignored", func(t *testing.T) {
		body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
		n, err := f.meta.HandleWebhook(ctx, body, signature.Sign(testAppSecret, body))
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("malformed body", func(t *testing.T) {
		body := []byte(`{not json`)
		_, err := f.meta.HandleWebhook(ctx, body, signature.Sign(testAppSecret, body))
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestMetaService_VerifySubscription(t *testing.T) {
	f := newMessagingFixture(t)

	challenge, ok := f.meta.VerifySubscription("subscribe", testVerifyToken, "12345")
	assert.True(t, ok)
	assert.Equal(t, "12345", challenge)

	_, ok = f.meta.VerifySubscription("subscribe", "wrong", "12345")
	assert.False(t, ok)
	_, ok = f.meta.VerifySubscription("unsubscribe", testVerifyToken, "12345")
	assert.False(t, ok)
}

func TestMetaService_HandleCallback(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	_, err := f.meta.HandleCallback(ctx, "forged-state", "code")
	assert.True(t, apperrors.IsUnauthorized(err))

	state, err := f.issuer.IssueState("u1", providerMeta, "nonce")
	require.NoError(t, err)

	f.graph.On("ExchangeCode", mock.Anything, "auth-code").Return("short-token", nil).Once()
	f.graph.On("ExchangeLongLived", mock.Anything, "short-token").Return("long-token", nil).Once()
	f.graph.On("ListPages", mock.Anything, "long-token").Return([]ports.MetaPageAccount{
		{ID: "PAGE1", Name: "Law Firm (renamed)", AccessToken: "new-page-token", InstagramAccountID: "IG1"},
		{ID: "PAGE2", Name: "Second Office", AccessToken: "page2-token"},
	}, nil).Once()
	f.graph.On("SubscribePage", mock.Anything, "PAGE1", "new-page-token").Return(nil).Once()
	f.graph.On("SubscribePage", mock.Anything, "PAGE2", "page2-token").Return(stderrors.New("permission missing")).Once()

	pages, err := f.meta.HandleCallback(ctx, state, "auth-code")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	f.graph.AssertExpectations(t)

	assert.Equal(t, "row-1", pages[0].ID, "reconnecting keeps the existing row")
	assert.Equal(t, "Law Firm (renamed)", pages[0].Name)
	assert.Equal(t, "enc:new-page-token", pages[0].EncryptedToken)
	assert.True(t, pages[0].Subscribed)

	assert.Equal(t, "PAGE2", pages[1].PageID)
	assert.Equal(t, "u1", pages[1].ConnectedByID)
	assert.False(t, pages[1].Subscribed)

	all, err := f.meta.ListPages(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, f.meta.DisconnectPage(ctx, pages[1].ID))
	assert.True(t, apperrors.IsNotFound(f.meta.DisconnectPage(ctx, pages[1].ID)))
}

func TestMetaService_NotConfigured(t *testing.T) {
	svc := NewMetaService(nil, newMemPages(), plainCipher{}, auth.NewIssuer(testJWTSecret, time.Hour), nil, config.MetaConfig{})
	_, err := svc.ConnectURL("u1")
	assert.True(t, apperrors.IsValidation(err))

	body := []byte(pageWebhook)
	_, err = svc.HandleWebhook(context.Background(), body, signature.Sign("", body))
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestRingCentralService_SendSMSToNewNumber(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	f.rc.On("SendSMS", mock.Anything, testFromNumber, "+15550107777", "Your appointment is confirmed").
		Return("rc-msg-1", nil).Once()

	msg, err := f.ringcentral.SendSMS(ctx, SMSInput{To: "(555) 010-7777", Text: "Your appointment is confirmed"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, constants.MessageStatusSent, msg.Status)
	f.rc.AssertExpectations(t)

	contact, _ := f.contacts.FindByPhone(ctx, "+15550107777")
	require.NotNil(t, contact)
	assert.Len(t, f.bus.ofType(events.ContactCreated), 1)

	_, err = f.ringcentral.SendSMS(ctx, SMSInput{ContactID: "c-none", Text: "hi"}, "u1")
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.ringcentral.SendSMS(ctx, SMSInput{To: "nope", Text: "hi"}, "u1")
	assert.True(t, apperrors.IsValidation(err))
}

func TestRingCentralService_Call(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()
	f.rc.On("RingOut", mock.Anything, testFromNumber, "+15550101234").Return("ringout-1", nil).Once()

	id, err := f.ringcentral.Call(ctx, CallInput{ContactID: "c-sms"})
	require.NoError(t, err)
	assert.Equal(t, "ringout-1", id)

	_, err = f.ringcentral.Call(ctx, CallInput{ContactID: "c-none"})
	assert.True(t, apperrors.IsValidation(err))
	f.rc.AssertExpectations(t)
}

const inboundSMSNotification = `{
  "event": "/restapi/v1.0/account/~/extension/~/message-store/instant?type=SMS",
  "body": {
    "id": 9001,
    "type": "SMS",
    "direction": "Inbound",
    "from": {"phoneNumber": "+15550101234"},
    "to": [{"phoneNumber": "+15550100000"}],
    "subject": "Running late",
    "creationTime": "2025-05-01T12:00:00Z"
  }
}`

func TestRingCentralService_HandleWebhook(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	assert.True(t, apperrors.IsUnauthorized(f.ringcentral.HandleWebhook(ctx, []byte(inboundSMSNotification), "wrong")))

	require.NoError(t, f.ringcentral.HandleWebhook(ctx, []byte(inboundSMSNotification), "rc-token"))
	conv, err := f.convs.FindOrCreate(ctx, "c-sms", constants.ChannelSMS, nil)
	require.NoError(t, err)
	msgs, _ := f.convs.ListMessages(ctx, conv.ID, 10)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Running late", msgs[0].Body)
	assert.Equal(t, "9001", *msgs[0].ExternalID)

	outbound := `{"body":{"id":"9002","type":"SMS","direction":"Outbound","subject":"x"}}`
	require.NoError(t, f.ringcentral.HandleWebhook(ctx, []byte(outbound), "rc-token"))
	msgs, _ = f.convs.ListMessages(ctx, conv.ID, 10)
	assert.Len(t, msgs, 1)

	assert.True(t, apperrors.IsValidation(f.ringcentral.HandleWebhook(ctx, []byte(`nope`), "rc-token")))
}

func TestRingCentralService_SyncCallLogs(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 8, 9, 0, 0, 0, time.UTC)
	f.ringcentral.now = fixedClock(now)

	records := []ports.CallRecord{
		{ID: "call-1", Direction: "Inbound", From: "+1 (555) 010-1234", To: testFromNumber, Result: "Accepted", DurationSec: 120, StartTime: now.Add(-2 * time.Hour)},
		{ID: "call-2", Direction: "Outbound", From: testFromNumber, To: "+15550109999", Result: "No Answer", StartTime: now.Add(-time.Hour)},
	}
	f.rc.On("CallLog", mock.Anything, now.Add(-callLogLookback)).Return(records, nil).Once()

	added, err := f.ringcentral.SyncCallLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	logs, err := f.ringcentral.ListCallLogs(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	var linked int
	for _, l := range logs {
		if l.ContactID != nil {
			assert.Equal(t, "c-sms", *l.ContactID)
			assert.Equal(t, constants.DirectionInbound, l.Direction)
			linked++
		}
	}
	assert.Equal(t, 1, linked)

	// The next sync resumes from the newest stored call
	latest := now.Add(-time.Hour)
	f.calls.latest = &latest
	f.rc.On("CallLog", mock.Anything, latest).Return(records[1:], nil).Once()
	added, err = f.ringcentral.SyncCallLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	f.rc.AssertExpectations(t)
}
