package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/integrations/meta"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/metrics"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/signature"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

const (
	providerMeta    = "meta"
	webhookObjPage  = "page"
	webhookObjInsta = "instagram"
)

// StateSigner issues and checks OAuth state values
type StateSigner interface {
	IssueState(userID, provider, nonce string) (string, error)
	VerifyState(state, provider string) (string, error)
}

// InboundIngester stores inbound channel messages
type InboundIngester interface {
	IngestInbound(ctx context.Context, in InboundMessage) (*models.Message, bool, error)
}

// MetaService connects Facebook pages and ingests Messenger and Instagram webhooks
type MetaService struct {
	graph    ports.MetaGraph
	pages    ports.MetaPageRepository
	cipher   TokenCipher
	states   StateSigner
	ingester InboundIngester
	cfg      config.MetaConfig
	log      zerolog.Logger
	now      func() time.Time
}

// NewMetaService builds the service. graph is nil when the Meta app is not configured.
func NewMetaService(graph ports.MetaGraph, pages ports.MetaPageRepository, cipher TokenCipher, states StateSigner, ingester InboundIngester, cfg config.MetaConfig) *MetaService {
	return &MetaService{
		graph:    graph,
		pages:    pages,
		cipher:   cipher,
		states:   states,
		ingester: ingester,
		cfg:      cfg,
		log:      logging.For("meta"),
		now:      time.Now,
	}
}

// ConnectURL returns the OAuth dialog URL with a signed state bound to userID
func (s *MetaService) ConnectURL(userID string) (string, error) {
	if s.graph == nil {
		return "", errors.NewValidationError("meta", "Meta is not configured")
	}
	nonce, err := utils.RandomHex(16)
	if err != nil {
		return "", err
	}
	state, err := s.states.IssueState(userID, providerMeta, nonce)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return s.graph.DialogURL(state), nil
}

// HandleCallback completes the OAuth flow: exchanges the code for a long-lived user token and
// stores every page the user manages with its encrypted page token. Webhook subscription
// failures are logged and do not fail the connection.
func (s *MetaService) HandleCallback(ctx context.Context, state, code string) ([]*models.MetaPage, error) {
	if s.graph == nil {
		return nil, errors.NewValidationError("meta", "Meta is not configured")
	}
	userID, err := s.states.VerifyState(state, providerMeta)
	if err != nil {
		return nil, errors.NewUnauthorizedError("invalid or expired state")
	}
	if code == "" {
		return nil, errors.NewValidationError("code", "Authorization code is missing")
	}

	short, err := s.graph.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	long, err := s.graph.ExchangeLongLived(ctx, short)
	if err != nil {
		return nil, err
	}
	accounts, err := s.graph.ListPages(ctx, long)
	if err != nil {
		return nil, err
	}

	stored := make([]*models.MetaPage, 0, len(accounts))
	for _, acct := range accounts {
		enc, err := s.cipher.Encrypt(acct.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt page token: %w", err)
		}
		page := &models.MetaPage{
			ID:             utils.GenerateID(),
			PageID:         acct.ID,
			Name:           acct.Name,
			EncryptedToken: enc,
			ConnectedByID:  userID,
			CreatedDate:    s.now().UTC(),
		}
		if acct.InstagramAccountID != "" {
			page.InstagramAccountID = utils.StringPtr(acct.InstagramAccountID)
		}
		if err := s.pages.Upsert(ctx, page); err != nil {
			return nil, fmt.Errorf("failed to store page %s: %w", acct.ID, err)
		}
		// a reconnected page keeps its original row id
		if saved, err := s.pages.FindByPageID(ctx, acct.ID); err == nil && saved != nil {
			page = saved
		}

		if err := s.graph.SubscribePage(ctx, acct.ID, acct.AccessToken); err != nil {
			s.log.Warn().Err(err).Str("page_id", acct.ID).Msg("⚠️ Page webhook subscription failed")
		} else if err := s.pages.SetSubscribed(ctx, page.ID, true); err != nil {
			s.log.Warn().Err(err).Str("page_id", acct.ID).Msg("⚠️ Failed to record page subscription")
		} else {
			page.Subscribed = true
		}
		stored = append(stored, page)
	}

	s.log.Info().Str(logging.USER_ID, userID).Int("pages", len(stored)).Msg("🔗 Meta pages connected")
	return stored, nil
}

// VerifySubscription answers the hub.challenge handshake
func (s *MetaService) VerifySubscription(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || s.cfg.VerifyToken == "" || token != s.cfg.VerifyToken {
		return "", false
	}
	return challenge, true
}

// HandleWebhook checks the app-secret signature and ingests every message in the body.
// Individual ingestion failures are logged and skipped.
func (s *MetaService) HandleWebhook(ctx context.Context, body []byte, sigHeader string) (int, error) {
	if s.cfg.AppSecret == "" || !signature.Verify(s.cfg.AppSecret, body, sigHeader) {
		metrics.WebhookEvents.WithLabelValues(providerMeta, metrics.ResultRejected).Inc()
		return 0, errors.NewUnauthorizedError("invalid signature")
	}
	object, msgs, err := meta.ParseWebhook(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(providerMeta, metrics.ResultRejected).Inc()
		return 0, errors.NewValidationError("body", "Malformed webhook payload")
	}
	if object != webhookObjPage && object != webhookObjInsta {
		metrics.WebhookEvents.WithLabelValues(providerMeta, metrics.ResultIgnored).Inc()
		return 0, nil
	}

	ingested := 0
	for _, m := range msgs {
		in := InboundMessage{
			Channel:    constants.ChannelMessenger,
			SenderID:   m.SenderID,
			ExternalID: m.MessageID,
			Text:       m.Text,
		}
		if m.TimestampMs > 0 {
			in.At = time.UnixMilli(m.TimestampMs)
		}
		if object == webhookObjInsta {
			in.Channel = constants.ChannelInstagram
			if page, err := s.pages.FindByInstagramID(ctx, m.AccountID); err == nil && page != nil {
				in.PageID = utils.StringPtr(page.PageID)
			}
		} else {
			in.PageID = utils.StringPtr(m.AccountID)
		}

		_, created, err := s.ingester.IngestInbound(ctx, in)
		if err != nil {
			s.log.Error().Err(err).Str(logging.CHANNEL, in.Channel).Str("mid", m.MessageID).Msg("❌ Failed to ingest message")
			metrics.WebhookEvents.WithLabelValues(providerMeta, metrics.ResultFailure).Inc()
			continue
		}
		if created {
			ingested++
		}
		metrics.WebhookEvents.WithLabelValues(providerMeta, metrics.ResultSuccess).Inc()
	}
	return ingested, nil
}

func (s *MetaService) ListPages(ctx context.Context) ([]*models.MetaPage, error) {
	return s.pages.List(ctx)
}

func (s *MetaService) DisconnectPage(ctx context.Context, id string) error {
	page, err := s.pages.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil {
		return errors.NewNotFoundError("page", id)
	}
	if err := s.pages.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("page_id", page.PageID).Msg("🔌 Meta page disconnected")
	return nil
}
