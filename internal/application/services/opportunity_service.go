package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/events"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

// StageAutomation runs when an opportunity enters a stage
type StageAutomation interface {
	OnStageEntered(ctx context.Context, opp *models.Opportunity) (*StageEntry, error)
}

// OpportunityService manages opportunities and their movement through a pipeline
type OpportunityService struct {
	repo       ports.OpportunityRepository
	pipelines  ports.PipelineRepository
	contacts   ports.ContactRepository
	jobs       ports.JobRepository
	automation StageAutomation
	events     ports.EventPublisher
	log        zerolog.Logger
	now        func() time.Time
}

var _ StageMover = (*OpportunityService)(nil)

func NewOpportunityService(
	repo ports.OpportunityRepository,
	pipelines ports.PipelineRepository,
	contacts ports.ContactRepository,
	jobs ports.JobRepository,
	automation StageAutomation,
	bus ports.EventPublisher,
) *OpportunityService {
	return &OpportunityService{
		repo:       repo,
		pipelines:  pipelines,
		contacts:   contacts,
		jobs:       jobs,
		automation: automation,
		events:     bus,
		log:        logging.For("opportunities"),
		now:        time.Now,
	}
}

// OpportunityInput is used for create and partial update
type OpportunityInput struct {
	ContactID      string   `json:"contact_id"`
	PipelineID     string   `json:"pipeline_id"`
	StageID        string   `json:"stage_id"`
	Title          string   `json:"title"`
	PracticeArea   *string  `json:"practice_area"`
	EstimatedValue *float64 `json:"estimated_value"`
	OwnerID        *string  `json:"owner_id"`
	Source         *string  `json:"source"`
}

// Create stores an opportunity. Pipeline defaults to the default pipeline and stage to its first stage.
func (s *OpportunityService) Create(ctx context.Context, in OpportunityInput, actorID string) (*models.Opportunity, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.NewValidationError("title", "Title is required")
	}
	if in.ContactID == "" {
		return nil, errors.NewValidationError("contact_id", "Contact is required")
	}
	contact, err := s.contacts.FindByID(ctx, in.ContactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return nil, errors.NewNotFoundError("contact", in.ContactID)
	}

	pipeline, stage, err := s.resolvePlacement(ctx, in.PipelineID, in.StageID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	opp := &models.Opportunity{
		ID:               utils.GenerateID(),
		ContactID:        contact.ID,
		PipelineID:       pipeline.ID,
		StageID:          stage.ID,
		Title:            title,
		PracticeArea:     in.PracticeArea,
		OwnerID:          in.OwnerID,
		Source:           in.Source,
		StageEnteredAt:   now,
		CreatedDate:      now,
		LastModifiedDate: now,
	}
	if in.EstimatedValue != nil {
		if *in.EstimatedValue < 0 {
			return nil, errors.NewValidationError("estimated_value", "Estimated value must not be negative")
		}
		opp.EstimatedValue = *in.EstimatedValue
	}
	if opp.OwnerID == nil && actorID != "" && actorID != constants.SystemUserID {
		owner := actorID
		opp.OwnerID = &owner
	}
	if isClosingKind(stage.Kind) {
		opp.ClosedAt = &now
	}

	if err := s.repo.Create(ctx, opp); err != nil {
		return nil, fmt.Errorf("failed to create opportunity: %w", err)
	}
	s.log.Info().Str(logging.OPP_ID, opp.ID).Str("stage", stage.Name).Msg("💼 Opportunity created")

	publishQuietly(ctx, s.events, events.OpportunityCreated, events.StageChangedPayload{
		OpportunityID: opp.ID,
		PipelineID:    opp.PipelineID,
		ToStageID:     opp.StageID,
		ActorID:       actorID,
	})
	s.runAutomation(ctx, opp)
	return opp, nil
}

func (s *OpportunityService) Get(ctx context.Context, id string) (*models.Opportunity, error) {
	opp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load opportunity: %w", err)
	}
	if opp == nil {
		return nil, errors.NewNotFoundError("opportunity", id)
	}
	return opp, nil
}

func (s *OpportunityService) List(ctx context.Context, filter ports.OpportunityFilter) ([]*models.Opportunity, error) {
	filter.Limit = utils.ClampLimit(filter.Limit, constants.DefaultLimit, constants.DefaultMaxLimit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// Update edits descriptive fields. Pipeline and stage are changed with MoveStage.
func (s *OpportunityService) Update(ctx context.Context, id string, in OpportunityInput) (*models.Opportunity, error) {
	opp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.StageID != "" && in.StageID != opp.StageID {
		return nil, errors.NewValidationError("stage_id", "Use the move endpoint to change stage")
	}
	if t := strings.TrimSpace(in.Title); t != "" {
		opp.Title = t
	}
	if in.ContactID != "" && in.ContactID != opp.ContactID {
		c, err := s.contacts.FindByID(ctx, in.ContactID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, errors.NewNotFoundError("contact", in.ContactID)
		}
		opp.ContactID = c.ID
	}
	if in.PracticeArea != nil {
		opp.PracticeArea = utils.StringPtr(*in.PracticeArea)
	}
	if in.EstimatedValue != nil {
		if *in.EstimatedValue < 0 {
			return nil, errors.NewValidationError("estimated_value", "Estimated value must not be negative")
		}
		opp.EstimatedValue = *in.EstimatedValue
	}
	if in.OwnerID != nil {
		opp.OwnerID = utils.StringPtr(*in.OwnerID)
	}
	if in.Source != nil {
		opp.Source = utils.StringPtr(*in.Source)
	}
	opp.LastModifiedDate = s.now().UTC()
	if err := s.repo.Update(ctx, opp); err != nil {
		return nil, fmt.Errorf("failed to update opportunity: %w", err)
	}
	return opp, nil
}

// Delete removes the opportunity and cancels its scheduled automation
func (s *OpportunityService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if _, err := s.jobs.CancelPending(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel jobs: %w", err)
	}
	return s.repo.Delete(ctx, id)
}

// MoveStage moves the opportunity to stageID within its pipeline, resets the stage clock,
// publishes opportunity.stage_changed and runs stage automation. Moving to the current
// stage is a no-op.
func (s *OpportunityService) MoveStage(ctx context.Context, id, stageID, actorID string) (*models.Opportunity, error) {
	opp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stage, err := s.pipelines.FindStage(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage: %w", err)
	}
	if stage == nil {
		return nil, errors.NewNotFoundError("stage", stageID)
	}
	if stage.PipelineID != opp.PipelineID {
		return nil, errors.NewValidationError("stage_id", "Stage belongs to a different pipeline")
	}
	if stage.ID == opp.StageID {
		return opp, nil
	}

	now := s.now().UTC()
	var closedAt *time.Time
	if isClosingKind(stage.Kind) {
		closedAt = &now
	}
	if err := s.repo.UpdateStage(ctx, opp.ID, stage.ID, now, closedAt); err != nil {
		return nil, fmt.Errorf("failed to move opportunity: %w", err)
	}

	from := opp.StageID
	opp.StageID = stage.ID
	opp.StageEnteredAt = now
	opp.ClosedAt = closedAt
	opp.LastModifiedDate = now

	s.log.Info().Str(logging.OPP_ID, opp.ID).Str("from", from).Str("to", stage.ID).Str(logging.USER_ID, actorID).Msg("➡️ Opportunity moved")
	publishQuietly(ctx, s.events, events.OpportunityStageMoved, events.StageChangedPayload{
		OpportunityID: opp.ID,
		PipelineID:    opp.PipelineID,
		FromStageID:   from,
		ToStageID:     stage.ID,
		ActorID:       actorID,
	})
	s.runAutomation(ctx, opp)
	return opp, nil
}

// runAutomation applies stage entry automation. Failures are logged; the move stands.
func (s *OpportunityService) runAutomation(ctx context.Context, opp *models.Opportunity) {
	if s.automation == nil {
		return
	}
	if _, err := s.automation.OnStageEntered(ctx, opp); err != nil {
		s.log.Error().Err(err).Str(logging.OPP_ID, opp.ID).Msg("❌ Stage automation failed")
	}
}

func (s *OpportunityService) resolvePlacement(ctx context.Context, pipelineID, stageID string) (*models.Pipeline, *models.Stage, error) {
	var (
		pipeline *models.Pipeline
		err      error
	)
	if pipelineID == "" {
		pipeline, err = s.pipelines.FindDefaultPipeline(ctx)
	} else {
		pipeline, err = s.pipelines.FindPipeline(ctx, pipelineID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	if pipeline == nil {
		return nil, nil, errors.NewNotFoundError("pipeline", pipelineID)
	}

	if stageID != "" {
		stage, err := s.pipelines.FindStage(ctx, stageID)
		if err != nil {
			return nil, nil, err
		}
		if stage == nil {
			return nil, nil, errors.NewNotFoundError("stage", stageID)
		}
		if stage.PipelineID != pipeline.ID {
			return nil, nil, errors.NewValidationError("stage_id", "Stage belongs to a different pipeline")
		}
		return pipeline, stage, nil
	}

	stages, err := s.pipelines.ListStages(ctx, pipeline.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(stages) == 0 {
		return nil, nil, errors.NewValidationError("pipeline_id", "Pipeline has no stages")
	}
	first := stages[0]
	return pipeline, &first, nil
}
