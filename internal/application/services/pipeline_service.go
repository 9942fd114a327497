package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/expression"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

const boardLimit = 1000

// PipelineService manages pipelines, stages and stage task templates, and renders the board
type PipelineService struct {
	repo   ports.PipelineRepository
	opps   ports.OpportunityRepository
	engine *expression.Engine
	log    zerolog.Logger
	now    func() time.Time
}

func NewPipelineService(repo ports.PipelineRepository, opps ports.OpportunityRepository, engine *expression.Engine) *PipelineService {
	return &PipelineService{repo: repo, opps: opps, engine: engine, log: logging.For("pipelines"), now: time.Now}
}

// ListPipelines returns every pipeline with its stages
func (s *PipelineService) ListPipelines(ctx context.Context) ([]*models.Pipeline, error) {
	pipelines, err := s.repo.ListPipelines(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pipelines {
		stages, err := s.repo.ListStages(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Stages = stages
	}
	return pipelines, nil
}

// GetPipeline returns a pipeline with stages and their templates. An empty id means the default pipeline.
func (s *PipelineService) GetPipeline(ctx context.Context, id string) (*models.Pipeline, error) {
	var (
		p   *models.Pipeline
		err error
	)
	if id == "" {
		p, err = s.repo.FindDefaultPipeline(ctx)
	} else {
		p, err = s.repo.FindPipeline(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	if p == nil {
		return nil, errors.NewNotFoundError("pipeline", id)
	}

	stages, err := s.repo.ListStages(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for i := range stages {
		templates, err := s.repo.ListTemplates(ctx, stages[i].ID)
		if err != nil {
			return nil, err
		}
		stages[i].Templates = templates
	}
	p.Stages = stages
	return p, nil
}

// Board groups the pipeline's opportunities by stage
func (s *PipelineService) Board(ctx context.Context, pipelineID string) (*models.Board, error) {
	p, err := s.GetPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	opps, err := s.opps.List(ctx, ports.OpportunityFilter{PipelineID: p.ID, Limit: boardLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to load opportunities: %w", err)
	}

	byStage := make(map[string][]models.Opportunity, len(p.Stages))
	for _, o := range opps {
		byStage[o.StageID] = append(byStage[o.StageID], *o)
	}

	board := &models.Board{Pipeline: *p, Columns: make([]models.BoardColumn, 0, len(p.Stages))}
	board.Pipeline.Stages = nil
	for _, st := range p.Stages {
		col := models.BoardColumn{Stage: st, Opportunities: byStage[st.ID]}
		if col.Opportunities == nil {
			col.Opportunities = []models.Opportunity{}
		}
		board.Columns = append(board.Columns, col)
	}
	return board, nil
}

// StageInput creates or edits a stage
type StageInput struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Position *int   `json:"position"`
}

// PipelineInput creates a pipeline with its stages
type PipelineInput struct {
	Name      string       `json:"name"`
	IsDefault bool         `json:"is_default"`
	Stages    []StageInput `json:"stages"`
}

// CreatePipeline stores a pipeline. A "Did Not Hire" stage is appended when none is given.
func (s *PipelineService) CreatePipeline(ctx context.Context, in PipelineInput) (*models.Pipeline, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.NewValidationError("name", "Pipeline name is required")
	}

	stages := in.Stages
	hasDNH := false
	for _, st := range stages {
		if st.Kind == constants.StageKindDidNotHire {
			hasDNH = true
		}
	}
	if !hasDNH {
		stages = append(stages, StageInput{Name: constants.DidNotHireStageName, Kind: constants.StageKindDidNotHire})
	}

	p := &models.Pipeline{ID: utils.GenerateID(), Name: name, IsDefault: in.IsDefault, CreatedDate: s.now().UTC()}
	if err := s.repo.CreatePipeline(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	for i, stageIn := range stages {
		st, err := newStage(p.ID, stageIn, i)
		if err != nil {
			return nil, err
		}
		if err := s.repo.CreateStage(ctx, st); err != nil {
			return nil, fmt.Errorf("failed to create stage: %w", err)
		}
		p.Stages = append(p.Stages, *st)
	}
	s.log.Info().Str("pipeline_id", p.ID).Int("stages", len(p.Stages)).Msg("🗂️ Pipeline created")
	return p, nil
}

func (s *PipelineService) CreateStage(ctx context.Context, pipelineID string, in StageInput) (*models.Stage, error) {
	p, err := s.repo.FindPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.NewNotFoundError("pipeline", pipelineID)
	}
	existing, err := s.repo.ListStages(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if in.Kind == constants.StageKindDidNotHire {
		for _, st := range existing {
			if st.Kind == constants.StageKindDidNotHire {
				return nil, errors.NewConflictError("stage", "kind", constants.StageKindDidNotHire)
			}
		}
	}
	st, err := newStage(pipelineID, in, len(existing))
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateStage(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to create stage: %w", err)
	}
	return st, nil
}

func (s *PipelineService) UpdateStage(ctx context.Context, id string, in StageInput) (*models.Stage, error) {
	st, err := s.findStage(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		st.Name = name
	}
	if in.Kind != "" && in.Kind != st.Kind {
		if st.Kind == constants.StageKindDidNotHire {
			return nil, errors.NewValidationError("kind", "The Did Not Hire stage cannot change kind")
		}
		if in.Kind == constants.StageKindDidNotHire {
			return nil, errors.NewConflictError("stage", "kind", constants.StageKindDidNotHire)
		}
		if !isStageKind(in.Kind) {
			return nil, errors.NewValidationError("kind", fmt.Sprintf("Unknown stage kind %q", in.Kind))
		}
		st.Kind = in.Kind
	}
	if in.Position != nil {
		st.Position = *in.Position
	}
	if err := s.repo.UpdateStage(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to update stage: %w", err)
	}
	return st, nil
}

// DeleteStage removes an empty stage. The Did Not Hire stage is permanent.
func (s *PipelineService) DeleteStage(ctx context.Context, id string) error {
	st, err := s.findStage(ctx, id)
	if err != nil {
		return err
	}
	if st.Kind == constants.StageKindDidNotHire {
		return errors.NewValidationError("", "The Did Not Hire stage cannot be deleted")
	}
	opps, err := s.opps.List(ctx, ports.OpportunityFilter{StageID: id, Limit: 1})
	if err != nil {
		return err
	}
	if len(opps) > 0 {
		return errors.NewValidationError("", "Move the opportunities out of this stage before deleting it")
	}
	return s.repo.DeleteStage(ctx, id)
}

// TemplateInput creates or edits a stage task template
type TemplateInput struct {
	Title        string              `json:"title"`
	Description  *string             `json:"description"`
	Duration     domain.TaskDuration `json:"duration"`
	Position     *int                `json:"position"`
	Condition    *string             `json:"condition"`
	AssigneeRole *string             `json:"assignee_role"`
}

func (s *PipelineService) CreateTemplate(ctx context.Context, stageID string, in TemplateInput) (*models.TaskTemplate, error) {
	if _, err := s.findStage(ctx, stageID); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListTemplates(ctx, stageID)
	if err != nil {
		return nil, err
	}

	t := &models.TaskTemplate{ID: utils.GenerateID(), StageID: stageID, Position: len(existing)}
	if err := s.applyTemplateInput(t, in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return t, nil
}

func (s *PipelineService) UpdateTemplate(ctx context.Context, id string, in TemplateInput) (*models.TaskTemplate, error) {
	t, err := s.repo.FindTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewNotFoundError("task template", id)
	}
	if in.Title == "" {
		in.Title = t.Title
	}
	if in.Duration.Unit == "" {
		in.Duration = domain.TaskDuration{Value: t.DurationValue, Unit: t.DurationUnit}
	}
	if err := s.applyTemplateInput(t, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return t, nil
}

func (s *PipelineService) DeleteTemplate(ctx context.Context, id string) error {
	t, err := s.repo.FindTemplate(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return errors.NewNotFoundError("task template", id)
	}
	return s.repo.DeleteTemplate(ctx, id)
}

func (s *PipelineService) applyTemplateInput(t *models.TaskTemplate, in TemplateInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return errors.NewValidationError("title", "Title is required")
	}
	if err := in.Duration.Validate(); err != nil {
		return errors.NewValidationError("duration", err.Error())
	}
	if in.Condition != nil {
		cond := strings.TrimSpace(*in.Condition)
		sample := models.Opportunity{StageEnteredAt: s.now(), CreatedDate: s.now()}
		if err := s.engine.Validate(cond, sample.ConditionEnv()); err != nil {
			return errors.NewValidationError("condition", err.Error())
		}
		t.Condition = utils.StringPtr(cond)
	}
	if in.AssigneeRole != nil {
		role := strings.TrimSpace(*in.AssigneeRole)
		if role != "" && !constants.IsValidRole(role) {
			return errors.NewValidationError("assignee_role", fmt.Sprintf("Unknown role %q", role))
		}
		t.AssigneeRole = utils.StringPtr(role)
	}
	if in.Description != nil {
		t.Description = utils.StringPtr(*in.Description)
	}
	if in.Position != nil {
		t.Position = *in.Position
	}
	t.Title = title
	t.DurationValue = in.Duration.Value
	t.DurationUnit = in.Duration.Unit
	return nil
}

func (s *PipelineService) findStage(ctx context.Context, id string) (*models.Stage, error) {
	st, err := s.repo.FindStage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage: %w", err)
	}
	if st == nil {
		return nil, errors.NewNotFoundError("stage", id)
	}
	return st, nil
}

func newStage(pipelineID string, in StageInput, position int) (*models.Stage, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.NewValidationError("name", "Stage name is required")
	}
	kind := in.Kind
	if kind == "" {
		kind = constants.StageKindOpen
	}
	if !isStageKind(kind) {
		return nil, errors.NewValidationError("kind", fmt.Sprintf("Unknown stage kind %q", kind))
	}
	if in.Position != nil {
		position = *in.Position
	}
	return &models.Stage{ID: utils.GenerateID(), PipelineID: pipelineID, Name: name, Kind: kind, Position: position}, nil
}

func isStageKind(kind string) bool {
	switch kind {
	case constants.StageKindOpen, constants.StageKindWon, constants.StageKindLost, constants.StageKindDidNotHire:
		return true
	}
	return false
}

// isClosingKind reports whether entering a stage of this kind closes the opportunity
func isClosingKind(kind string) bool {
	return kind == constants.StageKindWon || kind == constants.StageKindLost || kind == constants.StageKindDidNotHire
}
