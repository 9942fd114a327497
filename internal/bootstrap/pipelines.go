package bootstrap

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

//go:embed pipelines.json
var pipelinesJSON []byte

type pipelineSeed struct {
	Name   string `json:"name"`
	Stages []struct {
		Name      string `json:"name"`
		Kind      string `json:"kind"`
		Templates []struct {
			Title        string              `json:"title"`
			Duration     domain.TaskDuration `json:"duration"`
			Condition    string              `json:"condition,omitempty"`
			AssigneeRole string              `json:"assignee_role,omitempty"`
		} `json:"templates"`
	} `json:"stages"`
}

// InitializeDefaultPipeline seeds the intake pipeline on an empty database
func InitializeDefaultPipeline(ctx context.Context, repo ports.PipelineRepository) (*models.Pipeline, error) {
	existing, err := repo.FindDefaultPipeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up default pipeline: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	var seed pipelineSeed
	if err := json.Unmarshal(pipelinesJSON, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse pipelines.json: %w", err)
	}

	log.Info().Str("pipeline", seed.Name).Msg("🌱 Seeding default pipeline")

	pipeline := &models.Pipeline{
		ID:          utils.GenerateID(),
		Name:        seed.Name,
		IsDefault:   true,
		CreatedDate: time.Now().UTC(),
	}
	if err := repo.CreatePipeline(ctx, pipeline); err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	for i, s := range seed.Stages {
		stage := models.Stage{
			ID:         utils.GenerateID(),
			PipelineID: pipeline.ID,
			Name:       s.Name,
			Kind:       s.Kind,
			Position:   i,
		}
		if err := repo.CreateStage(ctx, &stage); err != nil {
			return nil, fmt.Errorf("failed to create stage %s: %w", s.Name, err)
		}

		for j, t := range s.Templates {
			if err := t.Duration.Validate(); err != nil {
				return nil, fmt.Errorf("template %q: %w", t.Title, err)
			}
			tmpl := models.TaskTemplate{
				ID:            utils.GenerateID(),
				StageID:       stage.ID,
				Title:         t.Title,
				DurationValue: t.Duration.Value,
				DurationUnit:  t.Duration.Unit,
				Position:      j,
				Condition:     utils.StringPtr(t.Condition),
				AssigneeRole:  utils.StringPtr(t.AssigneeRole),
			}
			if err := repo.CreateTemplate(ctx, &tmpl); err != nil {
				return nil, fmt.Errorf("failed to create template %s: %w", t.Title, err)
			}
			stage.Templates = append(stage.Templates, tmpl)
		}
		pipeline.Stages = append(pipeline.Stages, stage)
	}

	if !hasDidNotHireStage(pipeline.Stages) {
		log.Warn().Msg("⚠️  Seeded pipeline has no '" + constants.DidNotHireStageName + "' stage")
	}
	return pipeline, nil
}

func hasDidNotHireStage(stages []models.Stage) bool {
	for _, s := range stages {
		if s.Kind == constants.StageKindDidNotHire {
			return true
		}
	}
	return false
}
