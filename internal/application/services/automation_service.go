package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/expression"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/metrics"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

const sweepBatchSize = 100

// StageMover moves an opportunity to another stage, running stage entry automation
type StageMover interface {
	MoveStage(ctx context.Context, id, stageID, actorID string) (*models.Opportunity, error)
}

// AutomationService creates template tasks when an opportunity enters a stage and
// runs the deferred "Did Not Hire" move once its terminal task is overdue.
type AutomationService struct {
	pipelines ports.PipelineRepository
	tasks     ports.TaskRepository
	jobs      ports.JobRepository
	opps      ports.OpportunityRepository
	engine    *expression.Engine
	grace     time.Duration
	mover     StageMover
	log       zerolog.Logger
	now       func() time.Time
}

func NewAutomationService(
	pipelines ports.PipelineRepository,
	tasks ports.TaskRepository,
	jobs ports.JobRepository,
	opps ports.OpportunityRepository,
	engine *expression.Engine,
	grace time.Duration,
) *AutomationService {
	return &AutomationService{
		pipelines: pipelines,
		tasks:     tasks,
		jobs:      jobs,
		opps:      opps,
		engine:    engine,
		grace:     grace,
		log:       logging.For("automation"),
		now:       time.Now,
	}
}

// SetStageMover injects the opportunity service, which itself depends on automation
func (s *AutomationService) SetStageMover(m StageMover) {
	s.mover = m
}

// StageEntry is what entering a stage produced
type StageEntry struct {
	Tasks []*models.Task       `json:"tasks"`
	Job   *models.ScheduledJob `json:"job,omitempty"`
}

// OnStageEntered cancels pending jobs for the opportunity, creates the stage's template tasks
// due relative to stage entry, and schedules the Did Not Hire move when the last created task
// is the sentinel.
func (s *AutomationService) OnStageEntered(ctx context.Context, opp *models.Opportunity) (*StageEntry, error) {
	cancelled, err := s.jobs.CancelPending(ctx, opp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel pending jobs: %w", err)
	}
	if cancelled > 0 {
		s.log.Debug().Str(logging.OPP_ID, opp.ID).Int64("cancelled", cancelled).Msg("Cancelled pending jobs")
	}

	templates, err := s.pipelines.ListTemplates(ctx, opp.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task templates: %w", err)
	}

	entry := &StageEntry{Tasks: make([]*models.Task, 0, len(templates))}
	env := opp.ConditionEnv()
	for _, tpl := range templates {
		ok, err := s.engine.EvaluateBool(utils.Deref(tpl.Condition), env)
		if err != nil {
			s.log.Warn().Err(err).Str("template_id", tpl.ID).Msg("⚠️ Template condition failed, skipping task")
			continue
		}
		if !ok {
			continue
		}

		due, err := domain.TaskDuration{Value: tpl.DurationValue, Unit: tpl.DurationUnit}.DueFrom(opp.StageEnteredAt)
		if err != nil {
			s.log.Warn().Err(err).Str("template_id", tpl.ID).Msg("⚠️ Template duration invalid, skipping task")
			continue
		}

		templateID, stageID, oppID := tpl.ID, opp.StageID, opp.ID
		contactID := opp.ContactID
		task := &models.Task{
			ID:            utils.GenerateID(),
			OpportunityID: &oppID,
			ContactID:     &contactID,
			StageID:       &stageID,
			TemplateID:    &templateID,
			Title:         tpl.Title,
			Description:   tpl.Description,
			AssigneeID:    opp.OwnerID,
			Status:        constants.TaskStatusOpen,
			DueAt:         &due,
			CreatedDate:   s.now().UTC(),
		}
		if err := s.tasks.Create(ctx, task); err != nil {
			return nil, fmt.Errorf("failed to create task %q: %w", tpl.Title, err)
		}
		entry.Tasks = append(entry.Tasks, task)
	}

	if n := len(entry.Tasks); n > 0 {
		terminal := entry.Tasks[n-1]
		if terminal.Title == constants.DidNotHireTaskTitle {
			job := &models.ScheduledJob{
				ID:            utils.GenerateID(),
				Kind:          constants.JobKindDidNotHire,
				OpportunityID: opp.ID,
				StageID:       opp.StageID,
				TaskID:        &terminal.ID,
				RunAt:         terminal.DueAt.Add(s.grace),
				Status:        constants.JobStatusPending,
				CreatedDate:   s.now().UTC(),
			}
			if err := s.jobs.Create(ctx, job); err != nil {
				return nil, fmt.Errorf("failed to schedule did-not-hire job: %w", err)
			}
			entry.Job = job
		}
	}

	s.log.Info().Str(logging.OPP_ID, opp.ID).Int("tasks", len(entry.Tasks)).Bool("scheduled", entry.Job != nil).Msg("⚙️ Stage automation applied")
	return entry, nil
}

// SweepResult counts the outcome of one sweep
type SweepResult struct {
	Done    int `json:"done"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Sweep claims due jobs and runs them
func (s *AutomationService) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	due, err := s.jobs.FindDue(ctx, s.now().UTC(), sweepBatchSize)
	if err != nil {
		return result, fmt.Errorf("failed to load due jobs: %w", err)
	}

	for _, job := range due {
		claimed, err := s.jobs.Claim(ctx, job.ID)
		if err != nil {
			s.log.Warn().Err(err).Str(logging.JOB_ID, job.ID).Msg("⚠️ Failed to claim job")
			continue
		}
		if !claimed {
			continue
		}

		status, runErr := s.runJob(ctx, job)
		errMsg := ""
		if runErr != nil {
			status = constants.JobStatusFailed
			errMsg = runErr.Error()
			s.log.Error().Err(runErr).Str(logging.JOB_ID, job.ID).Str(logging.OPP_ID, job.OpportunityID).Msg("❌ Automation job failed")
		}
		if err := s.jobs.Finish(ctx, job.ID, status, errMsg, s.now().UTC()); err != nil {
			s.log.Error().Err(err).Str(logging.JOB_ID, job.ID).Msg("❌ Failed to record job result")
		}

		switch status {
		case constants.JobStatusDone:
			result.Done++
			metrics.AutomationJobs.WithLabelValues(metrics.ResultSuccess).Inc()
		case constants.JobStatusSkipped:
			result.Skipped++
			metrics.AutomationJobs.WithLabelValues(metrics.ResultSkipped).Inc()
		default:
			result.Failed++
			metrics.AutomationJobs.WithLabelValues(metrics.ResultFailure).Inc()
		}
	}
	return result, nil
}

// runJob returns done or skipped, or an error
func (s *AutomationService) runJob(ctx context.Context, job *models.ScheduledJob) (string, error) {
	if job.Kind != constants.JobKindDidNotHire {
		return "", fmt.Errorf("unknown job kind %q", job.Kind)
	}
	if s.mover == nil {
		return "", fmt.Errorf("no stage mover configured")
	}

	opp, err := s.opps.FindByID(ctx, job.OpportunityID)
	if err != nil {
		return "", err
	}
	if opp == nil || opp.StageID != job.StageID {
		return constants.JobStatusSkipped, nil
	}

	if job.TaskID != nil {
		task, err := s.tasks.FindByID(ctx, *job.TaskID)
		if err != nil {
			return "", err
		}
		if task == nil || task.IsCompleted() {
			return constants.JobStatusSkipped, nil
		}
	}

	target, err := s.pipelines.FindStageByKind(ctx, opp.PipelineID, constants.StageKindDidNotHire)
	if err != nil {
		return "", err
	}
	if target == nil {
		return "", fmt.Errorf("pipeline %s has no %s stage", opp.PipelineID, constants.StageKindDidNotHire)
	}

	if _, err := s.mover.MoveStage(ctx, opp.ID, target.ID, constants.SystemUserID); err != nil {
		return "", err
	}
	s.log.Info().Str(logging.OPP_ID, opp.ID).Msg("📦 Moved to Did Not Hire")
	return constants.JobStatusDone, nil
}
