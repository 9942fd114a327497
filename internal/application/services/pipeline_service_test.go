package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	apperrors "github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/expression"
)

func TestPipelineService_CreateAddsDidNotHire(t *testing.T) {
	svc := NewPipelineService(newMemPipelines(), newMemOpps(), expression.NewEngine())
	ctx := context.Background()

	p, err := svc.CreatePipeline(ctx, PipelineInput{
		Name:   "Estate Planning",
		Stages: []StageInput{{Name: "New"}, {Name: "Retained", Kind: constants.StageKindWon}},
	})
	require.NoError(t, err)
	require.Len(t, p.Stages, 3)
	assert.Equal(t, constants.StageKindOpen, p.Stages[0].Kind)
	assert.Equal(t, constants.DidNotHireStageName, p.Stages[2].Name)
	assert.Equal(t, constants.StageKindDidNotHire, p.Stages[2].Kind)
	assert.Equal(t, 2, p.Stages[2].Position)

	_, err = svc.CreatePipeline(ctx, PipelineInput{Name: " "})
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.CreatePipeline(ctx, PipelineInput{Name: "Bad", Stages: []StageInput{{Name: "X", Kind: "limbo"}}})
	assert.True(t, apperrors.IsValidation(err))
}

func TestPipelineService_DidNotHireStageIsProtected(t *testing.T) {
	f := newAutomationFixture(t)
	svc := NewPipelineService(f.pipelines, f.opps, expression.NewEngine())
	ctx := context.Background()

	_, err := svc.CreateStage(ctx, "p1", StageInput{Name: "Second DNH", Kind: constants.StageKindDidNotHire})
	assert.True(t, apperrors.IsConflict(err))

	_, err = svc.UpdateStage(ctx, "s-dnh", StageInput{Kind: constants.StageKindOpen})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.UpdateStage(ctx, "s-new", StageInput{Kind: constants.StageKindDidNotHire})
	assert.True(t, apperrors.IsConflict(err))

	assert.True(t, apperrors.IsValidation(svc.DeleteStage(ctx, "s-dnh")))

	renamed, err := svc.UpdateStage(ctx, "s-dnh", StageInput{Name: "Declined"})
	require.NoError(t, err)
	assert.Equal(t, "Declined", renamed.Name)
}

func TestPipelineService_DeleteStageRequiresEmpty(t *testing.T) {
	f := newAutomationFixture(t)
	svc := NewPipelineService(f.pipelines, f.opps, expression.NewEngine())
	ctx := context.Background()
	f.createOpp(t, "")

	assert.True(t, apperrors.IsValidation(svc.DeleteStage(ctx, "s-new")))
	require.NoError(t, svc.DeleteStage(ctx, "s-consult"))
	assert.True(t, apperrors.IsNotFound(svc.DeleteStage(ctx, "s-consult")))
}

func TestPipelineService_Templates(t *testing.T) {
	f := newAutomationFixture(t)
	svc := NewPipelineService(f.pipelines, f.opps, expression.NewEngine())
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, "s-consult", TemplateInput{
		Title:     "Send engagement letter",
		Duration:  domain.TaskDuration{Value: 2, Unit: domain.UnitDays},
		Condition: strp(`estimated_value > 1000`),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tpl.Position, "appended after existing templates")
	assert.Equal(t, `estimated_value > 1000`, *tpl.Condition)

	tests := []struct {
		name string
		in   TemplateInput
	}{
		{"missing title", TemplateInput{Duration: domain.TaskDuration{Value: 1, Unit: domain.UnitDays}}},
		{"bad unit", TemplateInput{Title: "x", Duration: domain.TaskDuration{Value: 1, Unit: "fortnights"}}},
		{"bad condition", TemplateInput{Title: "x", Duration: domain.TaskDuration{Value: 1, Unit: domain.UnitDays}, Condition: strp(`estimated_value >`)}},
		{"bad role", TemplateInput{Title: "x", Duration: domain.TaskDuration{Value: 1, Unit: domain.UnitDays}, AssigneeRole: strp("partner")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTemplate(ctx, "s-consult", tt.in)
			assert.True(t, apperrors.IsValidation(err), "unexpected error: %v", err)
		})
	}

	updated, err := svc.UpdateTemplate(ctx, tpl.ID, TemplateInput{Title: "Send engagement letter v2"})
	require.NoError(t, err)
	assert.Equal(t, "Send engagement letter v2", updated.Title)
	assert.Equal(t, 2, updated.DurationValue)
	assert.Equal(t, domain.UnitDays, updated.DurationUnit)

	require.NoError(t, svc.DeleteTemplate(ctx, tpl.ID))
	assert.True(t, apperrors.IsNotFound(svc.DeleteTemplate(ctx, tpl.ID)))
}

func TestPipelineService_Board(t *testing.T) {
	f := newAutomationFixture(t)
	svc := NewPipelineService(f.pipelines, f.opps, expression.NewEngine())
	ctx := context.Background()
	first := f.createOpp(t, "")
	f.createOpp(t, "")
	_, err := f.opportunities.MoveStage(ctx, first.ID, "s-consult", "u1")
	require.NoError(t, err)

	board, err := svc.Board(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "p1", board.Pipeline.ID)
	require.Len(t, board.Columns, 4)
	assert.Len(t, board.Columns[0].Opportunities, 1)
	assert.Len(t, board.Columns[1].Opportunities, 1)
	assert.NotNil(t, board.Columns[2].Opportunities)
	assert.Empty(t, board.Columns[2].Opportunities)

	p, err := svc.GetPipeline(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, p.Stages[1].Templates, 2)

	_, err = svc.GetPipeline(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}
