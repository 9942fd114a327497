package rest_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/interfaces/rest"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	apperrors "github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
)

func TestOpportunityHandler_MoveStage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockOpportunityService)
	r := gin.New()
	r.Use(withClaims(&auth.Claims{UserSession: testUser}))
	r.POST("/opportunities/:id/move", rest.NewOpportunityHandler(svc).MoveStage)

	svc.On("MoveStage", mock.Anything, "o1", "s-dnh", "u1").Return(&models.Opportunity{ID: "o1", StageID: "s-dnh"}, nil)
	w := serve(r, jsonRequest(http.MethodPost, "/opportunities/o1/move", gin.H{"stage_id": "s-dnh"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stage_id":"s-dnh"`)
	assert.Contains(t, w.Body.String(), "Opportunity moved")

	w = serve(r, jsonRequest(http.MethodPost, "/opportunities/o1/move", gin.H{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("MoveStage", mock.Anything, "o1", "other-pipeline", "u1").Return(nil, apperrors.NewValidationError("stage_id", "Stage belongs to another pipeline"))
	w = serve(r, jsonRequest(http.MethodPost, "/opportunities/o1/move", gin.H{"stage_id": "other-pipeline"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	svc.AssertExpectations(t)
}

func TestOpportunityHandler_List(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockOpportunityService)
	r := gin.New()
	r.GET("/opportunities", rest.NewOpportunityHandler(svc).List)

	svc.On("List", mock.Anything, ports.OpportunityFilter{PipelineID: "p1", Limit: constants.DefaultMaxLimit, Offset: 0}).
		Return([]*models.Opportunity{{ID: "o1"}}, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/opportunities?pipeline_id=p1&limit=100000&offset=-4", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"opportunities":[{"id":"o1"`)
	svc.AssertExpectations(t)
}

func TestTaskHandler_List(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockTaskService)
	r := gin.New()
	r.Use(withClaims(&auth.Claims{UserSession: testUser}))
	r.GET("/tasks", rest.NewTaskHandler(svc).List)

	due := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.On("List", mock.Anything, models.TaskFilter{
		AssigneeID: "u1", Status: "open", DueBefore: &due, Limit: constants.DefaultLimit,
	}).Return([]*models.Task{}, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/tasks?mine=true&status=open&due_before=2025-05-01T00:00:00Z", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tasks":[]}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/tasks?due_before=tomorrow", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "List", 1)
}

func TestTaskHandler_Complete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockTaskService)
	r := gin.New()
	r.Use(withClaims(&auth.Claims{UserSession: testUser}))
	r.POST("/tasks/:id/complete", rest.NewTaskHandler(svc).Complete)

	svc.On("Complete", mock.Anything, "t1", "u1").Return(&models.Task{ID: "t1", Status: constants.TaskStatusCompleted}, nil)
	w := serve(r, httptest.NewRequest(http.MethodPost, "/tasks/t1/complete", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Task completed")

	svc.On("Complete", mock.Anything, "missing", "u1").Return(nil, apperrors.NewNotFoundError("Task", "missing"))
	w = serve(r, httptest.NewRequest(http.MethodPost, "/tasks/missing/complete", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIntakeHandler_Submit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockIntakeService)
	r := gin.New()
	r.POST("/intake", rest.NewIntakeHandler(svc).Submit)

	form := services.IntakeForm{Name: "Jane Roe", Email: "jane@example.com", PracticeArea: "Estate Planning"}
	svc.On("Submit", mock.Anything, "form-secret", form).
		Return(&services.IntakeResult{ContactID: "c1", OpportunityID: "o1", ContactCreated: true}, nil)
	svc.On("Submit", mock.Anything, "", form).Return(nil, apperrors.NewUnauthorizedError("invalid intake secret"))

	req := jsonRequest(http.MethodPost, "/intake", form)
	req.Header.Set(constants.HeaderIntakeSecret, "form-secret")
	w := serve(r, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"opportunityId":"o1"`)

	w = serve(r, jsonRequest(http.MethodPost, "/intake", form))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertExpectations(t)
}

func TestRingCentralHandler_SendSMS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockRingCentralService)
	r := gin.New()
	r.Use(withClaims(&auth.Claims{UserSession: testUser}))
	h := rest.NewRingCentralHandler(svc)
	r.POST("/sms", h.SendSMS)
	r.GET("/status", h.Status)

	in := services.SMSInput{ContactID: "c1", Text: "Your consult is confirmed"}
	svc.On("SendSMS", mock.Anything, in, "u1").Return(nil, apperrors.NewUpstreamError("ringcentral", 503, "unavailable"))
	w := serve(r, jsonRequest(http.MethodPost, "/sms", in))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "UPSTREAM_ERROR")

	svc.On("Enabled").Return(false)
	w = serve(r, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.JSONEq(t, `{"enabled":false}`, w.Body.String())
}

func TestRespondAppError_HidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/contacts", nil)

	rest.RespondAppError(c, apperrors.NewInternalError("query failed", assert.AnError))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
