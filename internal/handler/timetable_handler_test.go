package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableServiceMock struct {
	generateReq dto.GenerateTimetableRequest
	actor       string
	async       bool
	saveReq     dto.SaveTimetableRequest
	listQuery   dto.TimetableListQuery
	slotQuery   dto.SlotQuery
	exportQuery dto.ExportQuery
	runID       string
	token       string
	err         error
}

func (m *timetableServiceMock) Generate(_ context.Context, req dto.GenerateTimetableRequest, actor string) (*dto.GenerateTimetableResponse, error) {
	m.generateReq, m.actor = req, actor
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerateTimetableResponse{Proposals: []dto.TimetableProposal{{ProposalID: "proposal-1", Grade: "10"}}}, nil
}

func (m *timetableServiceMock) GenerateAsync(_ context.Context, req dto.GenerateTimetableRequest, actor string) (*dto.GenerateJob, error) {
	m.generateReq, m.actor, m.async = req, actor, true
	return &dto.GenerateJob{ID: "job-1", Status: dto.GenerateJobQueued}, nil
}

func (m *timetableServiceMock) GetJob(_ context.Context, id string) (*dto.GenerateJob, error) {
	if id != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found or expired")
	}
	return &dto.GenerateJob{ID: id, Status: dto.GenerateJobCompleted}, nil
}

func (m *timetableServiceMock) GetProposal(_ context.Context, id string) (*dto.TimetableProposal, error) {
	return &dto.TimetableProposal{ProposalID: id}, nil
}

func (m *timetableServiceMock) Save(_ context.Context, req dto.SaveTimetableRequest, actor string) (*dto.SaveTimetableResponse, error) {
	m.saveReq, m.actor = req, actor
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SaveTimetableResponse{RunID: "run-1", Version: 1, Status: "DRAFT"}, nil
}

func (m *timetableServiceMock) List(_ context.Context, query dto.TimetableListQuery) ([]models.TimetableRun, *models.Pagination, error) {
	m.listQuery = query
	return []models.TimetableRun{{ID: "run-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *timetableServiceMock) GetSlots(_ context.Context, runID string, query dto.SlotQuery) ([]models.TimetableSlot, error) {
	m.runID, m.slotQuery = runID, query
	return []models.TimetableSlot{{RunID: runID}}, nil
}

func (m *timetableServiceMock) Publish(_ context.Context, runID string) (*models.TimetableRun, error) {
	m.runID = runID
	return &models.TimetableRun{ID: runID, Status: models.TimetableStatusPublished}, nil
}

func (m *timetableServiceMock) Archive(_ context.Context, runID string) (*models.TimetableRun, error) {
	m.runID = runID
	return &models.TimetableRun{ID: runID, Status: models.TimetableStatusArchived}, nil
}

func (m *timetableServiceMock) Delete(_ context.Context, runID string) error {
	m.runID = runID
	return m.err
}

func (m *timetableServiceMock) Export(_ context.Context, runID string, query dto.ExportQuery) (*service.ExportFile, error) {
	m.runID, m.exportQuery = runID, query
	return &service.ExportFile{Filename: "Kelas_10A_v1_w01.csv", ContentType: "text/csv", Data: []byte("Period,Monday\n")}, nil
}

func (m *timetableServiceMock) ExportLink(_ context.Context, runID string, query dto.ExportQuery) (*dto.ExportLinkResponse, error) {
	m.runID, m.exportQuery = runID, query
	return &dto.ExportLinkResponse{URL: "/api/v1/timetables/exports/tok", Token: "tok", Format: "pdf"}, nil
}

func (m *timetableServiceMock) Download(token string) (*service.ExportFile, error) {
	m.token = token
	if token == "expired" {
		return nil, appErrors.Clone(appErrors.ErrExpired, "download link expired")
	}
	return &service.ExportFile{Filename: "Kelas_10A_v1_w01.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}, nil
}

// buildTimetableRouter authenticates callers from the X-Test-Role header.
func buildTimetableRouter(svc timetableService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	auth := func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.UserRole(role)})
		}
		c.Next()
	}
	handler := &TimetableHandler{service: svc}
	handler.Register(router.Group("/api/v1"), auth, internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	return router
}

func performRequest(router *gin.Engine, method, path, body, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTimetableHandlerGenerate(t *testing.T) {
	mock := &timetableServiceMock{}
	router := buildTimetableRouter(mock)
	admin := string(models.RoleAdmin)

	w := performRequest(router, http.MethodPost, "/api/v1/timetables/generate", `{"termId":"term-1","grades":["10","11"],"calendar":{"totalWeeks":18}}`, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"proposalId":"proposal-1"`)
	assert.Equal(t, []string{"10", "11"}, mock.generateReq.Grades)
	assert.Equal(t, 18, mock.generateReq.Calendar.TotalWeeks)
	assert.Equal(t, "user-1", mock.actor)
	assert.False(t, mock.async)

	w = performRequest(router, http.MethodPost, "/api/v1/timetables/generate?async=true", `{"termId":"term-1","grades":["10"]}`, admin)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, mock.async)
	assert.Contains(t, w.Body.String(), `"status":"QUEUED"`)

	w = performRequest(router, http.MethodPost, "/api/v1/timetables/generate", `{"termId":`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerAccessControl(t *testing.T) {
	router := buildTimetableRouter(&timetableServiceMock{})

	w := performRequest(router, http.MethodGet, "/api/v1/timetables?termId=term-1", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = performRequest(router, http.MethodPost, "/api/v1/timetables/generate", `{"termId":"term-1","grades":["10"]}`, string(models.RoleTeacher))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performRequest(router, http.MethodGet, "/api/v1/timetables/exports/tok", "", "")
	assert.Equal(t, http.StatusOK, w.Code, "signed downloads need no session")
}

func TestTimetableHandlerSaveMapsServiceErrors(t *testing.T) {
	mock := &timetableServiceMock{}
	router := buildTimetableRouter(mock)

	w := performRequest(router, http.MethodPost, "/api/v1/timetables", `{"proposalId":"proposal-1","publish":true}`, string(models.RoleSuperAdmin))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mock.saveReq.Publish)

	mock.err = appErrors.Clone(appErrors.ErrConflict, "proposals with critical violations cannot be published")
	w = performRequest(router, http.MethodPost, "/api/v1/timetables", `{"proposalId":"proposal-1","publish":true}`, string(models.RoleSuperAdmin))
	require.Equal(t, http.StatusConflict, w.Code)
	var body struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CONFLICT", body.Error.Code)
}

func TestTimetableHandlerQueries(t *testing.T) {
	mock := &timetableServiceMock{}
	router := buildTimetableRouter(mock)
	admin := string(models.RoleAdmin)

	w := performRequest(router, http.MethodGet, "/api/v1/timetables?termId=term-1&grade=10&status=PUBLISHED&page=2", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.TimetableListQuery{TermID: "term-1", Grade: "10", Status: "PUBLISHED", Page: 2}, mock.listQuery)
	assert.Contains(t, w.Body.String(), `"pagination"`)

	w = performRequest(router, http.MethodGet, "/api/v1/timetables?termId=term-1&page=abc", "", admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(router, http.MethodGet, "/api/v1/timetables/run-9/slots?classId=10-a&week=3", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "run-9", mock.runID)
	assert.Equal(t, dto.SlotQuery{ClassID: "10-a", Week: 3}, mock.slotQuery)

	w = performRequest(router, http.MethodGet, "/api/v1/timetables/jobs/job-1", "", admin)
	assert.Equal(t, http.StatusOK, w.Code)
	w = performRequest(router, http.MethodGet, "/api/v1/timetables/jobs/job-2", "", admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = performRequest(router, http.MethodGet, "/api/v1/timetables/proposals/proposal-1", "", admin)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimetableHandlerLifecycle(t *testing.T) {
	mock := &timetableServiceMock{}
	router := buildTimetableRouter(mock)
	admin := string(models.RoleAdmin)

	w := performRequest(router, http.MethodPost, "/api/v1/timetables/run-1/publish", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"PUBLISHED"`)

	w = performRequest(router, http.MethodPost, "/api/v1/timetables/run-1/archive", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ARCHIVED"`)

	w = performRequest(router, http.MethodDelete, "/api/v1/timetables/run-2", "", admin)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "run-2", mock.runID)

	mock.err = appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	w = performRequest(router, http.MethodDelete, "/api/v1/timetables/run-2", "", admin)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTimetableHandlerExports(t *testing.T) {
	mock := &timetableServiceMock{}
	router := buildTimetableRouter(mock)
	admin := string(models.RoleAdmin)

	w := performRequest(router, http.MethodGet, "/api/v1/timetables/run-1/export?classId=10-a&format=csv&week=2", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="Kelas_10A_v1_w01.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Period,Monday\n", w.Body.String())
	assert.Equal(t, dto.ExportQuery{ClassID: "10-a", Format: "csv", Week: 2}, mock.exportQuery)

	w = performRequest(router, http.MethodPost, "/api/v1/timetables/run-1/export-link?classId=10-a&format=pdf", "", admin)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"token":"tok"`)

	w = performRequest(router, http.MethodGet, "/api/v1/timetables/exports/expired", "", "")
	assert.Equal(t, http.StatusGone, w.Code)
}
