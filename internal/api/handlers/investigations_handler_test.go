package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oncall-agent/engine/internal/api/types"
	"github.com/oncall-agent/engine/internal/models"
	"github.com/oncall-agent/engine/internal/services"
	appErr "github.com/oncall-agent/engine/pkg/errors"
)

type mockInvestigationService struct {
	mock.Mock
}

func (m *mockInvestigationService) Start(ctx context.Context, repositoryID uuid.UUID, input services.StartInput) (*models.Investigation, error) {
	args := m.Called(ctx, repositoryID, input)
	if v := args.Get(0); v != nil {
		return v.(*models.Investigation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInvestigationService) Get(ctx context.Context, id uuid.UUID) (*models.Investigation, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Investigation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInvestigationService) ListRecent(ctx context.Context, limit int) ([]models.Investigation, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]models.Investigation), args.Error(1)
	}
	return nil, args.Error(1)
}

func newInvestigationsRouter(svc services.InvestigationService) http.Handler {
	h := NewInvestigationsHandler(svc, validator.New(validator.WithRequiredStructEnabled()))
	r := chi.NewRouter()
	r.Post("/api/v1/repositories/{id}/investigate", h.Start)
	r.Get("/api/v1/investigations", h.List)
	r.Get("/api/v1/investigations/{id}", h.Get)
	return r
}

func TestStartInvestigation(t *testing.T) {
	repoID := uuid.New()
	svc := &mockInvestigationService{}
	router := newInvestigationsRouter(svc)

	inv := &models.Investigation{ID: uuid.New(), RepositoryID: repoID, Status: models.InvestigationInvestigating}
	svc.On("Start", mock.Anything, repoID, services.StartInput{
		ErrorMessage:   "connection refused",
		DeploymentLogs: "dial tcp: refused",
		CommitSHA:      "abc1234",
	}).Return(inv, nil).Once()

	body, _ := json.Marshal(types.InvestigateRequest{
		ErrorMessage:   "connection refused",
		DeploymentLogs: "dial tcp: refused",
		CommitSHA:      "abc1234",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories/"+repoID.String()+"/investigate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	var resp types.APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	svc.AssertExpectations(t)
}

func TestStartInvestigationValidation(t *testing.T) {
	svc := &mockInvestigationService{}
	router := newInvestigationsRouter(svc)

	t.Run("bad repository id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories/not-a-uuid/investigate", bytes.NewReader([]byte(`{}`)))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing error message", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories/"+uuid.NewString()+"/investigate", bytes.NewReader([]byte(`{"deployment_logs":"x"}`)))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	svc.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetInvestigationNotFound(t *testing.T) {
	svc := &mockInvestigationService{}
	router := newInvestigationsRouter(svc)

	id := uuid.New()
	svc.On("Get", mock.Anything, id).
		Return(nil, appErr.New(appErr.CodeNotFound, "entity not found")).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/investigations/"+id.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	var resp types.APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Equal(t, "not_found", resp.Error.Code)
}

func TestListInvestigations(t *testing.T) {
	svc := &mockInvestigationService{}
	router := newInvestigationsRouter(svc)

	svc.On("ListRecent", mock.Anything, 0).
		Return([]models.Investigation{{ID: uuid.New(), Status: models.InvestigationCompleted}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/investigations", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}
