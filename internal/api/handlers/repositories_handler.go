package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oncall-agent/engine/internal/api/types"
	"github.com/oncall-agent/engine/internal/models"
	"github.com/oncall-agent/engine/internal/repository"
	appErr "github.com/oncall-agent/engine/pkg/errors"
)

type RepositoriesHandler struct {
	repos    repository.RepositoryRepository
	validate interface{ Struct(any) error }
}

func NewRepositoriesHandler(repos repository.RepositoryRepository, v interface{ Struct(any) error }) *RepositoriesHandler {
	return &RepositoriesHandler{repos: repos, validate: v}
}

// Create registers a repository. Registering the same owner/name twice
// returns the existing record rather than an error.
func (h *RepositoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.RepositoryCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return
	}

	var existing models.Repository
	if err := h.repos.GetByOwnerName(r.Context(), req.Owner, req.Name, &existing); err == nil {
		writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: existing})
		return
	} else if !appErr.IsCode(err, appErr.CodeNotFound) {
		writeError(w, err)
		return
	}

	branch := req.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	repo := models.Repository{
		Owner:              req.Owner,
		Name:               req.Name,
		DefaultBranch:      branch,
		RailwayProjectName: req.RailwayProjectName,
		AccessToken:        req.AccessToken,
	}
	if err := h.repos.Create(r.Context(), &repo); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: repo})
}

func (h *RepositoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.repos.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items})
}

func (h *RepositoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid repository id")
		return
	}
	var repo models.Repository
	if err := h.repos.GetByID(r.Context(), id, &repo); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: repo})
}
