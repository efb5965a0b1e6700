package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oncall-agent/engine/internal/api/types"
	"github.com/oncall-agent/engine/internal/services"
)

type InvestigationsHandler struct {
	svc      services.InvestigationService
	validate interface{ Struct(any) error }
}

func NewInvestigationsHandler(svc services.InvestigationService, v interface{ Struct(any) error }) *InvestigationsHandler {
	return &InvestigationsHandler{svc: svc, validate: v}
}

// Start manually triggers an investigation for a repository. The response
// returns immediately with the record in investigating state; progress is
// observable on the websocket channel.
func (h *InvestigationsHandler) Start(w http.ResponseWriter, r *http.Request) {
	repoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid repository id")
		return
	}
	var req types.InvestigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.svc.Start(r.Context(), repoID, services.StartInput{
		ErrorMessage:   req.ErrorMessage,
		DeploymentLogs: req.DeploymentLogs,
		CommitSHA:      req.CommitSHA,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, types.APIResponse{Success: true, Data: inv})
}

func (h *InvestigationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items})
}

func (h *InvestigationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid investigation id")
		return
	}
	inv, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: inv})
}
