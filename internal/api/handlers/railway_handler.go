package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/oncall-agent/engine/internal/api/types"
	"github.com/oncall-agent/engine/internal/integrations/railway"
	"github.com/oncall-agent/engine/pkg/logger"
	"go.uber.org/zap"
)

type RailwayHandler struct {
	client *railway.Client
}

func NewRailwayHandler(client *railway.Client) *RailwayHandler {
	return &RailwayHandler{client: client}
}

// Projects lists the projects visible to the configured API key. Useful for
// checking that railway_project_name on a repository matches a real project.
func (h *RailwayHandler) Projects(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		writeErrorStr(w, http.StatusServiceUnavailable, "railway integration is not configured")
		return
	}
	projects, err := h.client.ListProjects(r.Context())
	if err != nil {
		writeErrorStr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: projects})
}

// Webhook acknowledges Railway deployment webhooks. Investigations are driven
// by the poll loop, not by webhook delivery, so the payload is only logged.
func (h *RailwayHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Type    string          `json:"type"`
		Details json.RawMessage `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	logger.L().Info("railway webhook received", zap.String("type", payload.Type))
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
