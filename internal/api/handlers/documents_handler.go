package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oncall-agent/engine/internal/api/types"
	"github.com/oncall-agent/engine/internal/models"
	"github.com/oncall-agent/engine/internal/repository"
)

const maxUploadBytes = 10 << 20 // 10 MiB

// textFileTypes are stored with their content as analysis context. Other
// formats are kept on disk only; text extraction for them is out of scope.
var textFileTypes = map[string]struct{}{
	"md":  {},
	"txt": {},
}

type DocumentsHandler struct {
	repos     repository.RepositoryRepository
	docs      repository.DocumentRepository
	uploadDir string
}

func NewDocumentsHandler(repos repository.RepositoryRepository, docs repository.DocumentRepository, uploadDir string) *DocumentsHandler {
	return &DocumentsHandler{repos: repos, docs: docs, uploadDir: uploadDir}
}

func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	repoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid repository id")
		return
	}
	var repo models.Repository
	if err := h.repos.GetByID(r.Context(), repoID, &repo); err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	filename := filepath.Base(header.Filename)
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		writeErrorStr(w, http.StatusInternalServerError, "upload dir unavailable")
		return
	}
	path := filepath.Join(h.uploadDir, fmt.Sprintf("%s_%s", repoID, filename))

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "read upload failed")
		return
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		writeErrorStr(w, http.StatusInternalServerError, "store upload failed")
		return
	}

	text := ""
	if _, ok := textFileTypes[fileType]; ok {
		text = string(content)
	}

	doc := models.Document{
		RepositoryID: repoID,
		Filename:     filename,
		FilePath:     path,
		Content:      text,
		FileType:     fileType,
	}
	if err := h.docs.Create(r.Context(), &doc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: doc})
}

func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	repoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid repository id")
		return
	}
	items, err := h.docs.ListByRepository(r.Context(), repoID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items})
}
