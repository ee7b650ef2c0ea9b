package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/kamazennext/catalog/internal/auth"
	"github.com/kamazennext/catalog/internal/handler/dto"
	"github.com/kamazennext/catalog/internal/importer"
)

// importFormField is the multipart field carrying the uploaded table.
const importFormField = "csv_file"

// ImportHandler handles the two-phase bulk import.
type ImportHandler struct {
	svc       *importer.Service
	maxUpload int64
	logger    *slog.Logger
}

// NewImportHandler creates a new ImportHandler. maxUpload bounds the request
// body in bytes.
func NewImportHandler(svc *importer.Service, maxUpload int64, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		svc:       svc,
		maxUpload: maxUpload,
		logger:    logger.With("component", "handler.import"),
	}
}

// Preview handles POST /admin/api/import/preview.
// The table is read from the csv_file multipart field, or from the raw body
// when the request is sent as text/csv.
func (h *ImportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionIDFromContext(r.Context())
	if sessionID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Admin session required")
		return
	}

	if r.ContentLength > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	upload, closeUpload, err := h.openUpload(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", err.Error())
		return
	}
	defer closeUpload()

	preview, err := h.svc.Preview(r.Context(), sessionID, upload)
	if err != nil {
		h.handleImportError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

// Commit handles POST /admin/api/import/commit.
func (h *ImportHandler) Commit(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionIDFromContext(r.Context())
	if sessionID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Admin session required")
		return
	}

	var req dto.ImportCommitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := h.svc.Commit(r.Context(), sessionID, strings.TrimSpace(req.Token))
	if err != nil {
		h.handleImportError(w, r, err)
		return
	}

	h.logger.Info("import_committed",
		"admin", adminUser(r),
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
	)
	writeJSON(w, http.StatusOK, result)
}

// openUpload returns the uploaded table and a func releasing it.
func (h *ImportHandler) openUpload(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		return r.Body, func() {}, nil
	}

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, err
		}
		return nil, nil, errors.New("expected a multipart upload with a csv_file field")
	}

	file, _, err := r.FormFile(importFormField)
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		return nil, nil, errors.New("please choose a CSV file to upload")
	}

	return file, func() {
		_ = file.Close()
		_ = r.MultipartForm.RemoveAll()
	}, nil
}

// handleImportError maps importer errors to HTTP responses.
func (h *ImportHandler) handleImportError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *importer.ValidationError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
			Error:    "Import rejected",
			Code:     "VALIDATION_FAILED",
			Messages: validationErr.Messages,
		})
	case errors.Is(err, importer.ErrTokenInvalid):
		h.logger.Warn("import_token_invalid", "admin", adminUser(r))
		writeError(w, http.StatusConflict, "TOKEN_INVALID", "Import token is invalid or already used; upload the file again")
	default:
		writeCatalogError(w, h.logger, r, err)
	}
}
