package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kamazennext/catalog/internal/auth"
	"github.com/kamazennext/catalog/internal/catalog"
	"github.com/kamazennext/catalog/internal/handler/dto"
	"github.com/kamazennext/catalog/internal/model"
	"github.com/kamazennext/catalog/internal/service"
)

// ProductHandler handles HTTP requests for catalog products.
type ProductHandler struct {
	svc    *service.CatalogService
	logger *slog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(svc *service.CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		svc:    svc,
		logger: logger.With("component", "handler.product"),
	}
}

// PublicList handles GET /api/v1/products.
func (h *ProductHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.NewProductListResponse(h.svc.PublicList(r.Context())))
}

// PublicGet handles GET /api/v1/products/{slug}.
func (h *ProductHandler) PublicGet(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.PublicGet(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// List handles GET /admin/api/products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewProductListResponse(products))
}

// Get handles GET /admin/api/products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// Create handles POST /admin/api/products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input model.Product
	if err := decodeJSON(r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}

	product, err := h.svc.Save(r.Context(), "", input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("product_created",
		"product_id", product.ID,
		"admin", adminUser(r),
	)
	writeJSON(w, http.StatusCreated, product)
}

// Update handles PUT /admin/api/products/{id}. The body may carry a new id.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Product ID is required")
		return
	}

	var input model.Product
	if err := decodeJSON(r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}
	if input.ID == "" {
		input.ID = id
	}

	product, err := h.svc.Save(r.Context(), id, input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("product_updated",
		"product_id", product.ID,
		"original_id", id,
		"admin", adminUser(r),
	)
	writeJSON(w, http.StatusOK, product)
}

// Delete handles DELETE /admin/api/products/{id}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("product_deleted",
		"product_id", id,
		"admin", adminUser(r),
	)
	w.WriteHeader(http.StatusNoContent)
}

// Backups handles GET /admin/api/backups.
func (h *ProductHandler) Backups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.svc.Backups()
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToBackupListResponse(backups))
}

// handleServiceError maps catalog and service errors to HTTP responses.
func (h *ProductHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *service.ValidationError

	switch {
	case errors.Is(err, service.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Product not found")
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
			Error:  "Invalid product",
			Code:   "VALIDATION_FAILED",
			Fields: validationErr.Fields,
		})
	case errors.Is(err, service.ErrInvalidProduct):
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, service.ErrIDTaken), errors.Is(err, catalog.ErrDuplicateID):
		writeError(w, http.StatusConflict, "ID_TAKEN", "Product ID already exists")
	case errors.Is(err, service.ErrSlugTaken), errors.Is(err, catalog.ErrDuplicateSlug):
		writeError(w, http.StatusConflict, "SLUG_TAKEN", "Product slug already exists")
	default:
		writeCatalogError(w, h.logger, r, err)
	}
}

// writeCatalogError maps store failures shared by every admin write.
func writeCatalogError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrLockTimeout):
		logger.Warn("catalog busy", "error", err, "path", r.URL.Path)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "CATALOG_BUSY", "Catalog is busy, retry shortly")
	case errors.Is(err, catalog.ErrCorrupt):
		logger.Error("catalog corrupt", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "CATALOG_CORRUPT", "Catalog file is corrupt")
	case errors.Is(err, catalog.ErrWriteFailed):
		logger.Error("catalog write failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "WRITE_FAILED", "Catalog could not be saved")
	default:
		logger.Error("unexpected error", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func adminUser(r *http.Request) string {
	if admin := auth.AdminFromContext(r.Context()); admin != nil {
		return admin.User
	}
	return ""
}
