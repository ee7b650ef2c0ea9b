package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kamazennext/catalog/internal/handler/dto"
	"github.com/kamazennext/catalog/internal/ledger"
	"github.com/kamazennext/catalog/internal/model"
)

// ClicksHandler serves the admin click report.
type ClicksHandler struct {
	ledger ledger.Ledger
	logger *slog.Logger
}

// NewClicksHandler creates a new ClicksHandler.
func NewClicksHandler(l ledger.Ledger, logger *slog.Logger) *ClicksHandler {
	return &ClicksHandler{
		ledger: l,
		logger: logger.With("component", "handler.clicks"),
	}
}

// Report handles GET /admin/api/clicks?start=&end=&product_id=&from_page=&limit=.
// Dates are YYYY-MM-DD (UTC, inclusive).
func (h *ClicksHandler) Report(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start := strings.TrimSpace(query.Get("start"))
	end := strings.TrimSpace(query.Get("end"))
	productID := strings.TrimSpace(query.Get("product_id"))
	fromPage := strings.TrimSpace(query.Get("from_page"))

	filter, err := ledger.ParseFilter(start, end, productID, fromPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}

	limit := ledger.MaxRecentLimit
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = ledger.NormalizeLimit(parsed)
		}
	}

	totals, err := h.ledger.Totals(r.Context(), filter)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	recent, err := h.ledger.Recent(r.Context(), filter, limit)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	if totals == nil {
		totals = []model.ProductClickTotal{}
	}
	if recent == nil {
		recent = []model.ClickEvent{}
	}

	var total int64
	for _, t := range totals {
		total += t.Clicks
	}

	writeJSON(w, http.StatusOK, dto.ClicksResponse{
		Start:       start,
		End:         end,
		ProductID:   productID,
		FromPage:    fromPage,
		TotalClicks: total,
		Totals:      totals,
		Recent:      recent,
	})
}

func (h *ClicksHandler) writeLedgerError(w http.ResponseWriter, err error) {
	if errors.Is(err, ledger.ErrInvalidRange) {
		writeError(w, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}
	h.logger.Error("click report failed", "error", err)
	writeError(w, http.StatusInternalServerError, "LEDGER_UNAVAILABLE", "Click ledger unavailable")
}
