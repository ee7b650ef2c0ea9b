package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kamazennext/catalog/internal/ledger"
	"github.com/kamazennext/catalog/internal/metrics"
	"github.com/kamazennext/catalog/internal/middleware"
	"github.com/kamazennext/catalog/internal/model"
	"github.com/kamazennext/catalog/internal/redirect"
)

// ClickRecorder hands click events to the ledger without blocking.
type ClickRecorder interface {
	RecordAsync(event model.ClickEvent)
}

// RedirectHandler handles outbound redirect requests.
type RedirectHandler struct {
	resolver *redirect.Resolver
	clicks   ClickRecorder
	salt     string
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewRedirectHandler creates a new RedirectHandler. clicks may be nil, in
// which case redirects are not logged.
func NewRedirectHandler(resolver *redirect.Resolver, clicks ClickRecorder, salt string, recorder metrics.Recorder, logger *slog.Logger) *RedirectHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RedirectHandler{
		resolver: resolver,
		clicks:   clicks,
		salt:     salt,
		metrics:  recorder,
		logger:   logger.With("component", "handler.redirect"),
		now:      time.Now,
	}
}

// Out handles GET /out?slug=<slug>&from=<tag> (id= is accepted in place of
// slug). It answers 302 to the tracked destination, or a plain-text 404, 400
// or 500.
func (h *RedirectHandler) Out(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	identifier := strings.TrimSpace(query.Get("slug"))
	if identifier == "" {
		identifier = strings.TrimSpace(query.Get("id"))
	}
	from := strings.TrimSpace(query.Get("from"))

	if identifier == "" {
		h.metrics.IncRedirect("not_found")
		writeText(w, http.StatusNotFound, "Missing product identifier.")
		return
	}

	start := time.Now()
	res, err := h.resolver.Resolve(r.Context(), identifier, from)
	duration := time.Since(start)
	h.metrics.ObserveRedirectDuration(duration)

	if err != nil {
		h.handleRedirectError(w, identifier, err, duration)
		return
	}

	if h.clicks != nil {
		h.clicks.RecordAsync(ledger.NewEvent(
			res.Product.ID,
			res.Destination,
			res.Campaign,
			res.Content,
			ledger.Request{
				FromPage:  from,
				Referrer:  r.Referer(),
				UserAgent: r.UserAgent(),
				ClientIP:  middleware.ClientIP(r),
			},
			h.salt,
			h.now(),
		))
	}

	h.metrics.IncRedirect("found")
	h.logger.Info("redirect_success",
		"product_id", res.Product.ID,
		"from", from,
		"utm_campaign", res.Campaign,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	setRedirectHeaders(w)
	http.Redirect(w, r, res.Destination, http.StatusFound)
}

// Go handles GET /go/{slug}, a short alias that forwards to /out with
// from=go.
func (h *RedirectHandler) Go(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		writeText(w, http.StatusNotFound, "Missing slug.")
		return
	}

	location := "/out?" + url.Values{"slug": {slug}, "from": {"go"}}.Encode()

	setRedirectHeaders(w)
	http.Redirect(w, r, location, http.StatusFound)
}

// handleRedirectError maps resolver errors to plain-text responses.
func (h *RedirectHandler) handleRedirectError(w http.ResponseWriter, identifier string, err error, duration time.Duration) {
	switch {
	case errors.Is(err, redirect.ErrNotFound):
		h.metrics.IncRedirect("not_found")
		h.logger.Info("redirect_not_found",
			"identifier", identifier,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		writeText(w, http.StatusNotFound, "Product not found.")

	case errors.Is(err, redirect.ErrInvalidDestination):
		h.metrics.IncRedirect("invalid_destination")
		h.logger.Warn("redirect_invalid_destination",
			"identifier", identifier,
			"error", err,
		)
		writeText(w, http.StatusBadRequest, "Invalid destination.")

	default:
		h.metrics.IncRedirect("unavailable")
		h.logger.Error("redirect_error",
			"identifier", identifier,
			"error", err,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		writeText(w, http.StatusInternalServerError, "Catalog unavailable.")
	}
}

func setRedirectHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Robots-Tag", "noindex, nofollow")
	w.Header().Set("Cache-Control", "private, no-store")
}
