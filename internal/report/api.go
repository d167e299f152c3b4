package report

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/paramean/targeting/internal/shared/errors"
)

// Handler provides HTTP handlers for the report module
type Handler struct {
	svc *Service
	log *zap.Logger
}

// NewHandler creates a new report handler
func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log.Named("report")}
}

// Routes registers the report routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetReport)
	return r
}

// GetReport serves mode=summary (default) or mode=data.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := FiltersFromQuery(q)

	mode := q.Get("mode")
	if mode == "" {
		mode = ModeSummary
	}

	switch mode {
	case ModeSummary:
		out, err := h.svc.Summary(r.Context(), filters)
		if err != nil {
			errors.WriteError(w, h.log, errors.Wrap(err, "failed to fetch report data"))
			return
		}
		errors.WriteJSON(w, http.StatusOK, out)

	case ModeData:
		page, limit := Pagination(q)
		out, err := h.svc.Data(r.Context(), filters, page, limit)
		if err != nil {
			errors.WriteError(w, h.log, errors.Wrap(err, "failed to fetch report data"))
			return
		}
		errors.WriteJSON(w, http.StatusOK, out)

	default:
		errors.WriteError(w, h.log, errors.BadRequest("Invalid mode"))
	}
}
