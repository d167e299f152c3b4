package targeting

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/paramean/targeting/internal/shared/auth"
	"github.com/paramean/targeting/internal/shared/errors"
	"github.com/paramean/targeting/internal/shared/events"
	"github.com/paramean/targeting/internal/shared/metrics"
)

// Handler provides HTTP handlers for the targeting module
type Handler struct {
	svc *Service
	bus events.Publisher
	log *zap.Logger
}

// NewHandler creates a new targeting handler
func NewHandler(svc *Service, bus events.Publisher, log *zap.Logger) *Handler {
	return &Handler{svc: svc, bus: bus, log: log.Named("targeting")}
}

// Routes registers the targeting routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.RunTargeting)
	return r
}

// RunTargeting runs the funnel and household rollup for the posted criteria.
func (h *Handler) RunTargeting(w http.ResponseWriter, r *http.Request) {
	var c Criteria
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		errors.WriteError(w, h.log, errors.BadRequest("invalid request body"))
		return
	}

	res, err := h.svc.Run(r.Context(), c)
	metrics.RecordTargetingRun(err == nil)
	if err != nil {
		errors.WriteError(w, h.log, errors.Wrap(err, "failed to run targeting analysis"))
		return
	}

	final := res.Funnel[len(res.Funnel)-1]
	event := events.NewEvent(events.TargetingRun, "targeting", map[string]any{
		"criteria":        c,
		"startTotal":      res.Funnel[0].Total,
		"finalTotal":      final.Total,
		"remainingAdults": res.OutputTable.FamilyDefinition.RemainingAdults,
	}).WithRequest(middleware.GetReqID(r.Context()))
	if user := auth.GetUser(r.Context()); user != nil {
		event = event.WithActor(user.Username)
	}
	events.Emit(r.Context(), h.bus, h.log, event)

	errors.WriteJSON(w, http.StatusOK, res)
}
