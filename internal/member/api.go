package member

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/paramean/targeting/internal/shared/auth"
	"github.com/paramean/targeting/internal/shared/errors"
	"github.com/paramean/targeting/internal/shared/events"
	"github.com/paramean/targeting/internal/shared/metrics"
)

// Handler provides HTTP handlers for members and settings
type Handler struct {
	store Store
	bus   events.Publisher
	log   *zap.Logger
}

// NewHandler creates a new member handler
func NewHandler(store Store, bus events.Publisher, log *zap.Logger) *Handler {
	return &Handler{store: store, bus: bus, log: log.Named("member")}
}

// MemberRoutes registers /members routes
func (h *Handler) MemberRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListMembers)
	r.Post("/", h.AddMember)
	r.Delete("/", h.DeleteMember)
	return r
}

// SettingsRoutes registers /settings routes
func (h *Handler) SettingsRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetSettings)
	r.Put("/", h.UpdateSettings)
	return r
}

// --- Member Handlers ---

// ListMembers lists all members ordered by id
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.List(r.Context())
	if err != nil {
		errors.WriteError(w, h.log, err)
		return
	}
	errors.WriteJSON(w, http.StatusOK, members)
}

// AddMember adds a member and recomputes eligibility
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, h.log, errors.BadRequest("invalid request body"))
		return
	}

	in, err := req.Validate()
	if err != nil {
		errors.WriteError(w, h.log, err)
		return
	}

	m, res, err := h.store.Add(r.Context(), in)
	if err != nil {
		if errors.Is(err, errors.ErrConflict) {
			metrics.RecordMemberMutation("add_duplicate")
		}
		errors.WriteError(w, h.log, err)
		return
	}
	metrics.RecordMemberMutation("add")
	h.recordRecalc(res)

	h.emit(r, events.MemberAdded, map[string]any{
		"id":         m.ID,
		"name":       m.Name,
		"familyName": m.FamilyName,
		"pmpm":       m.PMPM,
	})

	errors.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"id":      m.ID,
	})
}

// DeleteMember deletes the member named by the id query parameter
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		errors.WriteError(w, h.log, errors.BadRequest("Missing id"))
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		errors.WriteError(w, h.log, errors.BadRequest("invalid id"))
		return
	}

	deleted, res, err := h.store.Delete(r.Context(), id)
	if err != nil {
		errors.WriteError(w, h.log, err)
		return
	}
	metrics.RecordMemberMutation("delete")
	h.recordRecalc(res)

	if deleted {
		h.emit(r, events.MemberDeleted, map[string]any{"id": id})
	}

	errors.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// --- Settings Handlers ---

// GetSettings returns the eligibility band
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.Settings(r.Context())
	if err != nil {
		errors.WriteError(w, h.log, err)
		return
	}
	errors.WriteJSON(w, http.StatusOK, t)
}

// UpdateSettings replaces the eligibility band and recomputes eligibility
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, h.log, errors.BadRequest("invalid request body"))
		return
	}

	t, err := req.Validate()
	if err != nil {
		errors.WriteError(w, h.log, err)
		return
	}

	res, err := h.store.UpdateSettings(r.Context(), t)
	if err != nil {
		errors.WriteError(w, h.log, err)
		return
	}
	metrics.RecordMemberMutation("settings")
	h.recordRecalc(res)

	h.emit(r, events.SettingsUpdated, map[string]any{
		"pmpmLower": t.Lower,
		"pmpmUpper": t.Upper,
		"eligible":  res.Eligible,
	})

	errors.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) recordRecalc(res RecalcResult) {
	if res.Skipped {
		metrics.RecordRecalculation("skipped")
		h.log.Warn("eligibility recalculation skipped: no settings row")
		return
	}
	metrics.RecordRecalculation("ok")
	h.log.Debug("eligibility recalculated",
		zap.Int("members", res.Members),
		zap.Int("anchors", res.Anchors),
		zap.Int("eligible", res.Eligible),
	)
}

func (h *Handler) emit(r *http.Request, eventType string, data map[string]any) {
	event := events.NewEvent(eventType, "member", data).
		WithRequest(middleware.GetReqID(r.Context()))
	if user := auth.GetUser(r.Context()); user != nil {
		event = event.WithActor(user.Username)
	}
	events.Emit(r.Context(), h.bus, h.log, event)
}
