// Package api exposes HTTP handlers for profiles, activities and statistics.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/domain"
)

const (
	emptyHistoryMessage = "No activities are available!"
	emptyStatsMessage   = "Add some past activities first!"
	profileLocation     = "/v1/profile"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	log     zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, log zerolog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, MeResponse{})
		return
	}
	hasProfile, err := h.service.HasProfile(r.Context(), claims.Subject)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{
		Authenticated:   true,
		Subject:         claims.Subject,
		ProfileRequired: !hasProfile,
	})
}

func (h *Handler) createProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, true)
	if !ok {
		return
	}
	input, err := decodeProfile(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	profile, err := h.service.CreateProfile(r.Context(), claims.Subject, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", profileLocation)
	writeJSON(w, http.StatusCreated, toProfileView(*profile))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, false)
	if !ok {
		return
	}
	profile, err := h.service.Profile(r.Context(), claims.Subject)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, true)
	if !ok {
		return
	}
	// The missing-profile state takes precedence over field errors.
	if _, err := h.service.Profile(r.Context(), claims.Subject); err != nil {
		h.fail(w, r, err)
		return
	}
	input, err := decodeProfile(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	profile, err := h.service.UpdateProfile(r.Context(), claims.Subject, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, true)
	if !ok {
		return
	}
	if _, err := h.service.Profile(r.Context(), claims.Subject); err != nil {
		h.fail(w, r, err)
		return
	}
	input, err := decodeActivity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	detail, err := h.service.CreateActivity(r.Context(), claims.Subject, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/activities/"+detail.Activity.ID)
	writeJSON(w, http.StatusCreated, toDetailView(*detail))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, false)
	if !ok {
		return
	}
	asOf, err := domain.ParseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if asOf.IsZero() {
		asOf = h.service.Now()
	}

	activities, err := h.service.History(r.Context(), claims.Subject, asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := HistoryResponse{
		AsOf:  domain.CalendarDate(asOf).Format(domain.DateLayout),
		Items: make([]ActivityView, 0, len(activities)),
	}
	for _, a := range activities {
		resp.Items = append(resp.Items, toActivityView(a))
	}
	if len(resp.Items) == 0 {
		resp.Message = emptyHistoryMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, false)
	if !ok {
		return
	}
	detail, err := h.service.GetActivity(r.Context(), claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailView(*detail))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, true)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	// Ownership is checked before the body so a foreign id never leaks field errors.
	if _, err := h.service.GetActivity(r.Context(), claims.Subject, id); err != nil {
		h.fail(w, r, err)
		return
	}
	input, err := decodeActivity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	detail, err := h.service.UpdateActivity(r.Context(), claims.Subject, id, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailView(*detail))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, true)
	if !ok {
		return
	}
	if err := h.service.DeleteActivity(r.Context(), claims.Subject, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, false)
	if !ok {
		return
	}
	asOf, err := domain.ParseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	stats, available, err := h.service.Statistics(r.Context(), claims.Subject, asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !available {
		writeJSON(w, http.StatusOK, StatsResponse{Available: false, Message: emptyStatsMessage})
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Available: true, StatsView: toStatsView(stats)})
}

// requireScope resolves the caller's claims and checks the read or write scope.
func requireScope(w http.ResponseWriter, r *http.Request, write bool) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if write && !claims.CanWrite() {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+auth.ScopeActivitiesWrite+" required")
		return nil, false
	}
	if !write && !claims.CanRead() {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+auth.ScopeActivitiesRead+" required")
		return nil, false
	}
	return claims, true
}

// fail maps domain errors onto HTTP responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, errMalformedBody):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrAnonymous):
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
	case errors.Is(err, domain.ErrProfileNotFound):
		w.Header().Set("Location", profileLocation)
		writeError(w, http.StatusConflict, "profile_required", "create a profile first")
	case errors.Is(err, domain.ErrProfileExists):
		w.Header().Set("Location", profileLocation)
		writeError(w, http.StatusConflict, "profile_exists", "profile already exists")
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	default:
		h.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
