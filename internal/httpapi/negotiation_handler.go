package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/team-channel/internal/application"
	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/metrics"
)

type negotiationService interface {
	Approve(ctx context.Context, principal application.Principal, messageID int64) (application.ApproveResult, error)
	Reject(ctx context.Context, principal application.Principal, messageID int64) (channel.Message, error)
	Acknowledge(ctx context.Context, principal application.Principal, messageID int64) (channel.Message, error)
	CheckConflict(ctx context.Context, userID string, start, end time.Time, excludeScheduleID int64) (application.ConflictCheck, error)
}

// NegotiationHandler serves request resolution and the advisory conflict check.
type NegotiationHandler struct {
	service   negotiationService
	metrics   *metrics.Server
	responder responder
}

func NewNegotiationHandler(service negotiationService, m *metrics.Server, logger *slog.Logger) *NegotiationHandler {
	return &NegotiationHandler{service: service, metrics: m, responder: newResponder(logger)}
}

func (h *NegotiationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	messageID, ok := h.messageID(w, r)
	if !ok {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	result, err := h.service.Approve(r.Context(), principal, messageID)
	if err != nil {
		h.countOutcome(err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.count("approved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, approveResponse{
		Schedule: toSchedulePayload(result.Schedule),
		Message:  toMessagePayload(result.ResponseMessage),
	})
}

func (h *NegotiationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	messageID, ok := h.messageID(w, r)
	if !ok {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	response, err := h.service.Reject(r.Context(), principal, messageID)
	if err != nil {
		h.countOutcome(err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.count("rejected")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMessagePayload(response))
}

func (h *NegotiationHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	messageID, ok := h.messageID(w, r)
	if !ok {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	acked, err := h.service.Acknowledge(r.Context(), principal, messageID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMessagePayload(acked))
}

func (h *NegotiationHandler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	principal, _ := PrincipalFromContext(r.Context())
	userID := query.Get("user_id")
	if userID == "" {
		userID = principal.UserID
	}

	start, err := time.Parse(time.RFC3339, query.Get("start"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	end, err := time.Parse(time.RFC3339, query.Get("end"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	var excludeScheduleID int64
	if raw := query.Get("exclude_schedule_id"); raw != "" {
		excludeScheduleID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}

	check, err := h.service.CheckConflict(r.Context(), userID, start, end, excludeScheduleID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictResponse{HasConflict: check.HasConflict})
}

func (h *NegotiationHandler) messageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["messageID"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMessageID)
		return 0, false
	}
	return id, true
}

func (h *NegotiationHandler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.Negotiations.WithLabelValues(outcome).Inc()
	}
}

func (h *NegotiationHandler) countOutcome(err error) {
	switch {
	case errors.Is(err, application.ErrScheduleConflict):
		h.count("conflict")
	case errors.Is(err, application.ErrAlreadyResolved):
		h.count("already_resolved")
	}
}
