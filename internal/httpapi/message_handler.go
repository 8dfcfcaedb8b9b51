package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/team-channel/internal/application"
	"github.com/example/team-channel/internal/channel"
)

type messageService interface {
	FetchMessages(ctx context.Context, params application.FetchMessagesParams) ([]channel.Message, error)
	PostMessage(ctx context.Context, params application.PostMessageParams) (channel.Message, error)
}

// MessageHandler serves the channel message log.
type MessageHandler struct {
	service   messageService
	responder responder
}

func NewMessageHandler(service messageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{service: service, responder: newResponder(logger)}
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	vars := mux.Vars(r)
	key := channel.NewKey(vars["teamID"], vars["date"])

	var afterID int64
	if raw := r.URL.Query().Get("after_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		afterID = parsed
	}

	principal, _ := PrincipalFromContext(r.Context())

	messages, err := h.service.FetchMessages(r.Context(), application.FetchMessagesParams{
		Principal: principal,
		Key:       key,
		AfterID:   afterID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, messageListResponse{
		Messages: toMessagePayloads(messages),
	})
}

func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	vars := mux.Vars(r)
	key := channel.NewKey(vars["teamID"], vars["date"])

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	msg, err := h.service.PostMessage(r.Context(), application.PostMessageParams{
		Principal: principal,
		Key:       key,
		Input: application.MessageInput{
			Content:           req.Content,
			Type:              channel.MessageType(req.MessageType),
			RelatedScheduleID: req.RelatedScheduleID,
			RequestedStart:    req.RequestedStart,
			RequestedEnd:      req.RequestedEnd,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toMessagePayload(msg))
}
