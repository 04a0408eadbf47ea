package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hardbanrecords/hardban-lab/internal/api/middleware"
	"github.com/hardbanrecords/hardban-lab/internal/events"
)

const headerEventType = "X-Event-Type"

type webhookAccepted struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
	Type    string `json:"type"`
	Status  string `json:"status"`
}

// handleWebhook accepts a delivery from a partner store channel and hands it to the
// publisher. Unknown channels are 404 so that the route set does not leak.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())
	channel := strings.ToLower(r.PathValue("channel"))

	if !events.IsKnownChannel(channel) {
		WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))

		return
	}

	if !hasJSONContentType(r.Header.Get("Content-Type")) {
		WriteErrorResponse(w, r, s.logger, UnsupportedMediaType("Content-Type must be application/json"))

		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize+1))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("Failed to read request body"))

		return
	}

	if int64(len(body)) > s.config.MaxRequestSize {
		WriteErrorResponse(w, r, s.logger, PayloadTooLarge("Webhook payload too large"))

		return
	}

	event, err := events.NewEvent(channel, r.Header.Get(headerEventType), body, s.now())
	if err != nil {
		if errors.Is(err, events.ErrInvalidPayload) {
			WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

			return
		}

		WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))

		return
	}

	if s.deps.Publisher == nil {
		WriteErrorResponse(w, r, s.logger, ServiceUnavailable("Webhook delivery is not configured"))

		return
	}

	if err := s.deps.Publisher.Publish(r.Context(), event); err != nil {
		s.logger.Error("Failed to publish webhook event",
			slog.String("correlation_id", correlationID),
			slog.String("event_id", event.ID),
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, ServiceUnavailable("Failed to accept webhook, retry later"))

		return
	}

	s.writeJSON(w, r, http.StatusAccepted, webhookAccepted{
		ID:      event.ID,
		Channel: event.Channel,
		Type:    event.Type,
		Status:  "accepted",
	})
}
