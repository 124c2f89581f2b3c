package server

import (
	"io"
	"net/http"
)

// handleWebhookGitHub handles POST /api/webhooks/github.
// The signature is verified before anything else; an unsigned or mis-signed
// delivery is rejected without looking at the event.
func (s *Server) handleWebhookGitHub(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")

	if err := s.app.WebhookService.VerifySignature(body, r.Header.Get("X-Hub-Signature-256")); err != nil {
		s.logger.Warn().
			Err(err).
			Str("delivery_id", deliveryID).
			Msg("Webhook signature rejected")
		WriteError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	event := r.Header.Get("X-GitHub-Event")
	if event == "" {
		WriteError(w, http.StatusBadRequest, "missing X-GitHub-Event header")
		return
	}

	result, err := s.app.WebhookService.Process(r.Context(), event, deliveryID, body)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("event", event).
			Str("delivery_id", deliveryID).
			Msg("Webhook processing failed")
		WriteError(w, http.StatusInternalServerError, "failed to process webhook")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"result": result,
	})
}
