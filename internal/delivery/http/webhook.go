package http

import (
	"io"
	"net/http"

	"github.com/egannguyen/cart-ecommerce/internal/payment/paystack"
)

// handleWebhook reads the raw body so the signature is checked over the exact bytes sent.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(paystack.SignatureHeader)
	if signature == "" {
		writeMessage(w, http.StatusBadRequest, "missing signature header")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "failed to read body")
		return
	}

	result, err := h.svc.Webhooks.Handle(r.Context(), body, signature)
	if err != nil {
		h.logger.Warnw("Webhook rejected", "err", err, "remote", r.RemoteAddr)
		h.writeError(w, r, err)
		return
	}
	h.logger.Infow("Webhook processed", "outcome", result.Outcome, "event", result.Event, "reference", result.Reference)
	writeJSON(w, http.StatusOK, result)
}
