package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"attachly/internal/services/webhook"
)

const maxWebhookBytes = 1 << 20

// ProviderWebhook receives charge callbacks. The delivery is acknowledged
// immediately and processed off the request: providers retry on non-2xx,
// and a slow confirmation write must not look like a failed delivery.
func ProviderWebhook(proc *webhook.Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := chi.URLParam(r, "provider")

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			log.Warn().Err(err).Str("provider", providerName).Msg("webhook body read failed")
			body = nil
		}
		signature := callbackSignature(r)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"received"}`))

		go proc.Process(providerName, body, signature)
	}
}

// Paystack signs with its own header; the Daraja endpoint uses a shared
// secret header of our choosing.
func callbackSignature(r *http.Request) string {
	if s := r.Header.Get("X-Paystack-Signature"); s != "" {
		return s
	}
	return r.Header.Get("X-Webhook-Signature")
}
