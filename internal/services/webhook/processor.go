package webhook

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"attachly/internal/provider"
	"attachly/internal/reference"
)

const (
	processTimeout  = 30 * time.Second
	maxRetryElapsed = 20 * time.Second
)

// Confirmer applies a parsed charge event to the owning application.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, evt provider.CallbackEvent) error
}

// Processor runs provider callbacks to completion after the HTTP layer has
// already acknowledged them. Deliveries that cannot be applied are logged
// and dropped; the provider will redeliver or reconciliation catches them.
type Processor struct {
	providers *provider.Registry
	apps      Confirmer
}

func NewProcessor(providers *provider.Registry, apps Confirmer) *Processor {
	return &Processor{providers: providers, apps: apps}
}

// Process verifies, parses and applies a single callback delivery. It is
// detached from the request that carried the delivery and runs under its
// own deadline.
func (p *Processor) Process(providerName string, body []byte, signature string) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	prov, err := p.providers.Get(providerName)
	if err != nil {
		log.Warn().Str("provider", providerName).Msg("callback for unknown provider dropped")
		return
	}

	if !prov.VerifyCallback(body, signature) {
		log.Warn().Str("provider", providerName).Msg("callback signature rejected")
		return
	}

	evt, err := prov.ParseCallback(body)
	if err != nil {
		log.Warn().Err(err).Str("provider", providerName).Msg("unparseable callback dropped")
		return
	}
	if evt.Kind == provider.CallbackIgnored {
		log.Debug().Str("provider", providerName).Msg("callback event kind ignored")
		return
	}
	// Deliveries correlate by our reference or, failing that, by the
	// provider's own id (Daraja failure callbacks carry only the latter).
	if _, ok := reference.Parse(evt.Reference); !ok && evt.ProviderRef == "" {
		log.Warn().
			Str("provider", providerName).
			Str("reference", evt.Reference).
			Msg("callback reference not ours, dropped")
		return
	}

	// The confirmation write is the one step worth retrying: a transient
	// store error here loses a payment the customer already made.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = maxRetryElapsed

	op := func() error { return p.apps.ConfirmPayment(ctx, evt) }
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		log.Error().
			Err(err).
			Str("provider", providerName).
			Str("reference", evt.Reference).
			Str("transaction_id", evt.TransactionID).
			Msg("payment confirmation lost after retries")
	}
}
