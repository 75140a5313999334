package provider

import "context"

// Provider is the uniform capability set over payment backends. One variant
// exists per backend; selection happens once at startup, never per request.
type Provider interface {
	Name() string

	// Initiate starts a charge. Push-style backends trigger an on-device
	// prompt and return a correlation id; redirect-style backends return a
	// hosted payment link. An accepted-but-outcome-pending response is a
	// StatusPending success, not an error.
	Initiate(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)

	// VerifyCallback authenticates a webhook delivery over the exact raw
	// bytes received, before any parsing. When the adapter has no secret
	// configured it reports true (verification skipped).
	VerifyCallback(body []byte, signature string) bool

	// ParseCallback normalizes a webhook payload. Unrecognized shapes are an
	// error; recognized-but-irrelevant events come back as CallbackIgnored.
	ParseCallback(body []byte) (CallbackEvent, error)
}
