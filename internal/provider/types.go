package provider

// ChargeRequest describes one payment attempt. Amount is always in whole
// currency units; each adapter converts to its native representation at its
// own boundary.
type ChargeRequest struct {
	Reference   string
	Amount      int64
	Currency    string
	Phone       string
	Email       string
	Description string
}

type ChargeStatus string

const (
	// StatusPending means the provider accepted the attempt and the outcome
	// arrives via callback. It is a success from the caller's perspective.
	StatusPending ChargeStatus = "pending"
	StatusFailed  ChargeStatus = "failed"
)

// ChargeResponse is the normalized result of an initiation.
type ChargeResponse struct {
	// ProviderRef is the provider's own correlation id for the attempt.
	ProviderRef string
	// PaymentLink is set by redirect-style providers only.
	PaymentLink string
	Status      ChargeStatus
	// CustomerMessage is a payer-facing hint ("check your phone", ...).
	CustomerMessage string
}

// CallbackKind classifies an inbound webhook delivery.
type CallbackKind string

const (
	CallbackChargeSucceeded CallbackKind = "charge_succeeded"
	CallbackChargeFailed    CallbackKind = "charge_failed"
	// CallbackIgnored covers every other event kind the provider may send
	// (pending, otp-required, transfers, ...). The reconciliation path drops
	// these without error.
	CallbackIgnored CallbackKind = "ignored"
)

// CallbackEvent is the normalized form of a webhook payload. Reference is
// our own correlation token when the payload carries it; ProviderRef is the
// provider's id for the attempt. Daraja failure callbacks omit the metadata
// block that carries Reference, so ProviderRef is the only handle they have.
type CallbackEvent struct {
	Kind          CallbackKind
	Reference     string
	ProviderRef   string
	Amount        int64 // whole currency units
	TransactionID string
	Phone         string
	Raw           []byte
}

// Error is a structured provider failure with the kind set at origin.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// Error codes.
const (
	ErrAuthFailed      = "auth_failed"       // credentials absent or rejected
	ErrRequestRejected = "request_rejected"  // provider refused the request
	ErrInvalidPhone    = "invalid_phone"
	ErrResponseParse   = "response_parse_failed"
	ErrUnavailable     = "provider_unavailable"
)
