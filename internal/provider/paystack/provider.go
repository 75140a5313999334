// Package paystack implements the aggregator backend. Card payments go
// through a hosted checkout link; M-Pesa payments go through Paystack's
// mobile-money charge bridge, which behaves like a push provider.
//
// Conventions at this adapter's boundary:
//   - Paystack speaks subunits (KES cents), so amounts are multiplied by 100
//     on the way out and divided by 100 on the way back; both directions are
//     exact for whole-unit charges, and inbound division truncates
//   - canonical phone form is +2547XXXXXXXX with a leading plus
package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"attachly/internal/config"
	"attachly/internal/provider"
	"attachly/internal/provider/base"

	"github.com/rs/zerolog/log"
)

const subunitsPerUnit = 100

type Provider struct {
	cfg  config.PaystackCfg
	http *base.HTTPClient
}

func New(cfg config.PaystackCfg) *Provider {
	httpClient := base.NewHTTPClient("paystack", 20*time.Second)
	httpClient.SetBaseURL("https://api.paystack.co")
	return &Provider{cfg: cfg, http: httpClient}
}

func (p *Provider) Name() string { return "Paystack" }

// ToSubunits converts whole currency units to Paystack's smallest-unit
// representation. Exported for tests guarding the off-by-factor class of bug.
func ToSubunits(amount int64) int64 { return amount * subunitsPerUnit }

// FromSubunits converts back to whole units, truncating any remainder.
func FromSubunits(amount int64) int64 { return amount / subunitsPerUnit }

// Initiate starts a charge. A request carrying a phone number uses the
// mobile-money bridge (on-device prompt, no link); anything else falls back
// to a hosted checkout link.
func (p *Provider) Initiate(ctx context.Context, req provider.ChargeRequest) (*provider.ChargeResponse, error) {
	if p.cfg.SecretKey == "" {
		return nil, &provider.Error{Code: provider.ErrAuthFailed, Message: "paystack secret key not configured"}
	}
	if req.Phone != "" {
		return p.chargeMobileMoney(ctx, req)
	}
	return p.initializeTransaction(ctx, req)
}

func (p *Provider) chargeMobileMoney(ctx context.Context, req provider.ChargeRequest) (*provider.ChargeResponse, error) {
	phone, err := base.NormalizeKE(req.Phone)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"email":     req.Email,
		"amount":    ToSubunits(req.Amount),
		"currency":  req.Currency,
		"reference": req.Reference,
		"mobile_money": map[string]string{
			"phone":    "+" + phone,
			"provider": "mpesa",
		},
	}

	resp, err := p.post(ctx, "/charge", payload)
	if err != nil {
		return nil, err
	}

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Reference   string `json:"reference"`
			Status      string `json:"status"`
			DisplayText string `json:"display_text"`
		} `json:"data"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, &provider.Error{Code: provider.ErrResponseParse, Message: fmt.Sprintf("failed to parse charge response: %v", err)}
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return nil, &provider.Error{Code: provider.ErrAuthFailed, Message: out.Message}
	}
	if !out.Status {
		return nil, &provider.Error{Code: provider.ErrRequestRejected, Message: out.Message}
	}

	switch out.Data.Status {
	case "pay_offline", "pending", "send_pin", "send_otp":
		msg := out.Data.DisplayText
		if msg == "" {
			msg = "Check your phone and authorize the payment"
		}
		log.Info().
			Str("provider", "paystack").
			Str("reference", req.Reference).
			Int64("amount", req.Amount).
			Msg("mobile money charge initiated")
		return &provider.ChargeResponse{
			ProviderRef:     out.Data.Reference,
			Status:          provider.StatusPending,
			CustomerMessage: msg,
		}, nil
	default:
		// A "charge attempted" style status is not an error to Paystack, but
		// the payer got nothing actionable; rewrite it into a retry
		// instruction instead of passing the provider wording through.
		return nil, &provider.Error{
			Code:    provider.ErrRequestRejected,
			Message: "payment could not be started - check the phone number and try again, or pay by card",
		}
	}
}

func (p *Provider) initializeTransaction(ctx context.Context, req provider.ChargeRequest) (*provider.ChargeResponse, error) {
	payload := map[string]interface{}{
		"email":        req.Email,
		"amount":       ToSubunits(req.Amount),
		"currency":     req.Currency,
		"reference":    req.Reference,
		"callback_url": p.cfg.CallbackURL,
	}

	resp, err := p.post(ctx, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, &provider.Error{Code: provider.ErrResponseParse, Message: fmt.Sprintf("failed to parse initialize response: %v", err)}
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return nil, &provider.Error{Code: provider.ErrAuthFailed, Message: out.Message}
	}
	if !out.Status {
		return nil, &provider.Error{Code: provider.ErrRequestRejected, Message: out.Message}
	}

	log.Info().
		Str("provider", "paystack").
		Str("reference", req.Reference).
		Int64("amount", req.Amount).
		Msg("hosted checkout initialized")

	return &provider.ChargeResponse{
		ProviderRef: out.Data.Reference,
		PaymentLink: out.Data.AuthorizationURL,
		Status:      provider.StatusPending,
	}, nil
}

func (p *Provider) post(ctx context.Context, endpoint string, payload interface{}) (*base.HTTPResponse, error) {
	resp, err := p.http.PostJSON(ctx, endpoint, payload, map[string]string{
		"Authorization": "Bearer " + p.cfg.SecretKey,
	})
	if err != nil {
		return nil, &provider.Error{Code: provider.ErrUnavailable, Message: fmt.Sprintf("paystack request failed: %v", err)}
	}
	return resp, nil
}

// VerifyCallback checks the X-Paystack-Signature header: HMAC-SHA512 of the
// exact raw payload bytes keyed with the secret key, hex encoded. With no
// secret configured, verification is skipped (development trust decision).
func (p *Provider) VerifyCallback(body []byte, signature string) bool {
	if p.cfg.SecretKey == "" {
		log.Debug().Str("provider", "paystack").Msg("secret key not configured; skipping verification")
		return true
	}
	mac := hmac.New(sha512.New, []byte(p.cfg.SecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

// ParseCallback normalizes a Paystack webhook event. Only charge outcomes
// matter to reconciliation; every other event kind maps to CallbackIgnored.
func (p *Provider) ParseCallback(body []byte) (provider.CallbackEvent, error) {
	var cb struct {
		Event string `json:"event"`
		Data  struct {
			ID        int64  `json:"id"`
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"` // subunits
			Status    string `json:"status"`
			Customer  struct {
				Phone string `json:"phone"`
			} `json:"customer"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &cb); err != nil || cb.Event == "" {
		return provider.CallbackEvent{}, fmt.Errorf("unrecognized paystack callback shape")
	}

	evt := provider.CallbackEvent{
		Reference:     cb.Data.Reference,
		Amount:        FromSubunits(cb.Data.Amount),
		TransactionID: fmt.Sprintf("%d", cb.Data.ID),
		Phone:         cb.Data.Customer.Phone,
		Raw:           body,
	}
	switch cb.Event {
	case "charge.success":
		evt.Kind = provider.CallbackChargeSucceeded
	case "charge.failed":
		evt.Kind = provider.CallbackChargeFailed
	default:
		evt.Kind = provider.CallbackIgnored
	}
	return evt, nil
}
