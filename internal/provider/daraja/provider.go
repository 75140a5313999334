// Package daraja implements the push-style M-Pesa backend over the Safaricom
// Daraja API. A charge triggers an STK prompt on the payer's device; the
// outcome arrives later on the callback URL.
//
// Conventions at this adapter's boundary:
//   - amounts are whole KES on both sides, the Daraja API itself speaks whole
//     shillings, so the conversion is the identity
//   - canonical phone form is 2547XXXXXXXX with no leading plus
package daraja

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"attachly/internal/config"
	"attachly/internal/provider"
	"attachly/internal/provider/base"

	"github.com/rs/zerolog/log"
)

type Provider struct {
	cfg    config.DarajaCfg
	http   *base.HTTPClient
	tokens *TokenCache
}

func New(cfg config.DarajaCfg) *Provider {
	httpClient := base.NewHTTPClient("daraja", 20*time.Second)
	httpClient.SetBaseURL(baseURL(cfg.Env))
	return &Provider{
		cfg:    cfg,
		http:   httpClient,
		tokens: NewTokenCache(),
	}
}

func (p *Provider) Name() string { return "M-Pesa (Safaricom Daraja)" }

func baseURL(env string) string {
	if env == "production" {
		return "https://api.safaricom.co.ke"
	}
	return "https://sandbox.safaricom.co.ke"
}

// Initiate triggers an STK push. A "request accepted" response means the
// payer is now looking at a PIN prompt; the result arrives via callback.
func (p *Provider) Initiate(ctx context.Context, req provider.ChargeRequest) (*provider.ChargeResponse, error) {
	phone, err := base.NormalizeKE(req.Phone)
	if err != nil {
		return nil, err
	}

	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(p.cfg.Shortcode + p.cfg.Passkey + timestamp))

	payload := map[string]interface{}{
		"BusinessShortCode": p.cfg.Shortcode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount,
		"PartyA":            phone,
		"PartyB":            p.cfg.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       p.cfg.CallbackURL,
		"AccountReference":  req.Reference,
		"TransactionDesc":   req.Description,
	}

	resp, err := p.http.PostJSON(ctx, "/mpesa/stkpush/v1/processrequest", payload, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return nil, &provider.Error{Code: provider.ErrUnavailable, Message: fmt.Sprintf("stk push request failed: %v", err)}
	}

	var out struct {
		MerchantRequestID   string `json:"MerchantRequestID"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		CustomerMessage     string `json:"CustomerMessage"`
		ErrorCode           string `json:"errorCode"`
		ErrorMessage        string `json:"errorMessage"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, &provider.Error{Code: provider.ErrResponseParse, Message: fmt.Sprintf("failed to parse STK response: %v", err)}
	}

	if out.ErrorCode != "" {
		return nil, &provider.Error{Code: provider.ErrRequestRejected, Message: out.ErrorMessage}
	}
	if out.ResponseCode != "0" {
		return nil, &provider.Error{Code: provider.ErrRequestRejected, Message: out.ResponseDescription}
	}

	log.Info().
		Str("provider", "daraja").
		Str("checkout_request_id", out.CheckoutRequestID).
		Str("reference", req.Reference).
		Int64("amount", req.Amount).
		Msg("stk push initiated")

	msg := out.CustomerMessage
	if msg == "" {
		msg = "Check your phone and enter your M-Pesa PIN to complete payment"
	}
	return &provider.ChargeResponse{
		ProviderRef:     out.CheckoutRequestID,
		Status:          provider.StatusPending,
		CustomerMessage: msg,
	}, nil
}

// accessToken returns a cached OAuth token, fetching a fresh one only when
// the cached slot is empty or near expiry.
func (p *Provider) accessToken(ctx context.Context) (string, error) {
	if tok, ok := p.tokens.Get(); ok {
		return tok, nil
	}

	if p.cfg.ConsumerKey == "" || p.cfg.ConsumerSecret == "" {
		return "", &provider.Error{Code: provider.ErrAuthFailed, Message: "daraja consumer key/secret not configured"}
	}

	auth := base64.StdEncoding.EncodeToString([]byte(p.cfg.ConsumerKey + ":" + p.cfg.ConsumerSecret))
	resp, err := p.http.Get(ctx, "/oauth/v1/generate?grant_type=client_credentials", map[string]string{
		"Authorization": "Basic " + auth,
	})
	if err != nil {
		return "", &provider.Error{Code: provider.ErrAuthFailed, Message: fmt.Sprintf("token request failed: %v", err)}
	}
	if !resp.IsSuccess() {
		return "", &provider.Error{Code: provider.ErrAuthFailed, Message: fmt.Sprintf("token request rejected with status %d", resp.StatusCode)}
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := resp.Decode(&out); err != nil || out.AccessToken == "" {
		return "", &provider.Error{Code: provider.ErrAuthFailed, Message: "unparseable token response"}
	}

	expiresIn, err := strconv.Atoi(out.ExpiresIn)
	if err != nil {
		expiresIn = 3600
	}
	p.tokens.Set(out.AccessToken, time.Duration(expiresIn)*time.Second)
	return out.AccessToken, nil
}

// VerifyCallback checks an HMAC-SHA256 hex signature over the raw payload
// bytes. With no webhook secret configured, verification is skipped, a
// deliberate trust decision for sandbox deployments.
func (p *Provider) VerifyCallback(body []byte, signature string) bool {
	if p.cfg.WebhookSecret == "" {
		log.Debug().Str("provider", "daraja").Msg("webhook secret not configured; skipping verification")
		return true
	}
	mac := hmac.New(sha256.New, []byte(p.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

// ParseCallback normalizes a Daraja STK callback.
func (p *Provider) ParseCallback(body []byte) (provider.CallbackEvent, error) {
	var cb struct {
		Body struct {
			StkCallback struct {
				MerchantRequestID string `json:"MerchantRequestID"`
				CheckoutRequestID string `json:"CheckoutRequestID"`
				ResultCode        int    `json:"ResultCode"`
				ResultDesc        string `json:"ResultDesc"`
				CallbackMetadata  struct {
					Item []struct {
						Name  string `json:"Name"`
						Value any    `json:"Value"`
					} `json:"Item"`
				} `json:"CallbackMetadata"`
			} `json:"stkCallback"`
		} `json:"Body"`
	}
	if err := json.Unmarshal(body, &cb); err != nil || cb.Body.StkCallback.CheckoutRequestID == "" {
		return provider.CallbackEvent{}, fmt.Errorf("unrecognized daraja callback shape")
	}

	evt := provider.CallbackEvent{
		Kind:        provider.CallbackChargeFailed,
		ProviderRef: cb.Body.StkCallback.CheckoutRequestID,
		Raw:         body,
	}
	if cb.Body.StkCallback.ResultCode == 0 {
		evt.Kind = provider.CallbackChargeSucceeded
	}

	for _, it := range cb.Body.StkCallback.CallbackMetadata.Item {
		switch it.Name {
		case "Amount":
			evt.Amount = numToInt64(it.Value)
		case "MpesaReceiptNumber":
			if s, ok := it.Value.(string); ok {
				evt.TransactionID = s
			}
		case "PhoneNumber":
			evt.Phone = numToString(it.Value)
		case "AccountReference":
			if s, ok := it.Value.(string); ok {
				evt.Reference = s
			}
		}
	}
	return evt, nil
}

func numToInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return int64(f)
		}
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	}
	return 0
}

func numToString(v any) string {
	switch n := v.(type) {
	case float64:
		return fmt.Sprintf("%.0f", n)
	case string:
		return n
	case json.Number:
		return n.String()
	}
	return ""
}
