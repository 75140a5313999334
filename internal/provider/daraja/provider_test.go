package daraja

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"attachly/internal/config"
	"attachly/internal/provider"
)

func testProvider(t *testing.T, handler http.Handler) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := New(config.DarajaCfg{
		Env:            "sandbox",
		Shortcode:      "174379",
		Passkey:        "passkey",
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		CallbackURL:    "https://example.test/webhooks/daraja",
		WebhookSecret:  "whsec",
	})
	p.http.SetBaseURL(srv.URL)
	return p, srv
}

func stkMux(t *testing.T, tokenCalls *int32, stk func(w http.ResponseWriter, body map[string]any)) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		stk(w, body)
	})
	return mux
}

func TestInitiatePending(t *testing.T) {
	var tokenCalls int32
	var gotAmount float64
	var gotPhone, gotRef string

	p, _ := testProvider(t, stkMux(t, &tokenCalls, func(w http.ResponseWriter, body map[string]any) {
		gotAmount = body["Amount"].(float64)
		gotPhone = body["PhoneNumber"].(string)
		gotRef = body["AccountReference"].(string)
		json.NewEncoder(w).Encode(map[string]string{
			"MerchantRequestID":   "mr-1",
			"CheckoutRequestID":   "ws_CO_123",
			"ResponseCode":        "0",
			"ResponseDescription": "Success",
			"CustomerMessage":     "Success. Request accepted for processing",
		})
	}))

	resp, err := p.Initiate(context.Background(), provider.ChargeRequest{
		Reference: "APP-9-1700000000",
		Amount:    350,
		Currency:  "KES",
		Phone:     "0712345678",
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if resp.Status != provider.StatusPending {
		t.Errorf("status = %s, want pending", resp.Status)
	}
	if resp.ProviderRef != "ws_CO_123" {
		t.Errorf("provider ref = %s", resp.ProviderRef)
	}
	if resp.PaymentLink != "" {
		t.Errorf("push provider must not return a payment link, got %s", resp.PaymentLink)
	}
	// whole KES pass through untouched
	if gotAmount != 350 {
		t.Errorf("amount on the wire = %v, want 350", gotAmount)
	}
	if gotPhone != "254712345678" {
		t.Errorf("phone on the wire = %s, want canonical 254712345678", gotPhone)
	}
	if gotRef != "APP-9-1700000000" {
		t.Errorf("reference on the wire = %s", gotRef)
	}
}

func TestInitiateTokenCached(t *testing.T) {
	var tokenCalls int32
	p, _ := testProvider(t, stkMux(t, &tokenCalls, func(w http.ResponseWriter, _ map[string]any) {
		json.NewEncoder(w).Encode(map[string]string{"CheckoutRequestID": "x", "ResponseCode": "0"})
	}))

	for i := 0; i < 3; i++ {
		if _, err := p.Initiate(context.Background(), provider.ChargeRequest{Reference: "APP-1-1", Amount: 10, Phone: "0712345678"}); err != nil {
			t.Fatalf("Initiate #%d: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&tokenCalls); n != 1 {
		t.Errorf("token fetched %d times, want 1 (cached)", n)
	}

	// a slot within the refresh margin forces one re-fetch
	p.tokens.Set("stale", time.Minute)
	if _, err := p.Initiate(context.Background(), provider.ChargeRequest{Reference: "APP-1-2", Amount: 10, Phone: "0712345678"}); err != nil {
		t.Fatalf("Initiate after stale: %v", err)
	}
	if n := atomic.LoadInt32(&tokenCalls); n != 2 {
		t.Errorf("token fetched %d times after staleness, want 2", n)
	}
}

func TestInitiateRejected(t *testing.T) {
	var tokenCalls int32
	p, _ := testProvider(t, stkMux(t, &tokenCalls, func(w http.ResponseWriter, _ map[string]any) {
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":        "1",
			"ResponseDescription": "Invalid PhoneNumber",
			"CheckoutRequestID":   "x",
		})
	}))

	_, err := p.Initiate(context.Background(), provider.ChargeRequest{Reference: "APP-1-1", Amount: 10, Phone: "0712345678"})
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Code != provider.ErrRequestRejected {
		t.Fatalf("err = %v, want code %s", err, provider.ErrRequestRejected)
	}
}

func TestInitiateMissingCredentials(t *testing.T) {
	p := New(config.DarajaCfg{Env: "sandbox", Shortcode: "174379"})
	_, err := p.Initiate(context.Background(), provider.ChargeRequest{Reference: "APP-1-1", Amount: 10, Phone: "0712345678"})
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Code != provider.ErrAuthFailed {
		t.Fatalf("err = %v, want code %s", err, provider.ErrAuthFailed)
	}
}

func TestInitiateInvalidPhone(t *testing.T) {
	p := New(config.DarajaCfg{Env: "sandbox"})
	_, err := p.Initiate(context.Background(), provider.ChargeRequest{Reference: "APP-1-1", Amount: 10, Phone: "12"})
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Code != provider.ErrInvalidPhone {
		t.Fatalf("err = %v, want code %s", err, provider.ErrInvalidPhone)
	}
}

const stkSuccessCallback = `{"Body":{"stkCallback":{"MerchantRequestID":"mr-1","CheckoutRequestID":"ws_CO_123","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":350.0},{"Name":"MpesaReceiptNumber","Value":"RKTQDM7W6S"},{"Name":"PhoneNumber","Value":254712345678},{"Name":"AccountReference","Value":"APP-9-1700000000"}]}}}}`

func TestParseCallbackSuccess(t *testing.T) {
	p := New(config.DarajaCfg{Env: "sandbox"})
	evt, err := p.ParseCallback([]byte(stkSuccessCallback))
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}
	if evt.Kind != provider.CallbackChargeSucceeded {
		t.Errorf("kind = %s", evt.Kind)
	}
	if evt.Amount != 350 {
		t.Errorf("amount = %d, want 350 whole units", evt.Amount)
	}
	if evt.TransactionID != "RKTQDM7W6S" {
		t.Errorf("transaction id = %s", evt.TransactionID)
	}
	if evt.Reference != "APP-9-1700000000" {
		t.Errorf("reference = %s", evt.Reference)
	}
	if evt.ProviderRef != "ws_CO_123" {
		t.Errorf("provider ref = %s", evt.ProviderRef)
	}
	if evt.Phone != "254712345678" {
		t.Errorf("phone = %s", evt.Phone)
	}
}

func TestParseCallbackFailure(t *testing.T) {
	p := New(config.DarajaCfg{Env: "sandbox"})
	payload := `{"Body":{"stkCallback":{"MerchantRequestID":"mr-1","CheckoutRequestID":"ws_CO_123","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	evt, err := p.ParseCallback([]byte(payload))
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}
	if evt.Kind != provider.CallbackChargeFailed {
		t.Errorf("kind = %s, want charge_failed", evt.Kind)
	}
	// failures carry no metadata block, so the checkout id is the only
	// handle the confirmation path can correlate on
	if evt.ProviderRef != "ws_CO_123" {
		t.Errorf("provider ref = %s, want ws_CO_123", evt.ProviderRef)
	}
	if evt.Reference != "" {
		t.Errorf("reference = %q, want empty", evt.Reference)
	}
}

func TestParseCallbackUnrecognized(t *testing.T) {
	p := New(config.DarajaCfg{Env: "sandbox"})
	if _, err := p.ParseCallback([]byte(`{"hello":"world"}`)); err == nil {
		t.Fatal("expected error for unrecognized shape")
	}
	if _, err := p.ParseCallback([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestVerifyCallback(t *testing.T) {
	p := New(config.DarajaCfg{Env: "sandbox", WebhookSecret: "whsec"})
	body := []byte(stkSuccessCallback)

	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !p.VerifyCallback(body, sig) {
		t.Error("valid signature rejected")
	}
	if p.VerifyCallback(body, "deadbeef") {
		t.Error("invalid signature accepted")
	}
	// verification is over exact raw bytes; a changed body must fail
	if p.VerifyCallback(append(body, ' '), sig) {
		t.Error("signature accepted for altered body")
	}

	// missing secret means verification is skipped, not failed
	open := New(config.DarajaCfg{Env: "sandbox"})
	if !open.VerifyCallback(body, "") {
		t.Error("unconfigured secret should skip verification")
	}
}
