package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"

	"attachly/internal/config"
	"attachly/internal/provider"
	"attachly/internal/provider/daraja"
	"attachly/internal/reference"
)

type scriptedProvider struct {
	verifyOK bool
	evt      provider.CallbackEvent
	parseErr error
}

func (s *scriptedProvider) Name() string { return "scripted" }
func (s *scriptedProvider) Initiate(context.Context, provider.ChargeRequest) (*provider.ChargeResponse, error) {
	return nil, errors.New("not used")
}
func (s *scriptedProvider) VerifyCallback([]byte, string) bool { return s.verifyOK }
func (s *scriptedProvider) ParseCallback([]byte) (provider.CallbackEvent, error) {
	return s.evt, s.parseErr
}

type recordingConfirmer struct {
	mu    sync.Mutex
	calls []provider.CallbackEvent
	errs  []error
}

func (r *recordingConfirmer) ConfirmPayment(_ context.Context, evt provider.CallbackEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, evt)
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return err
	}
	return nil
}

func (r *recordingConfirmer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func setup(p provider.Provider) (*Processor, *recordingConfirmer) {
	reg := provider.NewRegistry()
	reg.Register("scripted", p)
	conf := &recordingConfirmer{}
	return NewProcessor(reg, conf), conf
}

func TestProcessAppliesValidDelivery(t *testing.T) {
	ref := reference.Build(42)
	prov := &scriptedProvider{verifyOK: true, evt: provider.CallbackEvent{
		Kind: provider.CallbackChargeSucceeded, Reference: ref, Amount: 350, TransactionID: "TX1",
	}}
	proc, conf := setup(prov)

	proc.Process("scripted", []byte(`{}`), "sig")

	if conf.count() != 1 {
		t.Fatalf("confirmations = %d, want 1", conf.count())
	}
	if conf.calls[0].Reference != ref || conf.calls[0].TransactionID != "TX1" {
		t.Errorf("confirmed event = %+v", conf.calls[0])
	}
}

func TestProcessDropsBadSignature(t *testing.T) {
	prov := &scriptedProvider{verifyOK: false, evt: provider.CallbackEvent{
		Kind: provider.CallbackChargeSucceeded, Reference: reference.Build(42),
	}}
	proc, conf := setup(prov)

	proc.Process("scripted", []byte(`{}`), "bogus")

	if conf.count() != 0 {
		t.Fatal("unverified delivery must never reach the confirmer")
	}
}

func TestProcessDropsIgnoredAndForeign(t *testing.T) {
	cases := []struct {
		name string
		evt  provider.CallbackEvent
	}{
		{"ignored kind", provider.CallbackEvent{Kind: provider.CallbackIgnored, Reference: reference.Build(42)}},
		{"foreign reference", provider.CallbackEvent{Kind: provider.CallbackChargeSucceeded, Reference: "ORDER-17"}},
		{"empty reference", provider.CallbackEvent{Kind: provider.CallbackChargeSucceeded}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc, conf := setup(&scriptedProvider{verifyOK: true, evt: tc.evt})
			proc.Process("scripted", []byte(`{}`), "sig")
			if conf.count() != 0 {
				t.Errorf("delivery reached the confirmer")
			}
		})
	}
}

func TestProcessDropsUnparseable(t *testing.T) {
	proc, conf := setup(&scriptedProvider{verifyOK: true, parseErr: errors.New("not json")})
	proc.Process("scripted", []byte(`garbage`), "sig")
	if conf.count() != 0 {
		t.Fatal("unparseable delivery reached the confirmer")
	}
}

func TestProcessUnknownProvider(t *testing.T) {
	proc, conf := setup(&scriptedProvider{verifyOK: true})
	proc.Process("other", []byte(`{}`), "sig")
	if conf.count() != 0 {
		t.Fatal("unknown provider delivery reached the confirmer")
	}
}

// Daraja cancellation callbacks have no metadata block and therefore no
// reference of ours; they must still reach the confirmer, carrying the
// checkout id.
func TestProcessRoutesDarajaFailureByCheckoutID(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("daraja", daraja.New(config.DarajaCfg{Env: "sandbox"}))
	conf := &recordingConfirmer{}
	proc := NewProcessor(reg, conf)

	payload := `{"Body":{"stkCallback":{"MerchantRequestID":"mr-1","CheckoutRequestID":"ws_CO_77","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	proc.Process("daraja", []byte(payload), "")

	if conf.count() != 1 {
		t.Fatalf("confirmations = %d, want 1", conf.count())
	}
	evt := conf.calls[0]
	if evt.Kind != provider.CallbackChargeFailed {
		t.Errorf("kind = %s, want charge_failed", evt.Kind)
	}
	if evt.ProviderRef != "ws_CO_77" {
		t.Errorf("provider ref = %q, want ws_CO_77", evt.ProviderRef)
	}
}

func TestProcessRetriesTransientConfirmError(t *testing.T) {
	prov := &scriptedProvider{verifyOK: true, evt: provider.CallbackEvent{
		Kind: provider.CallbackChargeSucceeded, Reference: reference.Build(7), Amount: 350,
	}}
	proc, conf := setup(prov)
	conf.errs = []error{errors.New("connection reset"), errors.New("connection reset")}

	proc.Process("scripted", []byte(`{}`), "sig")

	if conf.count() != 3 {
		t.Fatalf("confirm attempts = %d, want 3 (two transient failures then success)", conf.count())
	}
}
