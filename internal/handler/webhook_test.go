package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/vfarias/evapay/internal/billing"
	"github.com/vfarias/evapay/internal/domain"
)

// fakeVerifier implements billing.Service for the webhook path; only
// signature verification is exercised here.
type fakeVerifier struct {
	event     stripe.Event
	verifyErr error
	payloads  [][]byte
}

func (f *fakeVerifier) FindCustomerByEmail(email string) (*billing.Customer, error) {
	return nil, errors.New("not used")
}

func (f *fakeVerifier) CreateCustomer(email, userID string) (*billing.Customer, error) {
	return nil, errors.New("not used")
}

func (f *fakeVerifier) CreatePaymentIntent(params billing.IntentParams) (*billing.Intent, error) {
	return nil, errors.New("not used")
}

func (f *fakeVerifier) CreateEphemeralKey(customerID string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeVerifier) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	f.payloads = append(f.payloads, payload)
	if f.verifyErr != nil {
		return stripe.Event{}, f.verifyErr
	}
	return f.event, nil
}

// fakeEntitlement implements service.EntitlementService.
type fakeEntitlement struct {
	applyErr error
	applied  []stripe.Event
	record   *domain.Entitlement
	getErr   error
}

func (f *fakeEntitlement) ApplySucceededPayment(ctx context.Context, event stripe.Event) error {
	f.applied = append(f.applied, event)
	return f.applyErr
}

func (f *fakeEntitlement) GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.record, nil
}

func newWebhookMux(verifier *fakeVerifier, ent *fakeEntitlement) *http.ServeMux {
	mux := http.NewServeMux()
	NewWebhookHandler(verifier, ent, testLogger()).RegisterRoutes(mux)
	return mux
}

func succeededEvent() stripe.Event {
	return stripe.Event{
		ID:   "evt_1",
		Type: "payment_intent.succeeded",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"pi_1","metadata":{"user_id":"u1","plan_id":"annual"}}`)},
	}
}

func TestHandleStripeWebhook_Succeeded(t *testing.T) {
	verifier := &fakeVerifier{event: succeededEvent()}
	ent := &fakeEntitlement{}
	mux := newWebhookMux(verifier, ent)

	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["received"])

	require.Len(t, ent.applied, 1)
	assert.Equal(t, "evt_1", ent.applied[0].ID)
}

func TestHandleStripeWebhook_BadSignatureIsNotProcessed(t *testing.T) {
	verifier := &fakeVerifier{verifyErr: errors.New("signature mismatch")}
	ent := &fakeEntitlement{}
	mux := newWebhookMux(verifier, ent)

	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=wrong")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ent.applied, "unverified payload must never be processed")
}

func TestHandleStripeWebhook_VerifiesRawBodyBytes(t *testing.T) {
	verifier := &fakeVerifier{event: succeededEvent()}
	mux := newWebhookMux(verifier, &fakeEntitlement{})

	raw := `{"id":"evt_1",  "unformatted":   true}`
	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(raw))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, verifier.payloads, 1)
	assert.Equal(t, raw, string(verifier.payloads[0]), "body must reach verification byte-exact")
}

func TestHandleStripeWebhook_StoreFailureStillAcknowledged(t *testing.T) {
	verifier := &fakeVerifier{event: succeededEvent()}
	ent := &fakeEntitlement{applyErr: domain.Internal(errors.New("db down"), "entitlement", "Failed to persist entitlement")}
	mux := newWebhookMux(verifier, ent)

	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	// Verified events are acknowledged even when persistence fails, so
	// Stripe does not redeliver indefinitely.
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["received"])
}

func TestHandleStripeWebhook_OtherEventTypesAreIgnored(t *testing.T) {
	verifier := &fakeVerifier{event: stripe.Event{
		ID:   "evt_2",
		Type: "payment_intent.payment_failed",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"pi_2"}`)},
	}}
	ent := &fakeEntitlement{}
	mux := newWebhookMux(verifier, ent)

	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(`{"id":"evt_2"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ent.applied)
}

func TestHandleStripeWebhook_MethodNotAllowed(t *testing.T) {
	mux := newWebhookMux(&fakeVerifier{}, &fakeEntitlement{})

	req := httptest.NewRequest("GET", "/webhooks/stripe", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
