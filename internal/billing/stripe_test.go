package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload produces a Stripe-Signature header over the exact payload
// bytes, the same way Stripe's delivery infrastructure does.
func signPayload(t *testing.T, payload []byte, secret string, at time.Time) string {
	t.Helper()
	signed := fmt.Sprintf("%d.%s", at.Unix(), payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload() []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"object": "event",
		"api_version": %q,
		"type": "payment_intent.succeeded",
		"data": {
			"object": {
				"id": "pi_test_1",
				"object": "payment_intent",
				"amount": 1999,
				"metadata": {"order_id": "premium_monthly_1", "plan_id": "monthly", "user_id": "u1"}
			}
		}
	}`, stripe.APIVersion))
}

func TestVerifyWebhookSignature_Valid(t *testing.T) {
	svc := &stripeService{webhookSecret: testWebhookSecret}

	payload := eventPayload()
	header := signPayload(t, payload, testWebhookSecret, time.Now())

	event, err := svc.VerifyWebhookSignature(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_test_1", event.ID)
	assert.Equal(t, "payment_intent.succeeded", string(event.Type))
}

func TestVerifyWebhookSignature_TamperedBody(t *testing.T) {
	svc := &stripeService{webhookSecret: testWebhookSecret}

	payload := eventPayload()
	header := signPayload(t, payload, testWebhookSecret, time.Now())

	// Flip a single byte after signing.
	tampered := make([]byte, len(payload))
	copy(tampered, payload)
	tampered[len(tampered)/2] ^= 0x01

	_, err := svc.VerifyWebhookSignature(tampered, header)
	assert.Error(t, err)
}

func TestVerifyWebhookSignature_WrongSecret(t *testing.T) {
	svc := &stripeService{webhookSecret: testWebhookSecret}

	payload := eventPayload()
	header := signPayload(t, payload, "whsec_other_secret", time.Now())

	_, err := svc.VerifyWebhookSignature(payload, header)
	assert.Error(t, err)
}

func TestVerifyWebhookSignature_MalformedHeader(t *testing.T) {
	svc := &stripeService{webhookSecret: testWebhookSecret}

	for _, header := range []string{"", "garbage", "t=notanumber,v1=abc"} {
		_, err := svc.VerifyWebhookSignature(eventPayload(), header)
		assert.Error(t, err, "header %q should fail verification", header)
	}
}

func TestVerifyWebhookSignature_StaleTimestamp(t *testing.T) {
	svc := &stripeService{webhookSecret: testWebhookSecret}

	payload := eventPayload()
	// Well outside the default tolerance window.
	header := signPayload(t, payload, testWebhookSecret, time.Now().Add(-time.Hour))

	_, err := svc.VerifyWebhookSignature(payload, header)
	assert.Error(t, err)
}
