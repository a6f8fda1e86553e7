package payments

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test"

// memPayments tracks statuses the way the conditional MarkFailed update does.
type memPayments struct {
	mu     sync.Mutex
	status map[string]string
	calls  int
	err    error
}

func (m *memPayments) MarkFailed(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	s, ok := m.status[orderID]
	if !ok || s == StatusCompleted {
		return ErrStatusMismatch
	}
	m.status[orderID] = StatusFailed
	return nil
}

type countMetrics struct{ counts map[string]int }

func (c *countMetrics) Count(ctx context.Context, name string, dims map[string]string) {
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[name]++
}

func failedBody(orderID string) []byte {
	return []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"` + orderID + `","status":"failed"}}}}`)
}

func newVerifier(store *memPayments) (*Verifier, *countMetrics) {
	m := &countMetrics{}
	return NewVerifier(webhookSecret, store, m), m
}

func TestHandle_PaymentFailed(t *testing.T) {
	store := &memPayments{status: map[string]string{"order_1": StatusPending}}
	v, _ := newVerifier(store)
	body := failedBody("order_1")

	ack, err := v.Handle(context.Background(), body, Sign(webhookSecret, body))
	require.NoError(t, err)
	assert.Equal(t, "ok", ack.Status)
	assert.Equal(t, StatusFailed, store.status["order_1"])

	// redelivery is harmless
	ack, err = v.Handle(context.Background(), body, Sign(webhookSecret, body))
	require.NoError(t, err)
	assert.Equal(t, "ok", ack.Status)
	assert.Equal(t, StatusFailed, store.status["order_1"])
}

func TestHandle_BadSignatureChangesNothing(t *testing.T) {
	store := &memPayments{status: map[string]string{"order_1": StatusPending}}
	v, m := newVerifier(store)
	body := failedBody("order_1")
	sig := Sign(webhookSecret, body)

	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01
	flipped := []byte(sig)
	flipped[0] ^= 0x01

	testCases := []struct {
		name string
		body []byte
		sig  string
	}{
		{"body_bit", tampered, sig},
		{"signature_bit", body, string(flipped)},
		{"missing_signature", body, ""},
		{"wrong_secret", body, Sign("other", body)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ack, err := v.Handle(context.Background(), tc.body, tc.sig)
			assert.Nil(t, ack)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
	assert.Zero(t, store.calls)
	assert.Equal(t, StatusPending, store.status["order_1"])
	assert.Equal(t, len(testCases), m.counts["WebhookRejected"])
}

func TestHandle_AcknowledgedWithoutMutation(t *testing.T) {
	testCases := []struct {
		name string
		body []byte
	}{
		{"authorized", []byte(`{"event":"payment.authorized","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`)},
		{"unknown_event", []byte(`{"event":"refund.created","payload":{}}`)},
		{"undecodable", []byte(`not json`)},
		{"failed_without_order", []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1"}}}}`)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := &memPayments{status: map[string]string{"order_1": StatusPending}}
			v, _ := newVerifier(store)
			ack, err := v.Handle(context.Background(), tc.body, Sign(webhookSecret, tc.body))
			require.NoError(t, err)
			assert.Equal(t, "ok", ack.Status)
			assert.Zero(t, store.calls)
			assert.Equal(t, StatusPending, store.status["order_1"])
		})
	}
}

func TestHandle_BusinessMissesStillAcknowledged(t *testing.T) {
	testCases := []struct {
		name  string
		store *memPayments
	}{
		{"unknown_order", &memPayments{status: map[string]string{}}},
		{"completed_order", &memPayments{status: map[string]string{"order_1": StatusCompleted}}},
		{"store_error", &memPayments{status: map[string]string{}, err: errors.New("throttled")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, _ := newVerifier(tc.store)
			body := failedBody("order_1")
			ack, err := v.Handle(context.Background(), body, Sign(webhookSecret, body))
			require.NoError(t, err)
			assert.Equal(t, "ok", ack.Status)
			assert.Equal(t, 1, tc.store.calls)
		})
	}
	// a completed order never goes back
	assert.Equal(t, StatusCompleted, testCases[1].store.status["order_1"])
}
