package processor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gigmarket/pkg/apperror"
	"gigmarket/pkg/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.ProcessorConfig{BaseURL: srv.URL, SecretKey: "sk_test", Timeout: timeout}, zap.NewNop())
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(50000), ToMinorUnits(decimal.RequireFromString("500")))
	assert.Equal(t, int64(3333), ToMinorUnits(decimal.RequireFromString("33.33")))
	assert.Equal(t, int64(1001), ToMinorUnits(decimal.RequireFromString("10.005")))
}

func TestCreatePaymentIntent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "50000", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "p1", r.PostForm.Get("metadata[projectId]"))
		_, _ = w.Write([]byte(`{"id":"pi_1","status":"requires_payment_method","amount":50000,"currency":"usd","client_secret":"cs_1","metadata":{"projectId":"p1"}}`))
	}, time.Second)

	intent, err := client.CreatePaymentIntent(context.Background(), decimal.NewFromInt(500), "USD", map[string]string{"projectId": "p1"})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, "cs_1", intent.ClientSecret)
	assert.True(t, decimal.NewFromInt(500).Equal(intent.Amount))
	assert.Equal(t, "p1", intent.Metadata["projectId"])
}

func TestRetrieveIntentErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperror.Kind
	}{
		{"not found", http.StatusNotFound, `{"error":{"message":"No such payment_intent"}}`, apperror.KindNotFound},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"Invalid id"}}`, apperror.KindInvalidArgument},
		{"server error", http.StatusBadGateway, `{}`, apperror.KindServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, time.Second)
			_, err := client.RetrieveIntent(context.Background(), "pi_x")
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
}

func TestRetrieveIntentTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, 50*time.Millisecond)

	_, err := client.RetrieveIntent(context.Background(), "pi_slow")
	require.Error(t, err)
	assert.Equal(t, apperror.KindServiceUnavailable, apperror.KindOf(err))
}

func TestCreateSubscription(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "price_pro", r.PostForm.Get("items[0][price]"))
		assert.Equal(t, "default_incomplete", r.PostForm.Get("payment_behavior"))
		_, _ = w.Write([]byte(`{"id":"sub_1","customer":"cus_1","status":"incomplete","current_period_end":1767225600,
			"latest_invoice":{"payment_intent":{"client_secret":"cs_sub"}}}`))
	}, time.Second)

	sub, err := client.CreateSubscription(context.Background(), "cus_1", "price_pro")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, "cs_sub", sub.ClientSecret)
	assert.Equal(t, int64(1767225600), sub.CurrentPeriodEnd.Unix())
}
