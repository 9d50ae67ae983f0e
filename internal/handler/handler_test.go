package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gigmarket/contracts/mq"
	"gigmarket/internal/notify"
	"gigmarket/internal/processor"
	"gigmarket/pkg/apperror"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingPublisher struct {
	keys     []string
	payloads []any
	err      error
}

func (p *recordingPublisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	p.payloads = append(p.payloads, payload)
	return nil
}

const webhookSecret = "whsec_test"

func signedRequest(t *testing.T, body string, ts time.Time, secret string) *http.Request {
	t.Helper()
	sig := processor.Sign([]byte(body), secret, ts.Unix())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/processor", strings.NewReader(body))
	req.Header.Set(processor.SignatureHeader, fmt.Sprintf("t=%d,v1=%s", ts.Unix(), sig))
	return req
}

func serveWebhook(h *WebhookHandler, req *http.Request) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/webhooks/processor", h.ProcessorWebhook)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProcessorWebhook(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	body := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","status":"succeeded"}}}`

	t.Run("verified event is published", func(t *testing.T) {
		pub := &recordingPublisher{}
		h := NewWebhookHandler(pub, webhookSecret, zap.NewNop())
		h.now = func() time.Time { return now }

		w := serveWebhook(h, signedRequest(t, body, now, webhookSecret))
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, pub.payloads, 1)
		assert.Equal(t, mq.RoutingKeyProcessorEvent, pub.keys[0])

		p, ok := pub.payloads[0].(mq.ProcessorEventPayload)
		require.True(t, ok)
		assert.Equal(t, "evt_1", p.EventID)
		assert.Equal(t, processor.EventPaymentSucceeded, p.Type)
		assert.JSONEq(t, body, string(p.Body))
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		pub := &recordingPublisher{}
		h := NewWebhookHandler(pub, webhookSecret, zap.NewNop())
		h.now = func() time.Time { return now }

		w := serveWebhook(h, signedRequest(t, body, now, "whsec_other"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, pub.payloads)
	})

	t.Run("stale timestamp is rejected", func(t *testing.T) {
		pub := &recordingPublisher{}
		h := NewWebhookHandler(pub, webhookSecret, zap.NewNop())
		h.now = func() time.Time { return now }

		w := serveWebhook(h, signedRequest(t, body, now.Add(-time.Hour), webhookSecret))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, pub.payloads)
	})

	t.Run("bus failure asks for redelivery", func(t *testing.T) {
		pub := &recordingPublisher{err: errors.New("channel closed")}
		h := NewWebhookHandler(pub, webhookSecret, zap.NewNop())
		h.now = func() time.Time { return now }

		w := serveWebhook(h, signedRequest(t, body, now, webhookSecret))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

type fakeReplayer struct {
	replayed []int64
	failed   int
	err      error
}

func (f *fakeReplayer) ReplayEvent(ctx context.Context, eventID int64) error {
	if f.err != nil {
		return f.err
	}
	f.replayed = append(f.replayed, eventID)
	return nil
}

func (f *fakeReplayer) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	return f.failed, f.err
}

type fakeSweeper struct{ n int64 }

func (f fakeSweeper) SweepResets(ctx context.Context) (int64, error) { return f.n, nil }

func TestAdminHandler(t *testing.T) {
	rep := &fakeReplayer{failed: 3}
	h := NewAdminHandler(rep, fakeSweeper{n: 7}, zap.NewNop())
	r := gin.New()
	r.POST("/admin/outbox/replay", h.ReplayOutboxEvent)
	r.POST("/admin/outbox/replay-failed", h.ReplayFailedEvents)
	r.POST("/admin/quota/sweep", h.SweepQuotas)

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		return w
	}

	w := do("/admin/outbox/replay?id=42")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{42}, rep.replayed)

	assert.Equal(t, http.StatusBadRequest, do("/admin/outbox/replay").Code)
	assert.Equal(t, http.StatusBadRequest, do("/admin/outbox/replay?id=abc").Code)

	w = do("/admin/outbox/replay-failed?limit=-1")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		SuccessCount int `json:"success_count"`
		Limit        int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.SuccessCount)
	assert.Equal(t, 100, body.Limit)

	w = do("/admin/quota/sweep")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reset":7}`, w.Body.String())
}

func TestRenderError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   apperror.Kind
	}{
		{apperror.NotFound("gig not found"), http.StatusNotFound, apperror.KindNotFound},
		{apperror.Forbidden("not yours"), http.StatusForbidden, apperror.KindForbidden},
		{apperror.QuotaExceeded("limit reached"), http.StatusTooManyRequests, apperror.KindQuotaExceeded},
		{apperror.Unauthenticated("bad credentials"), http.StatusUnauthorized, apperror.KindUnauthenticated},
		{errors.New("boom"), http.StatusInternalServerError, apperror.KindInternal},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			RenderError(c, zap.NewNop(), tc.err)

			assert.Equal(t, tc.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, string(tc.kind), body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestPrincipal(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, _, ok := Principal(c)
	assert.False(t, ok)

	id := uuid.New()
	SetPrincipal(c, id, "client")
	got, role, ok := Principal(c)
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, "client", role)
}

type scriptedSubscriber struct {
	messages []notify.Message
}

func (s scriptedSubscriber) Subscribe(ctx context.Context, accountID uuid.UUID, fn func(notify.Message)) error {
	for _, m := range s.messages {
		fn(m)
	}
	return nil
}

func TestNotificationStream(t *testing.T) {
	sub := scriptedSubscriber{messages: []notify.Message{
		{Event: "project.created", Data: map[string]string{"projectId": "p1"}},
	}}
	h := NewNotificationHandler(sub, zap.NewNop())

	r := gin.New()
	r.GET("/notifications/stream", func(c *gin.Context) {
		SetPrincipal(c, uuid.New(), "freelancer")
		h.Stream(c)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/stream", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event:project.created")
	assert.Contains(t, w.Body.String(), `"projectId":"p1"`)
}
