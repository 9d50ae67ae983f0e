// Package processor talks to the card payment processor over its REST API
// and decodes the webhook events it delivers.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"gigmarket/pkg/apperror"
	"gigmarket/pkg/circuitbreaker"
	"gigmarket/pkg/config"
	"gigmarket/pkg/metrics"
)

const IntentSucceeded = "succeeded"

type Intent struct {
	ID           string
	Status       string
	Amount       decimal.Decimal // major units
	Currency     string
	ClientSecret string
	Metadata     map[string]string
}

type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	ClientSecret      string
}

type Client struct {
	baseURL    string
	secretKey  string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(cfg config.ProcessorConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  cfg.SecretKey,
		timeout:    timeout,
		httpClient: &http.Client{},
		breaker:    circuitbreaker.NewCircuitBreaker("processor", circuitbreaker.DefaultConfig(), logger),
		logger:     logger,
	}
}

// ToMinorUnits converts a major-unit amount to the integer cents the API
// expects.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

func (c *Client) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(ToMinorUnits(amount), 10))
	form.Set("currency", strings.ToLower(currency))
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}
	res, err := c.do(ctx, http.MethodPost, "/v1/payment_intents", "create_intent", form)
	if err != nil {
		return nil, err
	}
	return parseIntent(res), nil
}

func (c *Client) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	res, err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), "retrieve_intent", nil)
	if err != nil {
		return nil, err
	}
	return parseIntent(res), nil
}

func (c *Client) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	form := url.Values{}
	form.Set("email", email)
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}
	res, err := c.do(ctx, http.MethodPost, "/v1/customers", "create_customer", form)
	if err != nil {
		return "", err
	}
	return res.Get("id").String(), nil
}

func (c *Client) CreateSubscription(ctx context.Context, customerID, priceID string) (*Subscription, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("items[0][price]", priceID)
	form.Set("payment_behavior", "default_incomplete")
	form.Add("expand[]", "latest_invoice.payment_intent")
	res, err := c.do(ctx, http.MethodPost, "/v1/subscriptions", "create_subscription", form)
	if err != nil {
		return nil, err
	}
	return parseSubscription(res), nil
}

// CancelSubscription schedules the subscription to end with the current
// billing period.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	form := url.Values{}
	form.Set("cancel_at_period_end", "true")
	res, err := c.do(ctx, http.MethodPost, "/v1/subscriptions/"+url.PathEscape(subscriptionID), "cancel_subscription", form)
	if err != nil {
		return nil, err
	}
	return parseSubscription(res), nil
}

// do performs one bounded call. Transport failures, timeouts and 5xx count
// against the breaker and surface as ServiceUnavailable; 4xx responses are
// returned as typed client errors.
func (c *Client) do(ctx context.Context, method, path, endpoint string, form url.Values) (gjson.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		status int
		body   []byte
	)
	start := time.Now()
	err := c.breaker.Execute(func() error {
		var reader io.Reader
		if form != nil {
			reader = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if status >= 500 {
			return fmt.Errorf("processor returned %d", status)
		}
		return nil
	})
	metrics.RecordExternalCallLatency("processor", endpoint, strconv.Itoa(status), time.Since(start))

	if err != nil {
		c.logger.Warn("Processor call failed",
			zap.String("endpoint", endpoint),
			zap.Int("status", status),
			zap.Error(err),
		)
		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
			return gjson.Result{}, apperror.ServiceUnavailable("payment processor unavailable", err)
		}
		return gjson.Result{}, apperror.ServiceUnavailable("payment processor call failed", err)
	}

	res := gjson.ParseBytes(body)
	switch {
	case status == http.StatusNotFound:
		return gjson.Result{}, apperror.NotFound("processor object not found")
	case status >= 400:
		msg := res.Get("error.message").String()
		if msg == "" {
			msg = fmt.Sprintf("processor rejected request (%d)", status)
		}
		return gjson.Result{}, apperror.InvalidArgument(msg)
	}
	return res, nil
}

func parseIntent(r gjson.Result) *Intent {
	in := &Intent{
		ID:           r.Get("id").String(),
		Status:       r.Get("status").String(),
		Amount:       fromMinorUnits(r.Get("amount").Int()),
		Currency:     r.Get("currency").String(),
		ClientSecret: r.Get("client_secret").String(),
		Metadata:     map[string]string{},
	}
	r.Get("metadata").ForEach(func(k, v gjson.Result) bool {
		in.Metadata[k.String()] = v.String()
		return true
	})
	return in
}

func parseSubscription(r gjson.Result) *Subscription {
	sub := &Subscription{
		ID:                r.Get("id").String(),
		CustomerID:        r.Get("customer").String(),
		Status:            r.Get("status").String(),
		CancelAtPeriodEnd: r.Get("cancel_at_period_end").Bool(),
		ClientSecret:      r.Get("latest_invoice.payment_intent.client_secret").String(),
	}
	if end := r.Get("current_period_end").Int(); end > 0 {
		sub.CurrentPeriodEnd = time.Unix(end, 0).UTC()
	}
	return sub
}
