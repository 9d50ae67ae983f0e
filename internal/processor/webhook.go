package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Webhook event types the marketplace reacts to.
const (
	EventPaymentSucceeded    = "payment_intent.succeeded"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

const SignatureHeader = "Stripe-Signature"

// DefaultTolerance bounds the age of a signed timestamp.
const DefaultTolerance = 5 * time.Minute

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// Event is a decoded webhook delivery. Object holds data.object.
type Event struct {
	ID     string
	Type   string
	Object gjson.Result
}

func ParseEvent(body []byte) (*Event, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedEvent
	}
	r := gjson.ParseBytes(body)
	ev := &Event{
		ID:     r.Get("id").String(),
		Type:   r.Get("type").String(),
		Object: r.Get("data.object"),
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, ErrMalformedEvent
	}
	return ev, nil
}

// Intent decodes the event object as a payment intent.
func (e *Event) Intent() *Intent { return parseIntent(e.Object) }

// Subscription decodes the event object as a subscription.
func (e *Event) Subscription() *Subscription { return parseSubscription(e.Object) }

// VerifySignature checks a "t=<unix>,v1=<hex>" header: v1 must equal
// HMAC-SHA256(secret, "<t>.<payload>") and t must be within tolerance of now.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var (
		ts         int64
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			ts = n
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if ts == 0 || len(signatures) == 0 {
		return ErrInvalidSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrInvalidSignature
		}
	}

	expected := Sign(payload, secret, ts)
	for _, s := range signatures {
		if hmac.Equal([]byte(s), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign returns the hex v1 signature for payload at timestamp ts.
func Sign(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
