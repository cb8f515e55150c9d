package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	deadline bool
}

type fakeChannel struct {
	published []published
	err       error
	closed    int
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if c.err != nil {
		return c.err
	}
	_, hasDeadline := ctx.Deadline()
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg, deadline: hasDeadline})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed++
	return nil
}

func TestPublishSendsPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	publisher := newPublisher(ch, "ledger.lifecycle", nil)
	publisher.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	payload := map[string]string{"request_id": "pe-1"}
	if err := publisher.Publish(context.Background(), "personal_expense.submit", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("expected one message, got %d", len(ch.published))
	}
	sent := ch.published[0]
	if sent.exchange != "ledger.lifecycle" || sent.key != "personal_expense.submit" {
		t.Fatalf("unexpected destination %s/%s", sent.exchange, sent.key)
	}
	if sent.msg.ContentType != "application/json" || sent.msg.DeliveryMode != amqp091.Persistent {
		t.Fatalf("expected persistent json, got %+v", sent.msg)
	}
	if !sent.deadline {
		t.Fatalf("expected publish timeout on context")
	}

	envelope, err := EnvelopeFromJSON(sent.msg.Body)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.ID == "" || envelope.ID != sent.msg.MessageId {
		t.Fatalf("expected message id to match envelope, got %q and %q", envelope.ID, sent.msg.MessageId)
	}
	var decoded map[string]string
	if err := json.Unmarshal(envelope.Payload, &decoded); err != nil || decoded["request_id"] != "pe-1" {
		t.Fatalf("unexpected payload %s", envelope.Payload)
	}
	if !envelope.Timestamp.Equal(publisher.now()) {
		t.Fatalf("unexpected timestamp %v", envelope.Timestamp)
	}
}

func TestPublishRequiresRoutingKey(t *testing.T) {
	ch := &fakeChannel{}
	publisher := newPublisher(ch, "ledger.lifecycle", nil)

	if err := publisher.Publish(context.Background(), "  ", nil); err == nil {
		t.Fatalf("expected error for empty routing key")
	}
	if len(ch.published) != 0 {
		t.Fatalf("expected nothing published")
	}
}

func TestPublishWrapsChannelErrors(t *testing.T) {
	cause := errors.New("channel closed")
	publisher := newPublisher(&fakeChannel{err: cause}, "ledger.lifecycle", nil)

	err := publisher.Publish(context.Background(), "personal_expense.cancel", struct{}{})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped channel error, got %v", err)
	}
}

func TestPublishAfterClose(t *testing.T) {
	ch := &fakeChannel{}
	publisher := newPublisher(ch, "ledger.lifecycle", nil)

	if err := publisher.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if ch.closed != 1 {
		t.Fatalf("expected channel closed once, got %d", ch.closed)
	}
	if err := publisher.Publish(context.Background(), "personal_expense.submit", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	publisher := newPublisher(&fakeChannel{}, "ledger.lifecycle", nil)

	if err := publisher.Publish(context.Background(), "personal_expense.submit", make(chan int)); err == nil {
		t.Fatalf("expected marshal error")
	}
}
