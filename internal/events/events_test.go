package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap/zaptest"
)

func TestNew(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	ev := New(BookingCreated, "HL2024050112345", at, BookingPayload{BookingID: 1})

	if ev.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected a generated event id")
	}
	if ev.Version != 1 {
		t.Errorf("expected version 1, got %d", ev.Version)
	}
	if ev.OccurredAt.Location() != time.UTC || !ev.OccurredAt.Equal(at) {
		t.Errorf("expected UTC timestamp equal to input, got %v", ev.OccurredAt)
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewKafkaConfig())
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "hirelink.events" {
			return fmt.Errorf("unexpected topic %q", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "HL2024050112345" {
			return fmt.Errorf("unexpected key %q", key)
		}
		body, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var decoded struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal(body, &decoded); err != nil {
			return err
		}
		if decoded.Event != string(BookingCreated) {
			return fmt.Errorf("unexpected event type %q", decoded.Event)
		}
		return nil
	})

	pub := NewKafkaPublisherWithProducer(producer, "hirelink.events", zaptest.NewLogger(t))
	ev := New(BookingCreated, "HL2024050112345", time.Now(), BookingPayload{BookingID: 1})
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewKafkaConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisherWithProducer(producer, "hirelink.events", zaptest.NewLogger(t))
	err := pub.Publish(context.Background(), New(PaymentFailed, "HL1", time.Now(), nil))
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("expected ErrOutOfBrokers, got %v", err)
	}
	_ = pub.Close()
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestRabbitPublisher_RoutesByType(t *testing.T) {
	ch := &fakeChannel{}
	pub := &RabbitPublisher{ch: ch, exchange: "hirelink"}

	ev := New(PaymentCompleted, "HL1", time.Now(), PaymentPayload{PaymentID: 3})
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ch.exchange != "hirelink" || ch.key != "payment.completed" {
		t.Errorf("unexpected routing %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.MessageId != ev.ID.String() || ch.msg.ContentType != "application/json" {
		t.Errorf("unexpected message headers: %+v", ch.msg)
	}

	if err := pub.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if !ch.closed {
		t.Error("expected channel to be closed")
	}
}

type recorder struct {
	got []Type
	err error
}

func (r *recorder) Publish(_ context.Context, ev Event) error {
	r.got = append(r.got, ev.Type)
	return r.err
}

func (r *recorder) Close() error { return nil }

func TestFanout(t *testing.T) {
	failing := &recorder{err: errors.New("broker down")}
	ok := &recorder{}

	err := Fanout{failing, ok}.Publish(context.Background(), New(ReviewAdded, "HL1", time.Now(), nil))
	if err == nil || err.Error() != "broker down" {
		t.Errorf("expected joined broker error, got %v", err)
	}
	if len(ok.got) != 1 {
		t.Errorf("healthy publisher must still receive the event, got %v", ok.got)
	}
}
