package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS and ensures the streams exist.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

const maxDeliver = 5

// redeliveryDelay backs off linearly with the delivery attempt.
func redeliveryDelay(msg *nats.Msg) time.Duration {
	meta, err := msg.Metadata()
	if err != nil {
		return time.Second
	}
	return time.Duration(meta.NumDelivered) * 2 * time.Second
}

// subscribe decodes each message into a fresh T and acks on handler success.
// Undecodable messages and validation errors are terminated; other failures
// are redelivered with a growing delay.
func subscribe[T any](ctx context.Context, s *Subscriber, subject, durable string, handler func(ctx context.Context, v *T) error) error {
	log := slog.Default().With("subject", subject, "consumer", durable)
	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			log.Warn("dropping undecodable message", "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &v); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				log.Warn("dropping rejected message", "error", err)
				_ = msg.Term()
				return
			}
			log.Error("handler failed, redelivering", "error", err)
			_ = msg.NakWithDelay(redeliveryDelay(msg))
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(maxDeliver),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Subscriber) SubscribeActivities(ctx context.Context, handler func(ctx context.Context, a *domain.Activity) error) error {
	return subscribe(ctx, s, SubjectActivities, "activity-recorder", handler)
}

func (s *Subscriber) SubscribeReservationEvents(ctx context.Context, handler func(ctx context.Context, e *domain.ReservationEvent) error) error {
	return subscribe(ctx, s, SubjectReservations+".>", "reservation-auditor", handler)
}

// SubscribeEmails consumes queued emails.
func (s *Subscriber) SubscribeEmails(ctx context.Context, handler func(ctx context.Context, m *EmailMessage) error) error {
	return subscribe(ctx, s, SubjectNotifications+".email", "mail-relay", handler)
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
