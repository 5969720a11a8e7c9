package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// Subjects.
const (
	SubjectReservations  = "taxiportal.reservations"
	SubjectActivities    = "taxiportal.activities"
	SubjectNotifications = "taxiportal.notifications"
)

// ReservationSubject is where events for one user's reservations are published.
func ReservationSubject(userID, kind string) string {
	return SubjectReservations + "." + userID + "." + kind
}

// UserReservationsWildcard matches every reservation event of a user.
func UserReservationsWildcard(userID string) string {
	return SubjectReservations + "." + userID + ".>"
}

var streams = []nats.StreamConfig{
	{
		Name:      "RESERVATIONS",
		Subjects:  []string{SubjectReservations + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	},
	{
		Name:      "ACTIVITIES",
		Subjects:  []string{SubjectActivities},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    72 * time.Hour,
		Storage:   nats.FileStorage,
	},
	{
		Name:      "NOTIFICATIONS",
		Subjects:  []string{SubjectNotifications + ".>"},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	},
}

// Publisher implements ports.EventPublisher and ports.NotificationService
// using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the streams exist.
func NewPublisher(url string) (*Publisher, error) {
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
	return &Publisher{conn: conn, js: js}, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	for i := range streams {
		cfg := streams[i]
		if _, err := js.AddStream(&cfg); err != nil {
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, subject string, v any, msgID string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	opts := []nats.PubOpt{nats.Context(ctx)}
	if msgID != "" {
		opts = append(opts, nats.MsgId(msgID))
	}
	_, err = p.js.Publish(subject, data, opts...)
	return err
}

// PublishReservationEvent publishes a created/cancelled reservation event.
func (p *Publisher) PublishReservationEvent(ctx context.Context, event *domain.ReservationEvent) error {
	return p.publish(ctx, ReservationSubject(event.UserID, event.Kind), event, event.BookingID+"."+event.Kind)
}

// PublishActivity queues an activity for the recorder.
func (p *Publisher) PublishActivity(ctx context.Context, a *domain.Activity) error {
	return p.publish(ctx, SubjectActivities, a, a.ID)
}

// EmailMessage is an outbound email handed to the mail relay.
type EmailMessage struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Queued  time.Time `json:"queued_at"`
}

// SendEmail queues an email on the notifications stream.
func (p *Publisher) SendEmail(ctx context.Context, to, subject, body string) error {
	msg := EmailMessage{To: to, Subject: subject, Body: body, Queued: time.Now().UTC()}
	return p.publish(ctx, SubjectNotifications+".email", msg, "")
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("taxiportal"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
