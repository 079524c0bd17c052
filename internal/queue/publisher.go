package queue

import (
    "context"
    "encoding/json"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher delivers domain events.  Callers treat failures as best effort:
// an event that cannot be delivered never fails the request that caused it.
type Publisher interface {
    PublishViolationLogged(ctx context.Context, ev ViolationLoggedEvent) error
    PublishAttemptFinished(ctx context.Context, ev AttemptFinishedEvent) error
}

// dialTimeout bounds broker connects made on the request path.
const dialTimeout = 2 * time.Second

// RabbitPublisher dials the broker per publish.  Event volume is one message
// per violation or submission, so a pooled connection has not been needed.
type RabbitPublisher struct {
    URL    string
    Logger *slog.Logger
}

// NewRabbitPublisher returns a publisher for url.
func NewRabbitPublisher(url string, logger *slog.Logger) *RabbitPublisher {
    if logger == nil {
        logger = slog.Default()
    }
    return &RabbitPublisher{URL: url, Logger: logger}
}

func (p *RabbitPublisher) PublishViolationLogged(ctx context.Context, ev ViolationLoggedEvent) error {
    return p.publish(ctx, ViolationLoggedQueue, ev)
}

func (p *RabbitPublisher) PublishAttemptFinished(ctx context.Context, ev AttemptFinishedEvent) error {
    return p.publish(ctx, AttemptFinishedQueue, ev)
}

func (p *RabbitPublisher) publish(ctx context.Context, queue string, event any) error {
    conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
    if err != nil {
        p.Logger.Warn("rabbitmq: dial failed", "queue", queue, "error", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.Logger.Warn("rabbitmq: channel open failed", "queue", queue, "error", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        queue, // name
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,   // args
    ); err != nil {
        p.Logger.Warn("rabbitmq: queue declare failed", "queue", queue, "error", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
        p.Logger.Warn("rabbitmq: publish failed", "queue", queue, "error", err)
        return err
    }
    return nil
}

// NopPublisher drops every event.  Used when RABBITMQ_ENABLED is false.
type NopPublisher struct{}

func (NopPublisher) PublishViolationLogged(context.Context, ViolationLoggedEvent) error { return nil }
func (NopPublisher) PublishAttemptFinished(context.Context, AttemptFinishedEvent) error { return nil }

var (
    _ Publisher = (*RabbitPublisher)(nil)
    _ Publisher = NopPublisher{}
)
