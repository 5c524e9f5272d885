package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher hands domain events to RabbitMQ.  Each publish dials, declares
// the durable queue and sends one persistent message; failures are
// returned so callers can log them without failing the request that
// produced the event.
type Publisher struct {
    url string
}

func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

func (p *Publisher) TicketsSold(ctx context.Context, ev TicketsSoldEvent) error {
    return p.publish(ctx, TicketsSoldQueue, ev)
}

func (p *Publisher) ResaleSettled(ctx context.Context, ev ResaleSettledEvent) error {
    return p.publish(ctx, ResaleSettledQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
    body, err := json.Marshal(v)
    if err != nil {
        return fmt.Errorf("marshal %s: %w", queue, err)
    }

    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("dial broker: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(
        queue, // name
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,   // args
    ); err != nil {
        return fmt.Errorf("queue declare %s: %w", queue, err)
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    // default exchange, routing key = queue name
    if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
        return fmt.Errorf("publish %s: %w", queue, err)
    }
    return nil
}
