package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// AuditConsumer reads the marketplace queues and appends one line per
// message to <Dir>/ledger.log.  It is an operational trail next to the
// ledger table, not a source of truth.
type AuditConsumer struct {
    URL string
    Dir string
    Log *slog.Logger
}

// Run keeps a consumer connected until ctx is cancelled, reconnecting
// with exponential backoff capped at 30s.
func (a *AuditConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(a.URL)
        if err != nil {
            a.Log.Warn("audit consumer: dial failed", "err", err, "retry_in", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = a.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        a.Log.Warn("audit consumer: consume loop ended, reconnecting", "err", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (a *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        a.Log.Warn("audit consumer: set QoS failed", "err", err)
    }

    type delivery struct {
        queue string
        d     amqp.Delivery
    }
    merged := make(chan delivery)
    for _, q := range []string{TicketsSoldQueue, ResaleSettledQueue} {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", q, err)
        }
        go func(q string, msgs <-chan amqp.Delivery) {
            for d := range msgs {
                select {
                case merged <- delivery{queue: q, d: d}:
                case <-ctx.Done():
                    return
                }
            }
        }(q, msgs)
    }

    closed := ch.NotifyClose(make(chan *amqp.Error, 1))
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case err := <-closed:
            if err != nil {
                return err
            }
            return errors.New("channel closed")
        case m := <-merged:
            if err := a.append(m.queue, m.d.Body); err != nil {
                a.Log.Error("audit consumer: handle message failed", "queue", m.queue, "err", err)
                _ = m.d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = m.d.Ack(false)
        }
    }
}

func (a *AuditConsumer) append(queue string, body []byte) error {
    line, err := FormatAuditLine(queue, body)
    if err != nil {
        return err
    }
    dir := a.Dir
    if dir == "" {
        dir = "logs"
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "ledger.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatAuditLine renders one message as a single human-readable line.
func FormatAuditLine(queue string, body []byte) (string, error) {
    switch queue {
    case TicketsSoldQueue:
        var ev TicketsSoldEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        return fmt.Sprintf("[%s] Tickets sold | sale_id=%s | tx_id=%s | event_id=%s | event=%q | buyer_id=%s | qty=%d | total=%s | tickets=[%s]\n",
            ev.SoldAt, ev.SaleID, ev.TransactionID, ev.EventID, ev.EventName, ev.BuyerID, ev.Quantity, ev.Total,
            strings.Join(ev.TicketIDs, ",")), nil
    case ResaleSettledQueue:
        var ev ResaleSettledEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        return fmt.Sprintf("[%s] Resale settled | listing_id=%s | ticket_id=%s | event_id=%s | seller_id=%s | buyer_id=%s | price=%s | buyer_tx=%s | seller_tx=%s\n",
            ev.SettledAt, ev.ListingID, ev.TicketID, ev.EventID, ev.SellerID, ev.BuyerID, ev.Price,
            ev.BuyerTransactionID, ev.SellerTransactionID), nil
    }
    return "", fmt.Errorf("unknown queue %q", queue)
}
