package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer listens to the proctoring queues and appends one line per event
// to a log file (logs/proctoring.log by default).
type Consumer struct {
    URL     string
    LogPath string
    Logger  *slog.Logger

    mu sync.Mutex
}

// NewConsumer returns a consumer writing to logs/proctoring.log.
func NewConsumer(url string, logger *slog.Logger) *Consumer {
    if logger == nil {
        logger = slog.Default()
    }
    return &Consumer{URL: url, LogPath: filepath.Join("logs", "proctoring.log"), Logger: logger}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff.  Processing errors reject the offending message
// without requeueing so a bad payload cannot stall the queue.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Logger.Warn("proctor-consumer: failed to dial broker", "error", err, "retry_in", backoff.String())
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Logger.Warn("proctor-consumer: consume loop ended, reconnecting", "error", err)
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

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Logger.Warn("proctor-consumer: set QoS failed", "error", err)
    }

    var wg sync.WaitGroup
    errs := make(chan error, 2)
    for _, q := range []string{ViolationLoggedQueue, AttemptFinishedQueue} {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", q, err)
        }
        wg.Add(1)
        go func(queue string, msgs <-chan amqp.Delivery) {
            defer wg.Done()
            for d := range msgs {
                if err := c.HandleMessage(queue, d.Body); err != nil {
                    c.Logger.Error("proctor-consumer: handle message failed", "queue", queue, "error", err)
                    _ = d.Nack(false, false)
                    continue
                }
                _ = d.Ack(false)
            }
            errs <- fmt.Errorf("%s: deliveries channel closed", queue)
        }(q, msgs)
    }

    select {
    case <-ctx.Done():
        _ = ch.Close()
        wg.Wait()
        return ctx.Err()
    case err := <-errs:
        _ = ch.Close()
        wg.Wait()
        return err
    }
}

// HandleMessage formats one delivery from queue and appends it to the log.
func (c *Consumer) HandleMessage(queue string, body []byte) error {
    line, err := formatLine(queue, body)
    if err != nil {
        return err
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func formatLine(queue string, body []byte) (string, error) {
    switch queue {
    case ViolationLoggedQueue:
        var ev ViolationLoggedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        return fmt.Sprintf("[%s] Violation logged | attempt_id=%d | user_id=%d | exam_id=%d | type=%s | severity=%s | count=%d/%d | auto_submitted=%t\n",
            ev.OccurredAt, ev.AttemptID, ev.UserID, ev.ExamID, ev.Type, ev.Severity,
            ev.ViolationCount, ev.MaxViolations, ev.AutoSubmitted), nil
    case AttemptFinishedQueue:
        var ev AttemptFinishedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        return fmt.Sprintf("[%s] Attempt finished | attempt_id=%d | user_id=%d | exam_id=%d | status=%s | score=%d/%d | violations=%d\n",
            ev.SubmittedAt, ev.AttemptID, ev.UserID, ev.ExamID, ev.Status, ev.Score, ev.TotalQuestions, ev.ViolationCount), nil
    }
    return "", errors.New("unknown queue " + queue)
}
