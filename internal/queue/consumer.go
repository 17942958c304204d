package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/pmb-exam-scheduling/internal/config"
)

// Notifier delivers a text message to an applicant's phone.
type Notifier interface {
    Notify(ctx context.Context, phone, message string) error
}

// Consumer drains the schedule.selected queue.  Each event is appended to
// <LogDir>/schedule.log and, when a Notifier is set, sent to the applicant
// on WhatsApp.
type Consumer struct {
    cfg      config.QueueConfig
    notifier Notifier
}

// NewConsumer returns a consumer; n may be nil to disable notifications.
func NewConsumer(cfg config.QueueConfig, n Notifier) *Consumer {
    return &Consumer{cfg: cfg, notifier: n}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled,
// reconnecting with exponential backoff (capped at 30s).  Bad messages are
// rejected without requeue so the loop never spins on them.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.cfg.URL)
        if err != nil {
            log.Printf("schedule-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("schedule-consumer: consume loop ended: %v; reconnecting", err)
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
        log.Printf("schedule-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handle(ctx, d.Body); err != nil {
                log.Printf("schedule-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// handle logs one event and notifies the applicant.  Only decode and log
// failures are returned; a failed notification is logged and the message
// still acknowledged.
func (c *Consumer) handle(ctx context.Context, body []byte) error {
    var ev ScheduleSelectedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.ApplicantID == 0 || ev.SlotID == 0 {
        return errors.New("event without applicant or slot")
    }
    if err := appendScheduleLog(c.cfg.LogDir, ev); err != nil {
        return err
    }

    if c.notifier == nil || ev.WhatsApp == "" {
        return nil
    }
    nctx, cancel := context.WithTimeout(ctx, 15*time.Second)
    defer cancel()
    if err := c.notifier.Notify(nctx, ev.WhatsApp, ScheduleMessage(ev)); err != nil {
        log.Printf("schedule-consumer: notify applicant=%d failed: %v", ev.ApplicantID, err)
    }
    return nil
}

func appendScheduleLog(dir string, ev ScheduleSelectedEvent) error {
    if dir == "" {
        dir = "logs"
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "schedule.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    prev := "-"
    if ev.PreviousSlotID != nil {
        prev = fmt.Sprint(*ev.PreviousSlotID)
    }
    line := fmt.Sprintf("[%s] Schedule selected | event_id=%s | applicant_id=%d | registration=%s | slot_id=%d | previous_slot_id=%s | date=%s | session=%q | room=%q\n",
        ev.SelectedAt, ev.EventID, ev.ApplicantID, ev.RegistrationNumber, ev.SlotID, prev, ev.Date, ev.SessionName, ev.RoomCode)
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
