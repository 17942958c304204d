// Package queue_publisher publishes domain events to RabbitMQ.  Errors are
// logged and returned so callers can ignore failures without interrupting
// the main request flow.
package queue_publisher

import (
    "context"
    "encoding/json"
    "errors"
    "log"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/pmb-exam-scheduling/internal/config"
    "github.com/iliyamo/pmb-exam-scheduling/internal/model"
    q "github.com/iliyamo/pmb-exam-scheduling/internal/queue"
    "github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
)

// ApplicantDirectory loads the applicant details copied into events.
type ApplicantDirectory interface {
    Get(ctx context.Context, id uint64) (model.Applicant, error)
}

// ErrBrokerUnavailable is returned without dialling while the publisher
// waits out the cool-down after a failed connection attempt.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

// SchedulePublisher implements reservation.Publisher on a durable queue.
// The connection is opened lazily and re-dialled after a failure.  Every
// step is bounded by the caller's context: the dial and AMQP handshake
// use a deadline no later than ctx's, and callers waiting for the
// connection give up when ctx is done.
type SchedulePublisher struct {
    url         string
    queue       string
    applicants  ApplicantDirectory
    newID       func() string
    now         func() time.Time
    dialTimeout time.Duration
    cooldown    time.Duration

    lock    chan struct{} // one slot; guards conn, ch and retryAt
    conn    *amqp.Connection
    ch      *amqp.Channel
    retryAt time.Time
}

// NewSchedulePublisher returns a publisher for cfg.Queue.  applicants may
// be nil, in which case events carry ids only.
func NewSchedulePublisher(cfg config.QueueConfig, applicants ApplicantDirectory) *SchedulePublisher {
    p := &SchedulePublisher{
        url:         cfg.URL,
        queue:       cfg.Queue,
        applicants:  applicants,
        newID:       uuid.NewString,
        now:         time.Now,
        dialTimeout: cfg.DialTimeout,
        cooldown:    cfg.RetryAfter,
        lock:        make(chan struct{}, 1),
    }
    if p.dialTimeout <= 0 {
        p.dialTimeout = 2 * time.Second
    }
    return p
}

func (p *SchedulePublisher) acquire(ctx context.Context) error {
    select {
    case p.lock <- struct{}{}:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

func (p *SchedulePublisher) release() { <-p.lock }

// PublishScheduleSelected implements reservation.Publisher.
func (p *SchedulePublisher) PublishScheduleSelected(ctx context.Context, sel reservation.Selection) error {
    body, err := json.Marshal(p.event(ctx, sel))
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }
    return p.publish(ctx, body)
}

// event builds the message payload.  A failed applicant lookup is logged
// and the event is sent without contact details.
func (p *SchedulePublisher) event(ctx context.Context, sel reservation.Selection) q.ScheduleSelectedEvent {
    ev := q.ScheduleSelectedEvent{
        EventID:        p.newID(),
        ApplicantID:    sel.ApplicantID,
        PreviousSlotID: sel.PreviousSlotID,
        SlotID:         sel.Slot.ID,
        Date:           sel.Slot.DateString(),
        SessionName:    sel.Slot.Session.Name,
        StartsAt:       sel.Slot.Session.StartsAt,
        EndsAt:         sel.Slot.Session.EndsAt,
        RoomCode:       sel.Slot.Room.Code,
        RoomName:       sel.Slot.Room.Name,
        SelectedAt:     sel.SelectedAt.UTC().Format(time.RFC3339),
    }
    if p.applicants == nil {
        return ev
    }
    a, err := p.applicants.Get(ctx, sel.ApplicantID)
    if err != nil {
        log.Printf("rabbitmq: load applicant %d for event failed: %v", sel.ApplicantID, err)
        return ev
    }
    ev.RegistrationNumber = a.RegistrationNumber
    ev.FullName = a.FullName
    ev.WhatsApp = a.WhatsApp
    return ev
}

func (p *SchedulePublisher) publish(ctx context.Context, body []byte) error {
    if err := p.acquire(ctx); err != nil {
        return err
    }
    defer p.release()

    ch, err := p.channel(ctx)
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    // default exchange, routing key = queue name
    if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        p.reset()
        return err
    }
    return nil
}

// channel returns the open channel, dialling and declaring the queue when
// needed.  Callers hold the lock.
func (p *SchedulePublisher) channel(ctx context.Context) (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
        return p.ch, nil
    }
    p.reset()
    if p.now().Before(p.retryAt) {
        return nil, ErrBrokerUnavailable
    }

    conn, ch, err := p.dial(ctx)
    if err != nil {
        p.retryAt = p.now().Add(p.cooldown)
        return nil, err
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

// dial connects with a deadline covering TCP connect and the AMQP
// handshake.  The deadline is dialTimeout, shortened to ctx's deadline.
func (p *SchedulePublisher) dial(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
    timeout := p.dialTimeout
    if dl, ok := ctx.Deadline(); ok {
        if left := time.Until(dl); left < timeout {
            timeout = left
        }
    }
    if timeout <= 0 {
        return nil, nil, context.DeadlineExceeded
    }

    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return nil, nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        _ = conn.Close()
        return nil, nil, err
    }
    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        _ = ch.Close()
        _ = conn.Close()
        return nil, nil, err
    }
    return conn, ch, nil
}

func (p *SchedulePublisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *SchedulePublisher) Close() error {
    if err := p.acquire(context.Background()); err != nil {
        return err
    }
    defer p.release()
    p.reset()
    return nil
}
