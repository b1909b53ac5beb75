package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	exchange   = "kakachat.jobs"
	mainQueue  = "kakachat.jobs.main"
	delayQueue = "kakachat.jobs.delay"
	routingKey = "job"
)

// AMQP backs the queue with RabbitMQ. The fixed dispatch delay is done with
// a delay queue: messages are published there with a per-message TTL and a
// dead-letter exchange pointing back at the main queue, so no consumer-side
// sleeping is needed.
type AMQP struct {
	logger *zap.SugaredLogger
	conn   *amqp.Connection
	pubCh  *amqp.Channel

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewAMQP(url string, logger *zap.SugaredLogger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue: dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQP{
		logger:   logger,
		conn:     conn,
		pubCh:    ch,
		handlers: make(map[string]Handler),
	}, nil
}

var _ Client = (*AMQP)(nil)
var _ Server = (*AMQP)(nil)

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue: declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(mainQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue: declare main queue: %w", err)
	}
	if err := ch.QueueBind(mainQueue, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("queue: bind main queue: %w", err)
	}
	// expired messages fall through to the main queue
	delayArgs := amqp.Table{
		"x-dead-letter-exchange":    exchange,
		"x-dead-letter-routing-key": routingKey,
	}
	if _, err := ch.QueueDeclare(delayQueue, true, false, false, false, delayArgs); err != nil {
		return fmt.Errorf("queue: declare delay queue: %w", err)
	}
	return nil
}

func (a *AMQP) Register(taskType string, h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[taskType] = h
}

func (a *AMQP) Enqueue(ctx context.Context, t Task, delay time.Duration) error {
	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         t.Payload,
		Type:         t.Type,
		MessageId:    uuid.NewString(),
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	}
	if delay <= 0 {
		return a.pubCh.PublishWithContext(ctx, exchange, routingKey, false, false, pub)
	}
	pub.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	return a.pubCh.PublishWithContext(ctx, "", delayQueue, false, false, pub)
}

// Run consumes the main queue until the context is canceled. Failed tasks
// are acked and dropped, not redelivered: replaying an assistant job would
// double-post its reply.
func (a *AMQP) Run(ctx context.Context) error {
	ch, err := a.conn.Channel()
	if err != nil {
		return fmt.Errorf("queue: open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("queue: set qos: %w", err)
	}

	deliveries, err := ch.Consume(mainQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue: consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("queue: delivery channel closed")
			}
			a.dispatch(ctx, d)
		}
	}
}

func (a *AMQP) dispatch(ctx context.Context, d amqp.Delivery) {
	a.mu.RLock()
	h, ok := a.handlers[d.Type]
	a.mu.RUnlock()

	if !ok {
		a.logger.Warnw("no handler for task", "type", d.Type, "message_id", d.MessageId)
		_ = d.Ack(false)
		return
	}
	if err := h(ctx, Task{Type: d.Type, Payload: d.Body}); err != nil {
		a.logger.Errorw("task handler failed", "type", d.Type, "message_id", d.MessageId, "error", err)
	}
	_ = d.Ack(false)
}

func (a *AMQP) Close() error {
	if a.pubCh != nil {
		_ = a.pubCh.Close()
	}
	return a.conn.Close()
}
