package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/streadway/amqp"
)

const attemptHeader = "x-attempt"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	mu      sync.Mutex // guards publishing on channel
}

// Config holds RabbitMQ connection details and queue names.
type Config struct {
	URL            string
	EventsQueue    string
	CallbacksQueue string
	// RetryDelay is the base delay before a deferred callback becomes visible again.
	RetryDelay time.Duration
}

func (c Config) retryQueue() string { return c.CallbacksQueue + ".retry" }

// NewClient connects to RabbitMQ and declares the queues. Deferred callbacks are parked in a
// TTL queue that dead-letters back into CallbacksQueue.
func NewClient(cfg Config) (*Client, error) {
	if cfg.EventsQueue == "" {
		cfg.EventsQueue = "order_events"
	}
	if cfg.CallbacksQueue == "" {
		cfg.CallbacksQueue = "payment_callbacks"
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	declare := []struct {
		name string
		args amqp.Table
	}{
		{name: cfg.EventsQueue},
		{name: cfg.CallbacksQueue},
		{name: cfg.retryQueue(), args: amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": cfg.CallbacksQueue,
		}},
	}
	for _, q := range declare {
		// durable, not auto-deleted, not exclusive
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare %s: %w", q.name, err)
		}
	}

	log.Printf("RabbitMQ client connected, queues %s, %s declared", cfg.EventsQueue, cfg.CallbacksQueue)

	return &Client{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
	}, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Client) publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}

	msg.DeliveryMode = amqp.Persistent
	msg.Timestamp = time.Now()
	msg.MessageId = uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	// default exchange, routing key is the queue name
	if err := c.channel.Publish("", queue, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

// PublishEvent publishes an order lifecycle event as JSON to the events queue.
func (c *Client) PublishEvent(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	return c.publish(ctx, c.cfg.EventsQueue, amqp.Publishing{
		ContentType: "application/json",
		Type:        eventType,
		Body:        body,
	})
}

// DeferCallback parks a raw payment callback for redelivery. The delay grows linearly with attempt.
func (c *Client) DeferCallback(ctx context.Context, payload []byte, attempt int) error {
	delay := c.cfg.RetryDelay * time.Duration(attempt)
	return c.publish(ctx, c.cfg.retryQueue(), amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
		Expiration:  strconv.FormatInt(delay.Milliseconds(), 10),
		Headers:     amqp.Table{attemptHeader: int32(attempt)},
	})
}

// ConsumeCallbacks starts a goroutine feeding redelivered callbacks to handler.
// Every message is acknowledged once handler returns; handler owns any further deferral.
func (c *Client) ConsumeCallbacks(handler func(ctx context.Context, payload []byte, attempt int)) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.cfg.CallbacksQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Printf(" [*] Waiting for deferred payment callbacks on %s", c.cfg.CallbacksQueue)

	go func() {
		for msg := range msgs {
			handler(context.Background(), msg.Body, attemptOf(msg.Headers))
			if err := msg.Ack(false); err != nil {
				log.Printf("Error acking callback %s: %v", msg.MessageId, err)
			}
		}
		log.Printf("Callback consumer on %s stopped", c.cfg.CallbacksQueue)
	}()

	return nil
}

func attemptOf(h amqp.Table) int {
	switch v := h[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 1
}
