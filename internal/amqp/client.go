package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"finreport/internal/core"
	"finreport/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures          = 5
	openTimeout          = 30 * time.Second
	maxBackoff           = 30 * time.Second
	maxReconnectAttempts = 10
	publishTimeout       = 5 * time.Second
)

var (
	ErrCircuitOpen   = errors.New("circuit breaker is open")
	errChannelClosed = errors.New("message channel closed")
)

// Publisher is the producer side used by the HTTP server and scheduler.
type Publisher interface {
	PublishReportRequest(ctx context.Context, msg *ReportRequestMessage) error
}

// Handler processes one request. Returning an error wrapping
// ErrInvalidMessage or core.ErrInvalidRange drops the message; any other
// error requeues it.
type Handler func(ctx context.Context, msg *ReportRequestMessage) error

type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

var _ Publisher = (*Client)(nil)

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       log.Default(log.ComponentAMQP),
	}
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

// connect dials and declares topology. Callers hold no lock.
func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name.
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	// One unacked report at a time per consumer.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// ensureChannel returns an open channel, reconnecting if needed.
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c.channel, nil
}

// PublishReportRequest publishes a report request message
func (c *Client) PublishReportRequest(ctx context.Context, msg *ReportRequestMessage) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish report request: %w", ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish report request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.RequestID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.InfoContext(ctx, "Published report request",
		log.FieldUserID, msg.UserID,
		log.FieldReportID, msg.RequestID,
		"exchange", c.exchangeName,
		log.FieldQueue, c.queueName)

	return nil
}

// ConsumeReportRequests consumes until ctx is cancelled, reconnecting with
// exponential backoff when the broker drops the channel.
func (c *Client) ConsumeReportRequests(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := c.startConsuming()
		if err != nil {
			if attempt >= maxReconnectAttempts {
				return fmt.Errorf("start consuming after %d attempts: %w", attempt, err)
			}
			wait := exponentialBackoff(attempt)
			attempt++
			c.logger.WarnContext(ctx, "Consumer not ready, retrying",
				log.FieldError, err.Error(), "attempt", attempt, "backoff", wait.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		attempt = 0

		c.logger.InfoContext(ctx, "Started consuming report requests", log.FieldQueue, c.queueName)
		err = c.drain(ctx, msgs, handler)
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err().Error())
			return ctx.Err()
		}
		c.logger.WarnContext(ctx, "Consumer interrupted, reconnecting", log.FieldError, err.Error())
	}
}

func (c *Client) startConsuming() (<-chan amqp091.Delivery, error) {
	ch, err := c.ensureChannel()
	if err != nil {
		return nil, err
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return nil, fmt.Errorf("start consuming: %w", err)
	}
	return msgs, nil
}

func (c *Client) drain(ctx context.Context, msgs <-chan amqp091.Delivery, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errChannelClosed
			}
			c.processDelivery(ctx, delivery, handler)
		}
	}
}

type outcome int

const (
	outcomeAcked outcome = iota
	outcomeDropped
	outcomeRequeued
)

func (c *Client) processDelivery(ctx context.Context, delivery amqp091.Delivery, handler Handler) outcome {
	msg, err := ReportRequestMessageFromJSON(delivery.Body)
	if err == nil {
		err = msg.Validate()
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "Dropping undecodable report request", log.FieldError, err.Error())
		_ = delivery.Nack(false, false)
		return outcomeDropped
	}

	fields := log.NewFields().
		WithComponent(log.ComponentAMQP).
		WithOperation(log.OpConsume).
		WithUser(msg.UserID)
	fields[log.FieldReportID] = msg.RequestID
	c.logger.LogWith(ctx, slog.LevelDebug, "Processing report request", fields)

	if err := handler(ctx, msg); err != nil {
		if errors.Is(err, ErrInvalidMessage) || errors.Is(err, core.ErrInvalidRange) {
			c.logger.LogWith(ctx, slog.LevelWarn, "Dropping invalid report request", fields.WithError(err))
			_ = delivery.Nack(false, false)
			return outcomeDropped
		}
		c.logger.LogWith(ctx, slog.LevelError, "Failed to handle report request, requeueing", fields.WithError(err))
		_ = delivery.Nack(false, true)
		return outcomeRequeued
	}

	_ = delivery.Ack(false)
	return outcomeAcked
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.failMu.Lock()
		last := c.lastFailure
		c.failMu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordFailure() {
	c.failMu.Lock()
	c.lastFailure = time.Now()
	c.failMu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "closed network connection", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}
