package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/abhisek/jeseci/internal/gems"
)

// DefaultExchange is the topic exchange side effects are published to.
const DefaultExchange = "jeseci.events"

// Envelope is the message body published for each side effect.
type Envelope struct {
	ID      uuid.UUID       `json:"id"`
	Learner string          `json:"learner"`
	Event   gems.SideEffect `json:"event"`
	SentAt  time.Time       `json:"sent_at"`
}

// RoutingKey returns "learner.<kind>", so consumers can bind per effect
// kind.
func RoutingKey(e gems.SideEffect) string {
	return "learner." + string(e.Kind)
}

// AMQPSink publishes side effects to a RabbitMQ topic exchange and
// reconnects with backoff when the connection drops.
type AMQPSink struct {
	url      string
	exchange string
	logger   *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewAMQPSink dials url and declares the exchange.
func NewAMQPSink(url, exchange string, logger *slog.Logger) (*AMQPSink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &AMQPSink{url: url, exchange: exchange, logger: logger}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AMQPSink) connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		s.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %q: %w", s.exchange, err)
	}
	s.conn, s.channel = conn, ch

	go s.handleReconnect(conn)

	s.logger.Info("connected to RabbitMQ", "host", redactURL(s.url), "exchange", s.exchange)
	return nil
}

// handleReconnect waits for conn to close and redials with exponential
// backoff, giving up after 10 attempts.
func (s *AMQPSink) handleReconnect(conn *amqp.Connection) {
	err := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if err == nil {
		return
	}
	for i := 0; i < 10; i++ {
		s.mu.RLock()
		closed := s.closed
		s.mu.RUnlock()
		if closed {
			return
		}

		backoff := time.Duration(1<<i) * time.Second
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		s.logger.Warn("RabbitMQ connection lost, reconnecting", "error", err, "attempt", i+1, "backoff", backoff)
		time.Sleep(backoff)

		if cerr := s.connect(); cerr == nil {
			return
		}
	}
	s.logger.Error("giving up reconnecting to RabbitMQ")
}

// Exchange returns the exchange name.
func (s *AMQPSink) Exchange() string { return s.exchange }

// Channel returns the current channel.
func (s *AMQPSink) Channel() *amqp.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

// Push implements Sink.
func (s *AMQPSink) Push(ctx context.Context, learnerID string, event gems.SideEffect) error {
	env := Envelope{
		ID:      uuid.New(),
		Learner: learnerID,
		Event:   event,
		SentAt:  time.Now().UTC(),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal side effect: %w", err)
	}

	ch := s.Channel()
	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("publish side effect: channel unavailable")
	}
	err = ch.PublishWithContext(ctx,
		s.exchange,
		RoutingKey(event),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.ID.String(),
			Timestamp:    event.At,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish side effect: %w", err)
	}
	return nil
}

// Close closes the channel and connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// redactURL keeps only the host for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	return u.Host
}
