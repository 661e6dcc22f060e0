package feeds

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

// Routing keys of the two inbound feeds.
const (
	RouteNewMessage     = "conversation.message.new"
	RouteDeliveryStatus = "conversation.message.status"
)

// Handler is the slice of the sync core the feeds dispatch into.
type Handler interface {
	HandleIncomingMessage(ctx context.Context, msg models.Message)
	HandleDeliveryUpdate(ctx context.Context, update models.DeliveryUpdate)
}

// Consumer subscribes to the new-message and delivery-status feeds and
// funnels each delivery into the core. Malformed events are logged and
// dropped; the consumer never crashes the event lane, since redelivery
// and ordering anomalies are steady-state conditions on this bus.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	handler Handler
	logger  zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewConsumer dials AMQP and binds a queue to both feed routing keys on
// the topic exchange.
func NewConsumer(url, exchange, queue string, handler Handler, logger zerolog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	for _, key := range []string{RouteNewMessage, RouteDeliveryStatus} {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
	}

	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   q.Name,
		handler: handler,
		logger:  logger.With().Str("component", "feeds").Logger(),
		done:    make(chan struct{}),
	}, nil
}

// Start consumes both feeds for the lifetime of the consumer.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				c.dispatch(ctx, d)
			}
		}
	}()
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	ctx, span := otel.Tracer("chat-sync/feeds").Start(ctx, "feeds.dispatch")
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("routing_key", d.RoutingKey).Msg("feed handler panicked")
			_ = d.Nack(false, false)
		}
	}()

	switch d.RoutingKey {
	case RouteNewMessage:
		var msg models.Message
		if err := json.Unmarshal(d.Body, &msg); err != nil || msg.ID == "" || msg.ConversationID == "" {
			observability.IncFeedEvent("message", "malformed")
			c.logger.Warn().Err(err).Msg("malformed new-message event dropped")
			_ = d.Nack(false, false)
			return
		}
		c.handler.HandleIncomingMessage(ctx, msg)
		observability.IncFeedEvent("message", "ok")
	case RouteDeliveryStatus:
		var update models.DeliveryUpdate
		if err := json.Unmarshal(d.Body, &update); err != nil || update.MessageID == "" {
			observability.IncFeedEvent("status", "malformed")
			c.logger.Warn().Err(err).Msg("malformed delivery-status event dropped")
			_ = d.Nack(false, false)
			return
		}
		c.handler.HandleDeliveryUpdate(ctx, update)
		observability.IncFeedEvent("status", "ok")
	default:
		observability.IncFeedEvent("unknown", "dropped")
		c.logger.Warn().Str("routing_key", d.RoutingKey).Msg("unexpected routing key")
	}
	_ = d.Ack(false)
}

// Close tears the subscriptions down. Idempotent, and safe to call while
// a delivery is being dispatched.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.channel != nil {
			_ = c.channel.Close()
		}
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
