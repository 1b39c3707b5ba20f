package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

type envelope struct {
	Origin  string `json:"origin"`
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
}

// AMQPRelay publishes to the local hub and mirrors every event through a fanout
// exchange so clients connected to other instances receive it too.
type AMQPRelay struct {
	local    *Hub
	channel  *amqp091.Channel
	exchange string
	queue    string
	origin   string
	logger   *zap.Logger
}

// NewAMQPRelay declares the fanout exchange and a private queue bound to it.
func NewAMQPRelay(conn *amqp091.Connection, exchange string, local *Hub, logger *zap.Logger) (*AMQPRelay, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	return newRelay(local, ch, exchange, q.Name, logger), nil
}

func newRelay(local *Hub, ch *amqp091.Channel, exchange, queue string, logger *zap.Logger) *AMQPRelay {
	return &AMQPRelay{
		local:    local,
		channel:  ch,
		exchange: exchange,
		queue:    queue,
		origin:   uuid.New().String(),
		logger:   logger,
	}
}

// Publish delivers locally first, then forwards. A broker failure is logged and swallowed.
func (r *AMQPRelay) Publish(channel string, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	r.local.Publish(channel, event)

	body, err := json.Marshal(envelope{Origin: r.origin, Channel: channel, Event: event})
	if err != nil {
		r.logger.Error("AMQPRelay.Publish failed to encode envelope", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err = r.channel.PublishWithContext(ctx, r.exchange, "", false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		r.logger.Warn("AMQPRelay.Publish failed to forward event",
			zap.String("channel", channel),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}

// Run consumes events forwarded by other instances until ctx is done or the channel closes.
func (r *AMQPRelay) Run(ctx context.Context) error {
	deliveries, err := r.channel.Consume(r.queue, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", r.queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("relay channel closed")
			}
			r.handleDelivery(d.Body)
		}
	}
}

func (r *AMQPRelay) handleDelivery(body []byte) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		r.logger.Warn("AMQPRelay.Run dropped malformed delivery", zap.Error(err))
		return
	}
	if env.Origin == r.origin {
		return
	}
	r.local.Publish(env.Channel, env.Event)
}

func (r *AMQPRelay) Close() error {
	return r.channel.Close()
}
