package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/adstudio/backend/internal/models"
)

const (
	OrdersExchange       = "adstudio.orders"
	OrderSubmittedKey    = "custom_order.submitted"
	OrderProductionQueue = "adstudio.orders.production"
	orderMessageType     = "custom_order.submitted"
	orderContentType     = "application/json"
)

// OrderPublisher hands submitted custom orders to the production team.
type OrderPublisher interface {
	PublishOrder(ctx context.Context, order models.CustomOrder) error
}

// NoopOrderPublisher drops every order. It is used when no broker is
// configured.
type NoopOrderPublisher struct{}

// PublishOrder implements OrderPublisher.
func (NoopOrderPublisher) PublishOrder(context.Context, models.CustomOrder) error { return nil }

// AMQPOrderPublisher publishes orders to a durable topic exchange.
type AMQPOrderPublisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// DialOrderPublisher connects to the broker at url and declares the orders
// exchange together with the production queue bound to it.
func DialOrderPublisher(url string) (*AMQPOrderPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareOrderTopology(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPOrderPublisher{conn: conn, channel: channel}, nil
}

func declareOrderTopology(channel *amqp.Channel) error {
	err := channel.ExchangeDeclare(
		OrdersExchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := channel.QueueDeclare(OrderProductionQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := channel.QueueBind(OrderProductionQueue, OrderSubmittedKey, OrdersExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishOrder implements OrderPublisher.
func (p *AMQPOrderPublisher) PublishOrder(ctx context.Context, order models.CustomOrder) error {
	msg, err := orderMessage(order, time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return errors.New("order publisher closed")
	}

	if err := p.channel.PublishWithContext(ctx, OrdersExchange, OrderSubmittedKey, false, false, msg); err != nil {
		return fmt.Errorf("publish order %s: %w", order.ID, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPOrderPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

func orderMessage(order models.CustomOrder, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal order: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  orderContentType,
		MessageId:    order.ID,
		Type:         orderMessageType,
		Timestamp:    now,
		Body:         body,
	}, nil
}
