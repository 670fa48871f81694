package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mavex/checkout/internal/core/domain"
)

const orderCreatedRoutingKey = "order.created"

type orderCreatedEvent struct {
	OrderID       string    `json:"order_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	TotalAmount   int       `json:"total_amount"`
	PaymentMethod string    `json:"payment_method"`
	ItemCount     int       `json:"item_count"`
	Occurred      time.Time `json:"occurred"`
}

// AMQPNotifier publishes order-created events for downstream consumers
// (email, fulfillment). Strictly best-effort: callers log publish
// failures and move on.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPNotifier{conn: conn, channel: ch, exchange: exchange}, nil
}

func (n *AMQPNotifier) NotifyOrderCreated(ctx context.Context, order domain.Order) error {
	body, err := json.Marshal(orderCreatedEvent{
		OrderID:       order.ID,
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: string(order.PaymentMethod),
		ItemCount:     len(order.Items),
		Occurred:      order.CreatedAt,
	})
	if err != nil {
		return err
	}

	return n.channel.PublishWithContext(ctx,
		n.exchange,
		orderCreatedRoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (n *AMQPNotifier) Close() {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}
