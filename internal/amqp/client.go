// Package amqp carries the async sync traffic between the ledger
// service and the spreadsheet mirror worker over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	syncRoutingKey   = "ledger.sync"
	deleteRoutingKey = "ledger.delete"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	for _, key := range []string{syncRoutingKey, deleteRoutingKey} {
		if err := c.channel.QueueBind(c.queueName, key, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue for %s: %w", key, err)
		}
	}

	return nil
}

// PublishLedgerSync publishes a sync request for one transaction.
func (c *Client) PublishLedgerSync(ctx context.Context, id, owner string, version int64) error {
	msg := NewLedgerSyncMessage(id, owner, version)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, syncRoutingKey, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published ledger sync message",
		"transaction_id", id,
		"owner", owner,
		"version", version,
		"exchange", c.exchangeName)
	return nil
}

// PublishLedgerDelete publishes a delete notification for a removed
// transaction.
func (c *Client) PublishLedgerDelete(ctx context.Context, id, owner string) error {
	msg := NewLedgerDeleteMessage(id, owner)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, deleteRoutingKey, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published ledger delete message",
		"transaction_id", id,
		"owner", owner)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// ConsumeMessages consumes sync and delete messages, dispatching by
// routing key, until the context is cancelled.
func (c *Client) ConsumeMessages(ctx context.Context,
	onSync func(context.Context, *LedgerSyncMessage) error,
	onDelete func(context.Context, *LedgerDeleteMessage) error) error {

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming ledger sync messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			switch err := c.dispatch(ctx, delivery, onSync, onDelete); {
			case errors.Is(err, errPoisonMessage):
				slog.WarnContext(ctx, "Discarding malformed message",
					"error", err,
					"routing_key", delivery.RoutingKey)
				delivery.Nack(false, false) // reject, no requeue
			case err != nil:
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"routing_key", delivery.RoutingKey)
				delivery.Nack(false, true) // reject and requeue
			default:
				delivery.Ack(false)
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, delivery amqp091.Delivery,
	onSync func(context.Context, *LedgerSyncMessage) error,
	onDelete func(context.Context, *LedgerDeleteMessage) error) error {

	switch delivery.RoutingKey {
	case syncRoutingKey:
		msg, err := LedgerSyncMessageFromJSON(delivery.Body)
		if err != nil {
			return fmt.Errorf("%w: %v", errPoisonMessage, err)
		}
		return onSync(ctx, msg)
	case deleteRoutingKey:
		msg, err := LedgerDeleteMessageFromJSON(delivery.Body)
		if err != nil {
			return fmt.Errorf("%w: %v", errPoisonMessage, err)
		}
		return onDelete(ctx, msg)
	default:
		return fmt.Errorf("%w: unknown routing key %q", errPoisonMessage, delivery.RoutingKey)
	}
}

// errPoisonMessage marks deliveries that can never be processed and must
// not be requeued.
var errPoisonMessage = errors.New("unprocessable message")

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
