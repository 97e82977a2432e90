package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client holds one AMQP connection and channel bound to the events queue.
type Client struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Queue   string
}

// Dial connects to the broker and opens a channel.
func Dial(url, queue string) (*Client, error) {
	if url == "" {
		return nil, errors.New("worker: RABBITMQ_URL is empty")
	}
	if queue == "" {
		return nil, errors.New("worker: queue name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("worker: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("worker: channel: %w", err)
	}
	return &Client{Conn: conn, Channel: ch, Queue: queue}, nil
}

// DeclareTopology declares the durable events queue.
func (c *Client) DeclareTopology() error {
	_, err := c.Channel.QueueDeclare(c.Queue, true, false, false, false, nil)
	return err
}

// Publish sends one event as a persistent JSON message.
func (c *Client) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.Channel.PublishWithContext(ctx, "", c.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (c *Client) Close() {
	if c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}
