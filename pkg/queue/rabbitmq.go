package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"herald/pkg/config"
	"herald/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	NotificationExchange = "notifications"

	// JobsQueueName receives notification jobs from the rest of the platform.
	JobsQueueName = "notification_jobs"
	// EmailQueueName receives per-recipient e-mail delivery tasks.
	EmailQueueName = "send_notification_email"

	maxPriority = 10
)

type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logger.Logger
}

func NewRabbitMQClient(cfg *config.Config, log *logger.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.Qos(cfg.WorkerPrefetch, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	err = channel.ExchangeDeclare(
		NotificationExchange, // name
		"direct",             // type
		true,                 // durable
		false,                // auto-deleted
		false,                // internal
		false,                // no-wait
		nil,                  // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	client := &Client{
		conn:    conn,
		channel: channel,
		logger:  log,
	}

	for _, name := range []string{JobsQueueName, EmailQueueName} {
		if err := client.declareQueue(name); err != nil {
			client.Close()
			return nil, err
		}
	}

	log.Info("Connected to RabbitMQ at %s:%s", cfg.RabbitMQHost, cfg.RabbitMQPort)
	return client, nil
}

// declareQueue declares a durable priority queue bound to the exchange with its
// own name as routing key.
func (c *Client) declareQueue(name string) error {
	_, err := c.channel.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-max-priority": maxPriority,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}

	if err := c.channel.QueueBind(name, name, NotificationExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", name, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Publish marshals body as JSON and publishes it to the named queue.
func (c *Client) Publish(ctx context.Context, queueName string, body interface{}, priority int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = c.channel.PublishWithContext(ctx,
		NotificationExchange, // exchange
		queueName,            // routing key
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			Priority:     clampPriority(priority),
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		c.logger.Error("[RABBITMQ] Failed to publish message to exchange=%s, routing_key=%s: %v", NotificationExchange, queueName, err)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Info("[RABBITMQ] Published message to queue=%s, size=%d bytes", queueName, len(payload))
	return nil
}

// Consume registers handler for every delivery on the named queue. Deliveries are
// processed sequentially; concurrency is bounded by the channel prefetch.
func (c *Client) Consume(ctx context.Context, queueName string, handler Handler) error {
	msgs, err := c.channel.Consume(
		queueName, // queue
		"",        // consumer
		false,     // auto-ack (we'll manually ack after processing)
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("[RABBITMQ] Started consuming from queue: %s", queueName)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("[RABBITMQ] Delivery channel closed for queue: %s", queueName)
					return
				}
				dispatch(ctx, c.logger, msg, handler)
			}
		}
	}()

	return nil
}

// QueueLength returns the number of ready messages in the named queue.
func (c *Client) QueueLength(queueName string) (int, error) {
	queue, err := c.channel.QueueInspect(queueName)
	if err != nil {
		return 0, err
	}
	return queue.Messages, nil
}

func clampPriority(priority int) uint8 {
	if priority < 0 {
		return 0
	}
	if priority > maxPriority {
		return maxPriority
	}
	return uint8(priority)
}
