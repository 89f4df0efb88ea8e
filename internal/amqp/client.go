// Package amqp connects the scoring engine to the group's message broker:
// score requests in, recommendations and training notifications out.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Queue names bound on the engine's exchange.
const (
	ScoreRequestQueue = "score_requests"
	ScoreResultQueue  = "score_results"
	ModelTrainedQueue = "model_trained"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
}

func NewClient(url, exchangeName string) (*Client, error) {
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
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
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

	for _, queue := range []string{ScoreRequestQueue, ScoreResultQueue, ModelTrainedQueue} {
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key matches the queue name on the direct exchange.
		if err := c.channel.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

func (c *Client) publish(ctx context.Context, queue string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		queue,          // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

// PublishScoreRequest enqueues an assessment request for the worker.
func (c *Client) PublishScoreRequest(ctx context.Context, msg *ScoreRequestMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal score request: %w", err)
	}
	if err := c.publish(ctx, ScoreRequestQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published score request",
		"request_id", msg.RequestID,
		"member_id", msg.MemberID)
	return nil
}

// PublishScoreResult sends a completed recommendation back to the loan
// workflow.
func (c *Client) PublishScoreResult(ctx context.Context, msg *ScoreResultMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal score result: %w", err)
	}
	if err := c.publish(ctx, ScoreResultQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published score result",
		"request_id", msg.RequestID,
		"member_id", msg.MemberID)
	return nil
}

// PublishModelTrained announces a finished training run.
func (c *Client) PublishModelTrained(ctx context.Context, msg *ModelTrainedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal model trained message: %w", err)
	}
	if err := c.publish(ctx, ModelTrainedQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published model trained notification",
		"version", msg.Version,
		"samples", msg.Samples)
	return nil
}

// ConsumeScoreRequests processes score requests until the context ends.
// Malformed messages are dropped without requeue; handler failures requeue
// the delivery once the broker redelivers it.
func (c *Client) ConsumeScoreRequests(ctx context.Context, handler func(*ScoreRequestMessage) error) error {
	msgs, err := c.channel.Consume(
		ScoreRequestQueue, // queue
		"",                // consumer
		false,             // auto-ack (we want manual ack)
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming score requests", "queue", ScoreRequestQueue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping score request consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := ScoreRequestMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal score request", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle score request",
					"error", err,
					"request_id", msg.RequestID,
					"member_id", msg.MemberID)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

// ConsumeModelTrained watches training notifications until the context
// ends. Notifications are informational, so failures never requeue.
func (c *Client) ConsumeModelTrained(ctx context.Context, handler func(*ModelTrainedMessage)) error {
	msgs, err := c.channel.Consume(
		ModelTrainedQueue, // queue
		"",                // consumer
		false,             // auto-ack (we want manual ack)
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming training notifications", "queue", ModelTrainedQueue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping training notification consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := ModelTrainedMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal training notification", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			handler(msg)
			delivery.Ack(false)
		}
	}
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
