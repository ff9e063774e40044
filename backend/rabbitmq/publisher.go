// Package rabbitmq publishes report lifecycle events to a topic exchange.
package rabbitmq

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  channel
	exchange string
	now      func() time.Time
}

// NewPublisher dials the broker and declares a durable topic exchange.
func NewPublisher(amqpURL, exchangeName string) (*Publisher, error) {
	conn, err := amqp.DialConfig(amqpURL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchangeName, err)
	}

	log.Infof("Publishing events to exchange %s", exchangeName)
	return newPublisher(conn, ch, exchangeName), nil
}

func newPublisher(conn *amqp.Connection, ch channel, exchange string) *Publisher {
	return &Publisher{conn: conn, channel: ch, exchange: exchange, now: time.Now}
}

// PublishWithRoutingKey sends message as persistent JSON.
func (p *Publisher) PublishWithRoutingKey(routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message to JSON: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Type:         routingKey,
	}

	// amqp channels must not be shared between concurrent publishers
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Publish(p.exchange, routingKey, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	log.Debugf("Published %s (%d bytes) to %s", routingKey, len(body), p.exchange)
	return nil
}

func (p *Publisher) Close() error {
	var err error
	if p.channel != nil {
		if chErr := p.channel.Close(); chErr != nil {
			log.Warnf("Failed to close channel: %v", chErr)
			err = chErr
		}
	}
	if p.conn != nil {
		if connErr := p.conn.Close(); connErr != nil {
			log.Warnf("Failed to close connection: %v", connErr)
			if err == nil {
				err = connErr
			}
		}
	}
	return err
}

// IsConnected reports whether the broker connection is still open.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && !p.conn.IsClosed()
}
