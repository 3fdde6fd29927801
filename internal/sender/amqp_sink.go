// internal/sender/amqp_sink.go
package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/unclebandit/crm-backend/internal/model"
)

// Publisher is the subset of *amqp.Channel the sink uses.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink hands messages to the notification worker through a durable queue.
type AMQPSink struct {
	Channel Publisher
	Queue   string
}

// DeclareQueue declares the durable notification queue on ch.
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func NewAMQPSink(ch Publisher, queue string) *AMQPSink {
	return &AMQPSink{Channel: ch, Queue: queue}
}

func (s *AMQPSink) Send(ctx context.Context, msg model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := model.MarshalMessage(msg)
	if err != nil {
		return err
	}
	err = s.Channel.Publish(
		"",      // default exchange
		s.Queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID(),
			Timestamp:    time.Now().UTC(),
			Type:         msg.Channel(),
			Body:         body,
			Headers:      amqp.Table{"x-retry-count": int32(0)},
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.ID(), err)
	}
	return nil
}
