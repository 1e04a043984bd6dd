package messaging

import (
	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

func DeclareBindAndConsume(ch *amqp.Channel, prefix string, topic ChangeTopic) (<-chan amqp.Delivery, error) {
	name := getName(prefix, topic)
	if err := ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, err
	}
	err = ch.QueueBind(q.Name, name, name, false, nil)
	if err != nil {
		return nil, err
	}
	return ch.Consume(
		q.Name,
		"",
		false,
		true,
		false,
		false,
		nil,
	)
}

// ListenToTopic decodes every message on topic into V and hands it to fn.
// Messages fn fails on are rejected without requeue, the listener keeps
// running until the channel closes.
func ListenToTopic[V any](ch *amqp.Channel, prefix string, topic ChangeTopic, fn func(V) error) error {
	msgs, err := DeclareBindAndConsume(ch, prefix, topic)
	if err != nil {
		return err
	}

	go func() {
		defer ch.Close()
		for d := range msgs {
			var value V
			if err := sonic.Unmarshal(d.Body, &value); err != nil {
				logrus.Warnf("bad message on %s: %v", topic, err)
				d.Reject(false)
				continue
			}
			if err := fn(value); err != nil {
				logrus.Errorf("error processing %s message: %v", topic, err)
				d.Reject(false)
				continue
			}
			d.Ack(false)
		}
	}()
	return nil
}
