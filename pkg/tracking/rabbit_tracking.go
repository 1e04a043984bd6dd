// Package tracking publishes storefront session and browse events.
package tracking

import (
	"time"

	"github.com/matst80/slask-catalog/pkg/common"
	"github.com/matst80/slask-catalog/pkg/messaging"
	"github.com/matst80/slask-catalog/pkg/types"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	EventSession uint16 = 0
	EventBrowse  uint16 = 1
)

type BaseEvent struct {
	SessionId string `json:"session_id"`
	Country   string `json:"country,omitempty"`
	Context   string `json:"context,omitempty"`
	Event     uint16 `json:"event"`
	Timestamp int64  `json:"ts"`
}

type Session struct {
	*BaseEvent
	UserAgent string `json:"user_agent,omitempty"`
	Ip        string `json:"ip,omitempty"`
}

type BrowseEventData struct {
	*BaseEvent
	types.BrowseEvent
}

// RabbitTracking queues events and publishes them in batches, so tracking
// never blocks a request.
type RabbitTracking struct {
	country    string
	connection *amqp.Connection
	queue      *common.QueueHandler[any]
	publish    func(events []any) error
	now        func() time.Time
}

func NewRabbitTracking(cfg messaging.RabbitConfig, country string) (*RabbitTracking, error) {
	conn, err := amqp.Dial(cfg.Url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = messaging.GlobalPrefix
	}
	if err := messaging.DefineTopic(ch, prefix, messaging.BrowseTracked); err != nil {
		conn.Close()
		return nil, err
	}
	t := newTracking(country, func(events []any) error {
		return messaging.SendChange(conn, prefix, messaging.BrowseTracked, events...)
	})
	t.connection = conn
	return t, nil
}

func newTracking(country string, publish func([]any) error) *RabbitTracking {
	t := &RabbitTracking{
		country: country,
		publish: publish,
		now:     time.Now,
	}
	t.queue = common.NewQueueHandler(t.flush, 50, time.Second)
	return t
}

func (t *RabbitTracking) flush(events []any) {
	if err := t.publish(events); err != nil {
		logrus.Warnf("could not send %d tracking events: %v", len(events), err)
	}
}

func (t *RabbitTracking) base(sessionId string, event uint16) *BaseEvent {
	return &BaseEvent{
		SessionId: sessionId,
		Country:   t.country,
		Context:   "b2c",
		Event:     event,
		Timestamp: t.now().Unix(),
	}
}

func (t *RabbitTracking) TrackSession(sessionId string, userAgent string, ip string) {
	t.queue.Add(&Session{
		BaseEvent: t.base(sessionId, EventSession),
		UserAgent: userAgent,
		Ip:        ip,
	})
}

func (t *RabbitTracking) TrackBrowse(sessionId string, event types.BrowseEvent) {
	t.queue.Add(&BrowseEventData{
		BaseEvent:   t.base(sessionId, EventBrowse),
		BrowseEvent: event,
	})
}

// Close publishes what is queued and closes the connection.
func (t *RabbitTracking) Close() error {
	t.queue.Close()
	if t.connection == nil {
		return nil
	}
	return t.connection.Close()
}
