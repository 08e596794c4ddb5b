package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
	"tg-media-bot/internal/infra/metrics"
)

// Lane — одна именованная линия задач: публикация и блокирующее
// чтение сырых JSON-полезных нагрузок.
type Lane interface {
	Publish(ctx context.Context, payload []byte) error
	Receive(ctx context.Context) ([]byte, domain.AckFunc, error)
}

// LaneOpener открывает линию по имени.
type LaneOpener interface {
	Open(lane string) (Lane, error)
}

// Rabbit держит соединение с RabbitMQ и открывает линии-очереди.
type Rabbit struct {
	conn *amqp.Connection
	log  zerolog.Logger
}

// NewRabbit подключается к брокеру.
func NewRabbit(url string, log zerolog.Logger) (*Rabbit, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	return &Rabbit{conn: conn, log: log}, nil
}

// Close закрывает соединение.
func (r *Rabbit) Close() error {
	return r.conn.Close()
}

// Open объявляет durable-очередь и возвращает линию поверх неё.
func (r *Rabbit) Open(lane string) (Lane, error) {
	if lane == "" {
		return nil, errors.New("queue name is empty")
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(lane, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", lane, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &rabbitLane{ch: ch, name: lane, log: r.log}, nil
}

type rabbitLane struct {
	ch   *amqp.Channel
	name string
	log  zerolog.Logger

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// Publish публикует задачу в очередь с персистентной доставкой.
func (l *rabbitLane) Publish(ctx context.Context, payload []byte) error {
	start := time.Now()
	err := l.ch.PublishWithContext(ctx, "", l.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", l.name, start, err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", l.name, err)
	}
	return nil
}

// Receive блокирующе читает задачу. Подтверждение ack(true) удаляет
// сообщение, ack(false) возвращает его в очередь.
func (l *rabbitLane) Receive(ctx context.Context) ([]byte, domain.AckFunc, error) {
	deliveries, err := l.consumeChan()
	if err != nil {
		return nil, nil, err
	}
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			return nil, nil, fmt.Errorf("queue %s: consume channel closed", l.name)
		}
		ack := func(success bool) error {
			if success {
				return d.Ack(false)
			}
			return d.Nack(false, true)
		}
		return d.Body, ack, nil
	}
}

func (l *rabbitLane) consumeChan() (<-chan amqp.Delivery, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deliveries != nil {
		return l.deliveries, nil
	}
	deliveries, err := l.ch.Consume(l.name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", l.name, err)
	}
	l.deliveries = deliveries
	return deliveries, nil
}
