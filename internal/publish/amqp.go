package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/machinepulse/machinepulse/internal/alarm"
	"github.com/machinepulse/machinepulse/internal/config"
)

const (
	maxDialAttempts = 5
	redialDelay     = 5 * time.Second
	queueDepth      = 256
)

// AMQPPublisher ships alarm events to a durable topic exchange.
type AMQPPublisher struct {
	cfg   config.AMQPConfig
	log   *slog.Logger
	queue chan alarm.Event
}

// NewAMQP builds the publisher. Nothing is dialed until Run.
func NewAMQP(cfg config.AMQPConfig, log *slog.Logger) *AMQPPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &AMQPPublisher{
		cfg:   cfg,
		log:   log,
		queue: make(chan alarm.Event, queueDepth),
	}
}

// Enqueue hands an event to the publisher without blocking. When the queue
// is full the event is dropped and counted in the log.
func (p *AMQPPublisher) Enqueue(ev alarm.Event) {
	select {
	case p.queue <- ev:
	default:
		p.log.Warn("amqp: queue full, dropping event", "event", ev.ID, "name", ev.Name)
	}
}

// Run publishes queued events until ctx is cancelled, redialing the broker
// whenever the connection drops.
func (p *AMQPPublisher) Run(ctx context.Context) error {
	for {
		conn, ch, err := p.connect()
		if err != nil {
			p.log.Error("amqp: connect failed", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(redialDelay):
				continue
			}
		}

		err = p.pump(ctx, ch)
		ch.Close()
		conn.Close()
		if err == nil {
			return nil
		}
		p.log.Warn("amqp: connection lost, redialing", "err", err)
	}
}

func (p *AMQPPublisher) connect() (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= maxDialAttempts; attempt++ {
		conn, err = amqp.Dial(p.cfg.URL())
		if err == nil {
			break
		}
		p.log.Warn("amqp: dial failed", "attempt", attempt, "err", err)
		if attempt < maxDialAttempts {
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial after %d attempts: %w", maxDialAttempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %q: %w", p.cfg.Exchange, err)
	}
	p.log.Info("amqp: connected", "exchange", p.cfg.Exchange)
	return conn, ch, nil
}

// pump drains the queue into the channel. Returns nil on shutdown, an error
// when the connection must be re-established.
func (p *AMQPPublisher) pump(ctx context.Context, ch *amqp.Channel) error {
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-closed:
			return err
		case ev := <-p.queue:
			if err := p.publish(ctx, ch, ev); err != nil {
				p.log.Error("amqp: publish failed", "event", ev.ID, "err", err)
				return err
			}
		}
	}
}

func (p *AMQPPublisher) publish(ctx context.Context, ch *amqp.Channel, ev alarm.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return ch.PublishWithContext(ctx,
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Timestamp:    ev.Time,
		},
	)
}
