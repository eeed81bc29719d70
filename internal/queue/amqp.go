package queue

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/afthar/transfer-agent/internal/event"
)

const dlxSuffix = "-dlx"

const consumerTag = "transfer-agent"

// AMQPConfig contains RabbitMQ transport configuration
type AMQPConfig struct {
	URL        string
	Queue      string
	Prefetch   int
	Workers    int
	DeclareDLX bool
}

// AMQPSource consumes transfer events from a RabbitMQ queue
type AMQPSource struct {
	config AMQPConfig
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *zap.Logger
}

// NewAMQPSource connects to the broker and declares the queue
// topology. With DeclareDLX set, messages rejected as unparseable land
// in a broker-side dead-letter queue next to the work queue.
func NewAMQPSource(cfg AMQPConfig, logger *zap.Logger) (*AMQPSource, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	s := &AMQPSource{
		config: cfg,
		conn:   conn,
		ch:     ch,
		logger: logger,
	}

	if err := s.setup(); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *AMQPSource) setup() error {
	var queueDeclareArgs amqp.Table

	if s.config.DeclareDLX {
		dlxExchange := s.config.Queue + dlxSuffix
		dlxQueue := s.config.Queue + dlxSuffix

		queueDeclareArgs = amqp.Table{
			"x-dead-letter-exchange": dlxExchange,
		}

		if err := s.ch.ExchangeDeclare(dlxExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare dlx exchange: %w", err)
		}
		if _, err := s.ch.QueueDeclare(dlxQueue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare dlx queue: %w", err)
		}
		if err := s.ch.QueueBind(dlxQueue, "", dlxExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind dlx queue: %w", err)
		}
	}

	if _, err := s.ch.QueueDeclare(s.config.Queue, true, false, false, false, queueDeclareArgs); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	return nil
}

// Consume delivers decoded events to fn until the context is cancelled
// or the connection drops. Decoded events are acknowledged after fn
// returns regardless of outcome, because the engine accounts for
// failures itself. Payloads that do not decode are rejected without
// requeue so the broker dead-letter queue captures them.
func (s *AMQPSource) Consume(ctx context.Context, fn Handler) error {
	if err := s.ch.Qos(s.config.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := s.ch.Consume(s.config.Queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	eg, egCtx := errgroup.WithContext(context.Background())

	eg.Go(func() error {
		select {
		case <-ctx.Done():
			return s.ch.Cancel(consumerTag, false)
		case <-egCtx.Done():
			return nil
		case connErr := <-s.conn.NotifyClose(make(chan *amqp.Error)):
			if connErr != nil {
				return connErr
			}
			return nil
		}
	})

	for i := 0; i < s.config.Workers; i++ {
		eg.Go(func() error {
			for delivery := range deliveries {
				select {
				case <-ctx.Done():
					return nil
				default:
					delivery := delivery
					if err := s.handleDelivery(egCtx, &delivery, fn); err != nil {
						return err
					}
				}
			}

			return nil
		})
	}

	return eg.Wait()
}

func (s *AMQPSource) handleDelivery(ctx context.Context, d *amqp.Delivery, fn Handler) error {
	ev, err := event.Unmarshal(d.Body)
	if err != nil {
		s.logger.Error("Rejecting undecodable message", zap.Error(err))
		return d.Reject(false)
	}

	fn(ctx, ev)

	return d.Ack(false)
}

// Close closes the channel and connection
func (s *AMQPSource) Close() error {
	if err := s.ch.Close(); err != nil {
		s.conn.Close()
		return err
	}
	return s.conn.Close()
}

// AMQPPublisher publishes transfer events to the work queue through
// the default exchange. It does not declare the queue; topology is
// owned by the consumer.
type AMQPPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewAMQPPublisher connects to the broker
func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &AMQPPublisher{
		conn:  conn,
		ch:    ch,
		queue: queue,
	}, nil
}

// Publish sends the event with persistent delivery
func (p *AMQPPublisher) Publish(ctx context.Context, ev *event.TransferEvent) error {
	body, err := event.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     ev.EventID,
		CorrelationId: ev.CorrelationID,
		Timestamp:     ev.Timestamp,
		Body:          body,
	}

	return p.ch.Publish("", p.queue, false, false, publishing)
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
