package amqpx

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"autoflow/pkg/log"

	"github.com/streadway/amqp"
)

var ErrClosed = errors.New("amqp publisher closed")

type Config struct {
	URL          string
	Exchange     string
	Retry        int
	DialInterval time.Duration
	Heartbeat    time.Duration
}

// Publisher sends JSON messages to a durable topic exchange. The connection
// is opened lazily and re-dialled after a failed publish.
type Publisher struct {
	cfg Config

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

func NewPublisher(cfg Config) *Publisher {
	if cfg.DialInterval <= 0 {
		cfg.DialInterval = 500 * time.Millisecond
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 10 * time.Second
	}
	if cfg.Retry < 0 {
		cfg.Retry = 0
	}
	return &Publisher{cfg: cfg}
}

func (p *Publisher) ensureConnection() error {
	if p.closed {
		return ErrClosed
	}
	if p.conn != nil && !p.conn.IsClosed() && p.channel != nil {
		return nil
	}

	conn, err := amqp.DialConfig(p.cfg.URL, amqp.Config{
		Heartbeat: p.cfg.Heartbeat,
		Locale:    "en_US",
		Properties: amqp.Table{
			"product": "autoflow",
		},
	})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open amqp channel: %w", err)
	}
	if err := channel.ExchangeDeclare(p.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.cfg.Exchange, err)
	}
	p.conn = conn
	p.channel = channel
	log.Debugf(nil, "amqp publisher connected to exchange %s", p.cfg.Exchange)
	return nil
}

func (p *Publisher) reset() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.channel = nil
	p.conn = nil
}

func prepareMessage(body []byte, messageID string, expiration time.Duration) amqp.Publishing {
	msg := amqp.Publishing{
		ContentType:     "application/json",
		ContentEncoding: "utf-8",
		DeliveryMode:    amqp.Persistent,
		MessageId:       messageID,
		Timestamp:       time.Now().UTC(),
		Body:            body,
	}
	if expiration > 0 {
		msg.Expiration = strconv.Itoa(int(expiration / time.Millisecond))
	}
	return msg
}

// Publish sends body under routingKey, retrying up to cfg.Retry times.
func (p *Publisher) Publish(routingKey, messageID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := prepareMessage(body, messageID, 0)
	var lastErr error
	for attempt := 0; attempt <= p.cfg.Retry; attempt++ {
		if attempt > 0 {
			time.Sleep(p.cfg.DialInterval)
		}
		if err := p.ensureConnection(); err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			lastErr = err
			continue
		}
		err := p.channel.Publish(p.cfg.Exchange, routingKey, false, false, msg)
		if err == nil {
			return nil
		}
		log.Warnf(nil, "publish %s failed (attempt %d): %s", routingKey, attempt+1, err.Error())
		lastErr = err
		p.reset()
	}
	return fmt.Errorf("publish failed, error: %w", lastErr)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.reset()
	return nil
}
