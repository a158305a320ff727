package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/baechuer/contacts-api/internal/domain"
	"github.com/baechuer/contacts-api/internal/infrastructure/mail"
)

const (
	DefaultExchange    = "contacts.mail"
	MailRequestedKey   = "mail.requested"
	defaultPublishWait = 2 * time.Second
)

// mailRequested is the wire payload consumed by the external mail service.
type mailRequested struct {
	MessageID   string    `json:"message_id"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	HTMLBody    string    `json:"html_body,omitempty"`
	TextBody    string    `json:"text_body"`
	RequestedAt time.Time `json:"requested_at"`
}

func newMailRequested(msg mail.Message, now time.Time) mailRequested {
	return mailRequested{
		MessageID:   uuid.NewString(),
		To:          msg.To,
		Subject:     msg.Subject,
		HTMLBody:    msg.HTMLBody,
		TextBody:    msg.TextBody,
		RequestedAt: now.UTC(),
	}
}

/*
MailPublisher
-------------
mail.Gateway that hands messages to a topic exchange with publisher confirms
and mandatory routing. A message counts as sent once the broker acks it; an
unroutable message (no bound queue) is an error so the dispatcher retries.
*/
type MailPublisher struct {
	url      string
	exchange string
	wait     time.Duration
	lg       zerolog.Logger

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewMailPublisher(url string, lg zerolog.Logger) (*MailPublisher, error) {
	p := &MailPublisher{
		url:      url,
		exchange: DefaultExchange,
		wait:     defaultPublishWait,
		lg:       lg.With().Str("component", "mail_publisher").Logger(),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *MailPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetConn()
	return nil
}

// Ping reports whether the broker connection is usable.
func (p *MailPublisher) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureConnected(); err != nil {
		return domain.ErrRabbitUnavailable(err)
	}
	return nil
}

// ---- mail.Gateway ----

func (p *MailPublisher) Send(ctx context.Context, msg mail.Message) error {
	body, err := json.Marshal(newMailRequested(msg, time.Now()))
	if err != nil {
		return mail.NewPermanentError("encode mail payload: " + err.Error())
	}
	return p.publish(ctx, MailRequestedKey, body)
}

// ---- internal ----

func (p *MailPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	// Declare topic exchange (idempotent).
	if err := ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("exchange declare: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("confirm mode: %w", err)
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *MailPublisher) ensureConnected() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.resetConn()
	return p.connect()
}

func (p *MailPublisher) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, p.wait)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnected(); err != nil {
		return domain.ErrRabbitUnavailable(err)
	}

	// Drain any stale confirm / return messages to avoid mixing results.
drain:
	for {
		select {
		case <-p.confirmCh:
		case <-p.returnCh:
		default:
			break drain
		}
	}

	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		p.resetConn()
		return fmt.Errorf("publish failed: %w", err)
	}

	select {
	case ret := <-p.returnCh:
		return unroutable(routingKey, ret)

	case conf, ok := <-p.confirmCh:
		if !ok {
			p.resetConn()
			return errors.New("rabbitmq channel closed while awaiting confirm")
		}
		// basic.return precedes basic.ack on the wire and the client
		// dispatches frames in order, so a return is already buffered.
		select {
		case ret := <-p.returnCh:
			return unroutable(routingKey, ret)
		default:
		}
		if !conf.Ack {
			return fmt.Errorf("rabbitmq nack: key=%s deliveryTag=%d", routingKey, conf.DeliveryTag)
		}
		return nil

	case <-ctx.Done():
		p.lg.Warn().Str("key", routingKey).Msg("publish confirm timeout")
		// the channel may still deliver a late confirm; start clean next time
		p.resetConn()
		return fmt.Errorf("rabbitmq publish timeout: key=%s: %w", routingKey, ctx.Err())
	}
}

func unroutable(key string, ret amqp.Return) error {
	return fmt.Errorf("rabbitmq unroutable: key=%s code=%d text=%s", key, ret.ReplyCode, ret.ReplyText)
}

func (p *MailPublisher) resetConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
