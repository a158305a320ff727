package mail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/baechuer/contacts-api/internal/audit"
	"github.com/baechuer/contacts-api/internal/metrics"
)

var (
	ErrQueueFull        = errors.New("mail queue full")
	ErrDispatcherClosed = errors.New("mail dispatcher closed")
)

type DispatcherConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	// InitialInterval is the first backoff step; it grows exponentially.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

/*
Dispatcher
----------
Bounded worker pool in front of a Gateway. Send never blocks: a full queue
rejects the message. Each job is attempted up to MaxRetries+1 times with
exponential backoff; PermanentError stops retrying.
*/
type Dispatcher struct {
	gw  Gateway
	cfg DispatcherConfig
	lg  zerolog.Logger

	jobs chan Message

	mu     sync.RWMutex
	closed bool

	// cancelled when Close gives up waiting, so in-flight backoffs stop.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDispatcher(gw Gateway, cfg DispatcherConfig, lg zerolog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		gw:      gw,
		cfg:     cfg,
		lg:      lg.With().Str("component", "mail_dispatcher").Logger(),
		jobs:    make(chan Message, cfg.QueueSize),
		baseCtx: ctx,
		cancel:  cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Send enqueues msg. It satisfies Gateway so callers cannot tell a queued
// gateway from a direct one.
func (d *Dispatcher) Send(_ context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.jobs <- msg:
		return nil
	default:
		metrics.MailDeliveriesTotal.WithLabelValues("dropped").Inc()
		d.lg.Error().
			Str("to", audit.MaskEmail(msg.To)).
			Str("subject", msg.Subject).
			Msg("mail queue full, message dropped")
		return ErrQueueFull
	}
}

// Close stops intake and waits for queued messages to drain. When ctx ends
// first, pending retries are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.jobs {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.cfg.InitialInterval
	eb.MaxInterval = d.cfg.MaxInterval
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(d.cfg.MaxRetries)), d.baseCtx)

	attempt := 0
	op := func() error {
		attempt++
		err := d.gw.Send(d.baseCtx, msg)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return backoff.Permanent(err)
		}
		if attempt <= d.cfg.MaxRetries {
			metrics.MailDeliveriesTotal.WithLabelValues("retried").Inc()
			d.lg.Warn().Err(err).Int("attempt", attempt).Str("subject", msg.Subject).Msg("mail send failed, retrying")
		}
		return err
	}

	if err := backoff.Retry(op, policy); err != nil {
		metrics.MailDeliveriesTotal.WithLabelValues("failed").Inc()
		d.lg.Error().
			Err(err).
			Int("attempts", attempt).
			Str("to", audit.MaskEmail(msg.To)).
			Str("subject", msg.Subject).
			Msg("mail delivery failed")
		return
	}
	metrics.MailDeliveriesTotal.WithLabelValues("sent").Inc()
}
