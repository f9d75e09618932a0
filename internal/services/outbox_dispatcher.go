package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"taskflow/internal/metrics"
	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

// Sender delivers one outbox message. Returning an error schedules a retry.
type Sender interface {
	Deliver(ctx context.Context, msg models.OutboxMessage) error
}

type SenderFunc func(ctx context.Context, msg models.OutboxMessage) error

func (f SenderFunc) Deliver(ctx context.Context, msg models.OutboxMessage) error { return f(ctx, msg) }

// OutboxTrigger asks the dispatcher to run soon. It never blocks.
type OutboxTrigger interface {
	Trigger()
}

type OutboxConfig struct {
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// Lease is how long a claimed message stays invisible to other
	// dispatchers while it is being delivered.
	Lease time.Duration
}

type OutboxDispatcher struct {
	store    repositories.Store
	senders  map[models.OutboxKind]Sender
	breakers map[models.OutboxKind]*gobreaker.CircuitBreaker
	cfg      OutboxConfig
	trigger  chan struct{}
	now      func() time.Time
}

func NewOutboxDispatcher(store repositories.Store, cfg OutboxConfig, senders map[models.OutboxKind]Sender) *OutboxDispatcher {
	if cfg.Lease == 0 {
		cfg.Lease = time.Minute
	}
	d := &OutboxDispatcher{
		store:    store,
		senders:  senders,
		breakers: make(map[models.OutboxKind]*gobreaker.CircuitBreaker, len(senders)),
		cfg:      cfg,
		trigger:  make(chan struct{}, 1),
		now:      time.Now,
	}
	for kind := range senders {
		d.breakers[kind] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "outbox-" + string(kind),
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
			OnStateChange: func(name string, from, to gobreaker.State) {
				logrus.Warnf("[outbox][breaker] %s %s -> %s", name, from, to)
			},
		})
	}
	return d
}

func (d *OutboxDispatcher) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Run dispatches whenever triggered until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.trigger:
			if _, err := d.DispatchOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logrus.Errorf("[outbox][dispatch][err] %v", err)
			}
		}
	}
}

// Backoff returns the delay before retry number attempts+1.
func (d *OutboxDispatcher) Backoff(attempts int) time.Duration {
	delay := d.cfg.BaseBackoff
	for i := 0; i < attempts && delay < d.cfg.MaxBackoff; i++ {
		delay *= 2
	}
	if delay > d.cfg.MaxBackoff {
		delay = d.cfg.MaxBackoff
	}
	return delay
}

// DispatchOnce delivers one batch of due messages and reports how many were
// sent.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	msgs, err := d.store.Outbox().ClaimDue(ctx, d.now(), d.cfg.Lease, d.cfg.MaxAttempts, d.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim outbox: %w", err)
	}
	sent := 0
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := d.deliver(ctx, msg); err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				// Not attempted. The claim lease brings it back once the breaker may have closed.
				metrics.OutboxDeliveries.WithLabelValues(string(msg.Kind), "deferred").Inc()
				logrus.Debugf("[outbox][deliver][deferred] id=%d kind=%s: %v", msg.ID, msg.Kind, err)
				continue
			}
			metrics.OutboxDeliveries.WithLabelValues(string(msg.Kind), "failed").Inc()
			next := d.now().Add(d.Backoff(msg.Attempts))
			if msg.Attempts+1 >= d.cfg.MaxAttempts {
				logrus.Errorf("[outbox][deliver][dead] id=%d kind=%s attempts=%d: %v", msg.ID, msg.Kind, msg.Attempts+1, err)
			} else {
				logrus.Warnf("[outbox][deliver][retry] id=%d kind=%s next=%s: %v", msg.ID, msg.Kind, next.Format(time.RFC3339), err)
			}
			if markErr := d.store.Outbox().MarkFailed(ctx, msg.ID, err.Error(), next); markErr != nil {
				return sent, fmt.Errorf("mark outbox %d failed: %w", msg.ID, markErr)
			}
			continue
		}
		metrics.OutboxDeliveries.WithLabelValues(string(msg.Kind), "sent").Inc()
		if err := d.store.Outbox().MarkSent(ctx, msg.ID, d.now()); err != nil {
			return sent, fmt.Errorf("mark outbox %d sent: %w", msg.ID, err)
		}
		sent++
	}
	return sent, nil
}

func (d *OutboxDispatcher) deliver(ctx context.Context, msg models.OutboxMessage) error {
	sender, ok := d.senders[msg.Kind]
	if !ok {
		return fmt.Errorf("no sender configured for %q", msg.Kind)
	}
	_, err := d.breakers[msg.Kind].Execute(func() (interface{}, error) {
		return nil, sender.Deliver(ctx, msg)
	})
	return err
}
