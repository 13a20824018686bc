package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	id "bunkhouse/pkg/domain"
	"bunkhouse/pkg/platform/retry"
)

const (
	defaultInboxSize = 256
	drainTimeout     = 5 * time.Second
)

// Dispatcher fans payloads out to recipients through a background worker.
// Enqueueing never blocks: a full inbox drops the message with a log line,
// because a stalled notification channel must not stall lifecycle
// operations.
type Dispatcher struct {
	transport Transport
	inbox     chan Message
	policy    retry.Policy
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

func WithInboxSize(n int) Option {
	return func(d *Dispatcher) { d.inbox = make(chan Message, n) }
}

func NewDispatcher(transport Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		inbox:     make(chan Message, defaultInboxSize),
		policy:    retry.Default,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send enqueues one message per recipient. It returns immediately; delivery
// happens on the worker goroutine. Callers must not assume delivery.
func (d *Dispatcher) Send(ctx context.Context, recipients []id.PrincipalID, payload Payload) {
	for _, recipient := range recipients {
		msg := Message{Recipient: recipient, Payload: payload}
		select {
		case d.inbox <- msg:
		default:
			d.logger.WarnContext(ctx, "notification inbox full, dropping message",
				"kind", payload.Kind,
				"recipient", recipient,
			)
			d.metrics.IncDropped("inbox_full")
		}
	}
}

// Run consumes the inbox until the context is cancelled, then drains the
// messages already accepted before returning. Delivery failures are retried
// per the policy, then dropped and logged; they are never surfaced to the
// operation that enqueued the message.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return ctx.Err()
		case msg := <-d.inbox:
			d.deliver(ctx, msg)
		}
	}
}

// drain flushes the buffered inbox on shutdown. The run context is already
// cancelled at this point, so deliveries get a fresh bounded deadline.
func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case msg := <-d.inbox:
			d.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	body, err := json.Marshal(msg.Payload)
	if err != nil {
		d.logger.ErrorContext(ctx, "notification payload not serializable",
			"kind", msg.Payload.Kind,
			"error", err,
		)
		d.metrics.IncDropped("marshal")
		return
	}

	start := time.Now()
	err = d.policy.Do(ctx, func(ctx context.Context) error {
		return d.transport.Send(ctx, msg.Recipient, body)
	})
	d.metrics.ObserveSend(time.Since(start).Seconds())

	if err != nil {
		d.logger.WarnContext(ctx, "notification dropped after retries",
			"kind", msg.Payload.Kind,
			"recipient", msg.Recipient,
			"attempts", d.policy.MaxAttempts,
			"error", err,
		)
		d.metrics.IncDropped("transport")
		return
	}
	d.metrics.IncDelivered()
}
