package notify

import (
	"context"
	"log/slog"
	"sync"

	id "bunkhouse/pkg/domain"
)

//go:generate mockgen -source=transport.go -destination=mocks/transport.go -package=mocks

// Transport delivers one serialized payload to one recipient. Implementations
// return an error on transient transport failure; the dispatcher owns the
// retry policy.
type Transport interface {
	Send(ctx context.Context, recipient id.PrincipalID, payload []byte) error
}

// LogTransport writes notifications to the log instead of an external
// channel. Development default when no broker is configured.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, recipient id.PrincipalID, payload []byte) error {
	t.logger.InfoContext(ctx, "notification",
		"recipient", recipient,
		"payload", string(payload),
	)
	return nil
}

// MemoryTransport records deliveries for tests and can be primed to fail a
// number of times to exercise the retry policy.
type MemoryTransport struct {
	mu      sync.Mutex
	sent    []Delivery
	fail    int
	failErr error
}

// Delivery is one recorded send.
type Delivery struct {
	Recipient id.PrincipalID
	Payload   []byte
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

// FailNext makes the next n sends return err.
func (t *MemoryTransport) FailNext(n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail = n
	t.failErr = err
}

func (t *MemoryTransport) Send(_ context.Context, recipient id.PrincipalID, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail > 0 {
		t.fail--
		return t.failErr
	}
	t.sent = append(t.sent, Delivery{Recipient: recipient, Payload: append([]byte(nil), payload...)})
	return nil
}

// Sent returns a copy of the recorded deliveries.
func (t *MemoryTransport) Sent() []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Delivery, len(t.sent))
	copy(out, t.sent)
	return out
}
