package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bunkhouse/internal/notify/mocks"
	id "bunkhouse/pkg/domain"
	"bunkhouse/pkg/platform/retry"
)

// =============================================================================
// Notification Dispatcher Test Suite
// =============================================================================

type DispatcherSuite struct {
	suite.Suite
	recipient id.PrincipalID
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.recipient = id.NewPrincipalID()
}

func (s *DispatcherSuite) payload() Payload {
	return Payload{
		Kind:       KindExitRecorded,
		WorkerName: "Jan Kowalski",
		NationalID: "AB123",
		FarmID:     id.NewFarmID(),
	}
}

// runUntilDrained runs the dispatcher worker until the inbox empties.
func (s *DispatcherSuite) runUntilDrained(d *Dispatcher) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	for len(d.inbox) > 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(5 * time.Millisecond)
	cancel()
	<-done
}

func (s *DispatcherSuite) TestSend() {
	s.Run("delivers one message per recipient", func() {
		transport := NewMemoryTransport()
		d := NewDispatcher(transport)

		other := id.NewPrincipalID()
		d.Send(context.Background(), []id.PrincipalID{s.recipient, other}, s.payload())
		s.runUntilDrained(d)

		sent := transport.Sent()
		s.Require().Len(sent, 2)
		s.Equal(s.recipient, sent[0].Recipient)
		s.Equal(other, sent[1].Recipient)
		s.Contains(string(sent[0].Payload), "exit_recorded")
	})

	s.Run("drops when the inbox is full without blocking", func() {
		transport := NewMemoryTransport()
		d := NewDispatcher(transport, WithInboxSize(1))

		recipients := []id.PrincipalID{s.recipient, id.NewPrincipalID(), id.NewPrincipalID()}
		done := make(chan struct{})
		go func() {
			defer close(done)
			d.Send(context.Background(), recipients, s.payload())
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			s.Fail("Send blocked on a full inbox")
		}
	})
}

func (s *DispatcherSuite) TestShutdownDrain() {
	s.Run("delivers accepted messages before Run returns", func() {
		transport := NewMemoryTransport()
		d := NewDispatcher(transport)

		recipients := []id.PrincipalID{s.recipient, id.NewPrincipalID(), id.NewPrincipalID()}
		d.Send(context.Background(), recipients, s.payload())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := d.Run(ctx)

		s.ErrorIs(err, context.Canceled)
		s.Len(transport.Sent(), 3)
	})
}

func (s *DispatcherSuite) TestDeliveryRetries() {
	s.Run("retries a transient failure then succeeds", func() {
		transport := NewMemoryTransport()
		transport.FailNext(2, errors.New("broker unavailable"))
		d := NewDispatcher(transport,
			WithRetryPolicy(retry.Policy{MaxAttempts: 3, Backoff: time.Millisecond}),
		)

		d.Send(context.Background(), []id.PrincipalID{s.recipient}, s.payload())
		s.runUntilDrained(d)

		s.Require().Len(transport.Sent(), 1)
	})

	s.Run("drops after the attempts are exhausted", func() {
		ctrl := gomock.NewController(s.T())
		transport := mocks.NewMockTransport(ctrl)
		transport.EXPECT().
			Send(gomock.Any(), s.recipient, gomock.Any()).
			Return(errors.New("broker unavailable")).
			Times(2)

		d := NewDispatcher(transport,
			WithRetryPolicy(retry.Policy{MaxAttempts: 2, Backoff: time.Millisecond}),
		)
		d.Send(context.Background(), []id.PrincipalID{s.recipient}, s.payload())
		s.runUntilDrained(d)
	})

	s.Run("failure never reaches the caller", func() {
		ctrl := gomock.NewController(s.T())
		transport := mocks.NewMockTransport(ctrl)
		transport.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.New("permanently down")).
			AnyTimes()

		d := NewDispatcher(transport,
			WithRetryPolicy(retry.Policy{MaxAttempts: 1, Backoff: time.Millisecond}),
		)
		// Send has no error return; the assertion is that nothing panics and
		// the worker keeps consuming.
		d.Send(context.Background(), []id.PrincipalID{s.recipient}, s.payload())
		d.Send(context.Background(), []id.PrincipalID{s.recipient}, s.payload())
		s.runUntilDrained(d)
	})
}
