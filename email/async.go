package email

import (
	"context"
	"sync"
	"time"
)

// DefaultSendTimeout bounds a single asynchronous delivery attempt.
const DefaultSendTimeout = 30 * time.Second

// Async sends messages in the background. Send never blocks on the underlying transport and never reports a
// delivery failure; failures are logged and the message is abandoned.
type Async struct {
	sender  Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync wraps a sender so that deliveries happen in the background.
func NewAsync(sender Sender, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Async{sender: sender, timeout: timeout}
}

// Send starts delivering a message in the background and returns immediately. Cancellation of the caller's
// context does not abort the delivery.
func (a *Async) Send(ctx context.Context, msg *Message) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.sender.Send(sendCtx, msg); err != nil {
			log.WithField("to", msg.To).WithError(err).Error("e-mail delivery failed")
		}
	}()
	return nil
}

// Wait blocks until every delivery started so far has finished.
func (a *Async) Wait() {
	a.wg.Wait()
}
