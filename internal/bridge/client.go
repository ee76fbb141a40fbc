package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Transport broadcasts an encoded envelope to whatever agents are listening.
type Transport interface {
	Broadcast(ctx context.Context, data []byte) error
}

type Client struct {
	transport Transport
	mailbox   *Mailbox
	logger    *zap.Logger

	mu        sync.RWMutex
	observers map[int]func(Message)
	nextID    int
}

func NewClient(transport Transport, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		transport: transport,
		mailbox:   NewMailbox(),
		logger:    logger.Named("bridge"),
		observers: make(map[int]func(Message)),
	}
}

// Send broadcasts msg without waiting for any acknowledgment. Failures are
// logged and otherwise ignored.
func (c *Client) Send(ctx context.Context, msg Message) {
	data, err := Encode(msg)
	if err != nil {
		c.logger.Error("encode bridge message", zap.Error(err))
		return
	}
	if c.transport == nil {
		c.logger.Warn("bridge transport not configured", zap.String("kind", string(msg.Kind())))
		return
	}
	if err := c.transport.Broadcast(ctx, data); err != nil {
		c.logger.Warn("broadcast bridge message", zap.String("kind", string(msg.Kind())), zap.Error(err))
		return
	}
	c.logger.Debug("bridge message sent", zap.String("kind", string(msg.Kind())))
}

// Register installs the pending slot for kind. Callers that send the trigger
// themselves register first so a fast reply is not lost.
func (c *Client) Register(kind Kind) *Slot {
	return c.mailbox.Register(kind)
}

func (c *Client) Release(slot *Slot) {
	c.mailbox.Release(slot)
}

// AwaitResponse waits for the next inbound message of kind.
func (c *Client) AwaitResponse(ctx context.Context, kind Kind, timeout time.Duration) Response {
	return c.Wait(ctx, c.mailbox.Register(kind), timeout)
}

// Request registers a slot for kind, sends msg, then waits.
func (c *Client) Request(ctx context.Context, msg Message, kind Kind, timeout time.Duration) Response {
	slot := c.mailbox.Register(kind)
	c.Send(ctx, msg)
	return c.Wait(ctx, slot, timeout)
}

// Wait blocks until slot resolves, timeout elapses or ctx ends. The slot is
// always released when Wait returns.
func (c *Client) Wait(ctx context.Context, slot *Slot, timeout time.Duration) Response {
	defer c.mailbox.Release(slot)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-slot.Done():
		return resp
	case <-timer.C:
		slot.Resolve(Response{Outcome: OutcomeTimedOut})
	case <-ctx.Done():
		slot.Resolve(Response{Outcome: OutcomeCancelled})
	}

	return <-slot.Done()
}

// Deliver decodes raw inbound traffic. Unknown kinds are logged and dropped; a
// malformed payload resolves the pending slot of its kind as invalid. The
// decode error, if any, is returned after it has been handled.
func (c *Client) Deliver(raw []byte) error {
	msg, err := Decode(raw)
	if err != nil {
		var decodeErr *DecodeError
		switch {
		case errors.Is(err, ErrUnknownKind):
			c.logger.Warn("unknown bridge message kind", zap.Error(err))
		case errors.As(err, &decodeErr) && decodeErr.Kind != "":
			c.logger.Warn("malformed bridge message", zap.Error(err))
			c.mailbox.Reject(decodeErr.Kind)
		default:
			c.logger.Warn("undecodable bridge message", zap.Error(err))
		}
		return err
	}

	c.DeliverMessage(msg)
	return nil
}

func (c *Client) DeliverMessage(msg Message) {
	c.mu.RLock()
	observers := make([]func(Message), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.RUnlock()

	for _, fn := range observers {
		fn(msg)
	}

	if !c.mailbox.Deliver(msg) {
		c.logger.Debug("bridge message dropped", zap.String("kind", string(msg.Kind())))
	}
}

// Observe calls fn for every decoded inbound message without consuming slots.
// The returned function removes the observer.
func (c *Client) Observe(fn func(Message)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}
