package chat

import (
	"context"
	"log/slog"
	"sync"
)

// mailbox is the bounded delivery queue of one registered peer. The Hub
// holds it for sending and exactly one deliveryWorker receives from it.
type mailbox struct {
	addr  string
	queue chan Message
	done  chan struct{}
	once  sync.Once
}

func newMailbox(addr string, capacity int) *mailbox {
	return &mailbox{
		addr:  addr,
		queue: make(chan Message, capacity),
		done:  make(chan struct{}),
	}
}

// send enqueues msg, waiting for room when the queue is full. It fails with
// ErrDetached once the mailbox is detached and with the context error when
// ctx ends first.
func (m *mailbox) send(ctx context.Context, msg Message) error {
	select {
	case <-m.done:
		return ErrDetached
	default:
	}

	select {
	case m.queue <- msg:
		return nil
	case <-m.done:
		return ErrDetached
	case <-ctx.Done():
		return ctx.Err()
	}
}

// detach marks the mailbox as closed for sending. Safe to call repeatedly.
func (m *mailbox) detach() {
	m.once.Do(func() { close(m.done) })
}

// deliveryWorker drains one mailbox into the peer's outbound sink.
//
// A worker never touches the Hub. When a write fails it detaches its own
// mailbox and exits; the entry stays registered until the next broadcast
// send against it fails.
type deliveryWorker struct {
	box  *mailbox
	sink LineSink
	log  *slog.Logger
}

func newDeliveryWorker(box *mailbox, sink LineSink, log *slog.Logger) *deliveryWorker {
	return &deliveryWorker{box: box, sink: sink, log: log}
}

func (w *deliveryWorker) run() {
	defer w.box.detach()

	for {
		select {
		case msg := <-w.box.queue:
			if !w.deliver(msg) {
				return
			}
		case <-w.box.done:
			w.drain()
			return
		}
	}
}

// drain writes whatever is still queued after the mailbox was detached.
func (w *deliveryWorker) drain() {
	for {
		select {
		case msg := <-w.box.queue:
			if !w.deliver(msg) {
				return
			}
		default:
			return
		}
	}
}

func (w *deliveryWorker) deliver(msg Message) bool {
	if err := w.sink.WriteLine(msg.Render()); err != nil {
		w.log.Warn("Failed to send message", "addr", w.box.addr, "kind", msg.Kind(), "error", err)
		return false
	}
	return true
}
