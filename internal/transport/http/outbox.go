package http

import (
	"sync/atomic"

	"github.com/hmelo/skyarena-server/internal/proto"
)

// outboxSize bounds the per-connection outbound queue. A client that cannot
// keep up loses broadcasts rather than stalling the senders.
const outboxSize = 64

// wsOutbox is the per-connection outbound queue drained by the write loop.
// Enqueue never blocks and silently drops once the connection is retired, so
// registries can address recently-disconnected sessions without checks.
type wsOutbox struct {
	ch     chan proto.Outbound
	closed atomic.Bool
}

func newWSOutbox() *wsOutbox {
	return &wsOutbox{ch: make(chan proto.Outbound, outboxSize)}
}

// Enqueue implements core.Outbox.
func (o *wsOutbox) Enqueue(kind string, payload any) {
	if o.closed.Load() {
		return
	}
	select {
	case o.ch <- proto.Outbound{Type: kind, Data: payload}:
	default:
		// Drop if slow consumer.
	}
}

// retire stops accepting messages. The channel itself is never closed; the
// write loop exits on context cancellation instead, which keeps a concurrent
// Enqueue from racing a close.
func (o *wsOutbox) retire() {
	o.closed.Store(true)
}
