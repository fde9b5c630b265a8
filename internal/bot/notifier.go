package bot

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	kit "fenixbot/internal/transport"
	logx "fenixbot/pkg/logx"
)

type outgoing struct {
	to   kit.ChatTarget
	text string
}

// Notifier sends messages through the adapter from a bounded queue, paced
// by a token bucket so bursts of changes stay under the platform limits.
type Notifier struct {
	adapter kit.Adapter
	log     logx.Logger
	limiter *rate.Limiter
	queue   chan outgoing

	dropped atomic.Uint64
	mu      sync.Mutex
	closed  bool
}

func NewNotifier(adapter kit.Adapter, perSec int, queueSize int, log logx.Logger) *Notifier {
	if perSec <= 0 {
		perSec = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{
		adapter: adapter,
		log:     log.With(logx.String("comp", "bot.notifier")),
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
		queue:   make(chan outgoing, queueSize),
	}
}

// SetRate changes the send rate without dropping queued messages.
func (n *Notifier) SetRate(perSec int) {
	if perSec <= 0 {
		perSec = 1
	}
	n.limiter.SetLimit(rate.Limit(perSec))
	n.limiter.SetBurst(perSec)
}

// Enqueue queues text for delivery. A full queue drops the message.
func (n *Notifier) Enqueue(to kit.ChatTarget, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return false
	}
	select {
	case n.queue <- outgoing{to: to, text: text}:
		return true
	default:
		if d := n.dropped.Add(1); d == 1 || d%50 == 0 {
			n.log.Warn("notification dropped (queue full)", logx.Int64("dropped_total", int64(d)), logx.Int("queue_cap", cap(n.queue)))
		}
		return false
	}
}

func (n *Notifier) Dropped() uint64 { return n.dropped.Load() }

// Run delivers queued messages until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-n.queue:
			if err := n.limiter.Wait(ctx); err != nil {
				return
			}
			if _, err := n.adapter.SendText(ctx, m.to, m.text, &kit.SendOptions{ParseMode: kit.ParseHTML, DisablePreview: true}); err != nil {
				n.log.Warn("send failed", logx.Int64("chat", m.to.ChatID), logx.Err(err))
			}
		}
	}
}

// Close stops accepting messages.
func (n *Notifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}
