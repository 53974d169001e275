package logs

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/docker/docker/pkg/stdcopy"

	"github.com/irahardianto/drydock/internal/platform/logger"
)

// DefaultBuffer is the per-subscription frame buffer size.
const DefaultBuffer = 128

// Pump demultiplexes a container's multiplexed log stream and fans frames
// out to subscribers. Each subscriber owns a bounded buffer; a slow
// subscriber loses the oldest frames rather than stalling the producer.
type Pump struct {
	src io.ReadCloser

	mu      sync.Mutex
	subs    []*Subscription
	started bool

	done chan struct{}
}

// NewPump wraps a multiplexed log stream, as returned by the daemon's
// attach-logs operation with TTY disabled.
func NewPump(src io.ReadCloser) *Pump {
	return &Pump{
		src:  src,
		done: make(chan struct{}),
	}
}

// Subscription is one consumer's membership in a Pump.
type Subscription struct {
	consumer Consumer
	ch       chan Frame
	dropped  atomic.Uint64
	delivery sync.WaitGroup
}

// Dropped reports how many frames this subscriber lost to backpressure.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Subscribe registers a consumer. Must be called before Start.
func (p *Pump) Subscribe(c Consumer) *Subscription {
	return p.SubscribeBuffered(c, DefaultBuffer)
}

// SubscribeBuffered registers a consumer with a specific buffer bound.
func (p *Pump) SubscribeBuffered(c Consumer, bound int) *Subscription {
	if bound <= 0 {
		bound = DefaultBuffer
	}
	sub := &Subscription{
		consumer: c,
		ch:       make(chan Frame, bound),
	}

	p.mu.Lock()
	p.subs = append(p.subs, sub)
	p.mu.Unlock()
	return sub
}

// Start begins consuming the source stream. It is a no-op when no consumer
// is subscribed: without an audience there is nothing to pump. Frames are
// delivered to each consumer in source order until the stream ends or the
// context is cancelled.
func (p *Pump) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	if len(p.subs) == 0 {
		close(p.done)
		return
	}

	for _, sub := range p.subs {
		sub.delivery.Add(1)
		go func(s *Subscription) {
			defer s.delivery.Done()
			for frame := range s.ch {
				s.consumer.Accept(frame)
			}
		}(sub)
	}

	go p.run(ctx)
}

func (p *Pump) run(ctx context.Context) {
	defer close(p.done)

	log := logger.FromContext(ctx)

	stdout := &dispatchWriter{pump: p, source: Stdout, ctx: ctx}
	stderr := &dispatchWriter{pump: p, source: Stderr, ctx: ctx}

	// StdCopy is single-threaded, so dispatch order equals daemon source order.
	if _, err := stdcopy.StdCopy(stdout, stderr, p.src); err != nil && ctx.Err() == nil {
		log.Debug("log stream ended", "error", err)
	}

	p.mu.Lock()
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()

	for _, sub := range subs {
		close(sub.ch)
		sub.delivery.Wait()
	}
}

func (p *Pump) dispatch(ctx context.Context, frame Frame) {
	p.mu.Lock()
	subs := p.subs
	p.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- frame:
			continue
		default:
		}
		// Buffer full: drop the oldest frame, then retry once. The producer
		// is the only sender, so the retry cannot block for long.
		select {
		case <-sub.ch:
			dropped := sub.dropped.Add(1)
			logger.FromContext(ctx).Warn("slow log consumer, dropping oldest frame",
				"dropped_total", dropped,
			)
		default:
		}
		select {
		case sub.ch <- frame:
		default:
		}
	}
}

// Done is closed once the pump has stopped and all deliveries are flushed.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

// Close stops the pump by closing the source stream and waits for all
// pending deliveries to flush.
func (p *Pump) Close() error {
	err := p.src.Close()
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if started {
		<-p.done
	}
	return err
}

type dispatchWriter struct {
	pump   *Pump
	source Source
	ctx    context.Context
}

func (w *dispatchWriter) Write(b []byte) (int, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}
	// StdCopy reuses its buffer between frames, so the payload must be copied.
	frame := Frame{Source: w.source, Bytes: append([]byte(nil), b...)}
	w.pump.dispatch(w.ctx, frame)
	return len(b), nil
}
