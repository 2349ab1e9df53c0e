package room

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ServiceHandlers are the application hooks a Service invokes while
// running a listen loop or draining the transmit queue. Both are keyed by
// Codec rather than the lower-level Stream: a handler needs Codec to call
// Service.Enqueue for a reply, and Codec already exposes StreamID and
// IsAlive for anything else a handler might want from the raw stream.
type ServiceHandlers struct {
	// OnReceive is invoked for every successfully decoded message, after
	// the ingress rate limiter has accounted for its content length. It
	// must not block for long: it runs inline in the listen loop.
	OnReceive func(codec Codec, msg Message)

	// OnSend transmits msg over codec. A nil OnSend defaults to
	// codec.WriteMessage. Override to transform a message before it goes
	// out, e.g. for routing.
	OnSend func(codec Codec, msg Message) error
}

// Service composes one or more live Codecs with application logic: one
// listen loop per attached stream, plus a single shared transmit loop
// that drains a process-wide FIFO queue.
type Service interface {
	// Start spawns the shared transmit loop. It must be called before
	// Listen or Enqueue will accept work.
	Start() error

	// Stop clears the running flag. The transmit loop and any active
	// Listen calls observe this on their next iteration and return; Stop
	// itself does not block waiting for them.
	Stop() error

	// Dispose clears running, sets disposed, cancels the transmit loop's
	// context, and joins its goroutine. Dispose is safe to call more
	// than once.
	Dispose() error

	// Listen runs the per-stream listen loop for codec until ctx is
	// canceled, codec stops being alive, the service is stopped, or
	// codec.ReadMessage returns an error. It blocks until then.
	Listen(ctx context.Context, codec Codec) error

	// Enqueue appends msg, addressed to codec, onto the shared transmit
	// queue in FIFO order.
	Enqueue(codec Codec, msg Message) error
}

type service struct {
	opts     ServiceOptions
	handlers ServiceHandlers
	queue    pendingQueue
	egress   *rate.Limiter

	running  atomic.Bool
	disposed atomic.Bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewService constructs a Service from opts (zero-valued fields take
// DefaultServiceOptions' defaults) and handlers.
func NewService(opts ServiceOptions, handlers ServiceHandlers) Service {
	opts = opts.withDefaults()

	s := &service{opts: opts, handlers: handlers}
	if opts.MaxTransmitRate > 0 {
		burst := int(opts.MaxTransmitRate)
		if burst < 1 {
			burst = 1
		}
		s.egress = rate.NewLimiter(rate.Limit(opts.MaxTransmitRate), burst)
	}
	return s
}

func (s *service) Start() error {
	if s.disposed.Load() {
		return ErrServiceDisposed
	}
	if !s.running.CompareAndSwap(false, true) {
		return newUseError("Start", "already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	group, groupCtx := errgroup.WithContext(ctx)
	s.group = group
	s.group.Go(func() error {
		s.transmitLoop(groupCtx)
		return nil
	})
	return nil
}

func (s *service) Stop() error {
	if s.disposed.Load() {
		return ErrServiceDisposed
	}
	s.running.Store(false)
	return nil
}

func (s *service) Dispose() error {
	if s.disposed.Swap(true) {
		return nil
	}
	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		s.group.Wait()
	}
	return nil
}

// Listen implements Service: a per-stream soft ingress limiter gated on
// content bytes, then the OnReceive handler, then a content-disposal
// check against the shared transmit queue.
func (s *service) Listen(ctx context.Context, codec Codec) error {
	if s.disposed.Load() {
		return ErrServiceDisposed
	}
	if !s.running.Load() {
		return ErrServiceNotRunning
	}

	limiter := newIngressLimiter(s.opts.MaxStreamRate)

	for {
		if !s.running.Load() || !codec.IsAlive() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := codec.ReadMessage()
		if err != nil {
			s.opts.Logger.Error("room: listen loop terminated", "stream_id", codec.StreamID(), "error", err)
			return err
		}

		var contentLen int64
		if msg.Content != nil {
			contentLen = msg.Content.Len()
		}
		if err := limiter.observe(ctx, contentLen); err != nil {
			return err
		}

		if s.handlers.OnReceive != nil {
			s.handlers.OnReceive(codec, msg)
		}

		if msg.Content != nil && !s.queue.references(msg.Content) {
			msg.Content.Close()
		}
	}
}

func (s *service) Enqueue(codec Codec, msg Message) error {
	if s.disposed.Load() {
		return ErrServiceDisposed
	}
	if !s.running.Load() {
		return ErrServiceNotRunning
	}
	s.queue.pushBack(messageContext{codec: codec, message: msg})
	return nil
}

func (s *service) onSend(codec Codec, msg Message) error {
	if s.handlers.OnSend != nil {
		return s.handlers.OnSend(codec, msg)
	}
	return codec.WriteMessage(msg)
}

// transmitLoop drains the shared FIFO queue, sleeping between empty
// polls, logging and continuing past any one send failure rather than
// letting it end the loop.
func (s *service) transmitLoop(ctx context.Context) {
	idle := time.NewTimer(s.opts.TransmitIdleInterval)
	defer idle.Stop()

	for s.running.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, ok := s.queue.popFront()
		if !ok {
			idle.Reset(s.opts.TransmitIdleInterval)
			select {
			case <-idle.C:
			case <-ctx.Done():
				return
			}
			continue
		}

		if s.egress != nil {
			if err := s.egress.Wait(ctx); err != nil {
				return
			}
		}

		if err := s.onSend(item.codec, item.message); err != nil {
			s.opts.Logger.Error("room: transmit failed", "stream_id", item.codec.StreamID(), "error", err)
		}

		if item.message.Content != nil && !s.queue.references(item.message.Content) {
			item.message.Content.Close()
		}
	}
}
