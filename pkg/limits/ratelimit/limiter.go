package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Limiter enforces an ordered set of limits on a dedicated goroutine.
//
// Callers on any goroutine submit hits and asks through a mailbox; the
// limiter goroutine handles them one at a time in arrival order. Each
// message settles every bucket, is dispatched, and is answered before the
// next message is read.
//
// A caller that times out simply stops waiting. Its request may still be
// processed; rejected hits never change state, so no rollback is needed.
type Limiter struct {
	name     string
	clock    Clock
	logger   *slog.Logger
	observer Observer

	mailbox  chan request
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type requestKind int

const (
	kindHit requestKind = iota
	kindAsk
	kindStatus
)

type request struct {
	kind  requestKind
	n     int64
	reply chan response
}

type response struct {
	allowed bool
	limit   string
	wait    int64
	status  []Status
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source. Defaults to a MonotonicClock.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithName names the limiter in logs and decisions.
func WithName(name string) Option {
	return func(l *Limiter) { l.name = name }
}

// WithObserver registers a decision observer.
func WithObserver(o Observer) Option {
	return func(l *Limiter) { l.observer = o }
}

// New validates limits and starts a limiter enforcing them in order.
//
// If any limit fails IsValid, New returns a *StartError matching
// ErrInvalidLimit and no goroutine is started. An empty limit list yields a
// limiter that admits every hit.
func New(limits []Limit, opts ...Option) (*Limiter, error) {
	for i, limit := range limits {
		if !IsValid(limit) {
			return nil, &StartError{
				Reason: ErrInvalidLimit.Error(),
				Index:  i,
				Limit:  limit.description,
			}
		}
	}

	l := &Limiter{
		mailbox: make(chan request),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.clock == nil {
		l.clock = NewMonotonicClock()
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.logger = l.logger.With("component", "ratelimit.limiter", "limiter", l.name)

	st := newState(limits, l.clock.Now())
	go l.run(st)

	l.logger.Info("rate limiter started", "limits", len(limits))
	return l, nil
}

// Name returns the name the limiter was started with.
func (l *Limiter) Name() string { return l.name }

// run is the limiter goroutine. It owns st exclusively.
func (l *Limiter) run(st *state) {
	defer close(l.done)

	for {
		select {
		case <-l.quit:
			return
		case req := <-l.mailbox:
			now := l.clock.Now()

			var resp response
			switch req.kind {
			case kindHit:
				resp.limit, resp.allowed = st.hit(now)
			case kindAsk:
				resp.wait = st.ask(now, req.n)
				resp.allowed = resp.wait == 0
			case kindStatus:
				resp.status = st.status(now)
			}

			req.reply <- resp
			l.observe(req, resp)
		}
	}
}

func (l *Limiter) observe(req request, resp response) {
	if req.kind == kindHit && !resp.allowed {
		l.logger.Debug("request rejected", "limit", resp.limit)
	}
	if l.observer == nil || req.kind == kindStatus {
		return
	}

	d := Decision{
		Limiter: l.name,
		Allowed: resp.allowed,
		At:      time.Now(),
	}
	switch req.kind {
	case kindHit:
		d.Op = OpHit
		d.Limit = resp.limit
	case kindAsk:
		d.Op = OpAsk
		d.N = req.n
		d.Wait = time.Duration(resp.wait)
	}
	l.observer.Observe(d)
}

// call submits req and waits for the reply, the caller's context, or Stop.
func (l *Limiter) call(ctx context.Context, op Op, req request) (response, error) {
	req.reply = make(chan response, 1)

	select {
	case l.mailbox <- req:
	case <-l.done:
		return response{}, ErrStopped
	case <-ctx.Done():
		return response{}, &TimeoutError{Op: op, Err: ctx.Err()}
	}

	// An accepted request is always answered before the goroutine exits.
	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return response{}, &TimeoutError{Op: op, Err: ctx.Err()}
	}
}

// Hit tries to admit one request against every limit.
//
// It returns nil when admitted, a *LimitedError naming the first exhausted
// limit when rejected, a *TimeoutError when ctx ends first, and ErrStopped
// after Stop.
func (l *Limiter) Hit(ctx context.Context) error {
	resp, err := l.call(ctx, OpHit, request{kind: kindHit})
	if err != nil {
		return err
	}
	if !resp.allowed {
		return &LimitedError{Description: resp.limit}
	}
	return nil
}

// Ask projects how long to wait before n more requests could be admitted,
// assuming no other traffic. Zero means they fit now. Ask never changes
// limiter state.
func (l *Limiter) Ask(ctx context.Context, n int64) (time.Duration, error) {
	resp, err := l.call(ctx, OpAsk, request{kind: kindAsk, n: n})
	if err != nil {
		return 0, err
	}
	return time.Duration(resp.wait), nil
}

// Status returns a settled copy of every limit in configured order.
func (l *Limiter) Status(ctx context.Context) ([]Status, error) {
	resp, err := l.call(ctx, OpStatus, request{kind: kindStatus})
	if err != nil {
		return nil, err
	}
	return resp.status, nil
}

// Stop terminates the limiter goroutine and waits for it to exit.
// It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
		<-l.done
		l.logger.Info("rate limiter stopped")
	})
}

// Done is closed once the limiter goroutine has exited.
func (l *Limiter) Done() <-chan struct{} {
	return l.done
}
