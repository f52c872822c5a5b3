package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amoylab/hublink/internal/common/cnst"
)

// connRun is one Connect..Disconnect cycle of a connection loop.
type connRun[C any] struct {
	cancel context.CancelFunc
	conn   C
	live   bool
}

// connLoop drives a network binding's connection: open, serve until the
// connection ends, then reconnect with a fixed delay for a bounded number
// of attempts. At most one run is active. A cancelled run exits without
// raising events; the binding's Disconnect reports those itself.
type connLoop[C any] struct {
	logger   *zap.Logger
	events   *emitter
	attempts int
	delay    time.Duration

	open  func(ctx context.Context) (C, error)
	serve func(ctx context.Context, conn C) cnst.DisconnectReason
	shut  func(conn C)

	mu     sync.Mutex
	run    *connRun[C]
	closed bool
}

// start launches a run unless one is active or the loop is closed.
func (l *connLoop[C]) start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return cnst.ErrBindingClosed
	}
	if l.run != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &connRun[C]{cancel: cancel}
	l.run = r
	go l.loop(runCtx, r)
	return nil
}

func (l *connLoop[C]) loop(ctx context.Context, r *connRun[C]) {
	defer l.release(r)

	failures := 0
	for {
		conn, err := l.open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("failed to connect", zap.Error(err))
			l.events.dispatch(Event{Name: cnst.EventConnectError, Err: err})
			failures++
			if !l.wait(ctx, failures) {
				l.giveUp(ctx, r, err)
				return
			}
			continue
		}
		if !l.attach(r, conn) {
			l.shut(conn)
			return
		}

		failures = 0
		l.logger.Info("connected")
		l.events.dispatch(Event{Name: cnst.EventConnect})

		reason := l.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		l.detach(r)
		l.shut(conn)
		l.logger.Info("disconnected", zap.Stringer("reason", reason))

		if !reason.Reconnectable() {
			// free the slot first so a Connect from a disconnect handler starts a new run
			l.release(r)
			l.events.dispatch(Event{Name: cnst.EventDisconnect, Reason: reason})
			return
		}
		l.events.dispatch(Event{Name: cnst.EventDisconnect, Reason: reason})
		failures++
		if !l.wait(ctx, failures) {
			l.giveUp(ctx, r, fmt.Errorf("connection lost: %s", reason))
			return
		}
	}
}

// wait sleeps the reconnect delay; false means attempts are exhausted or
// the run was cancelled.
func (l *connLoop[C]) wait(ctx context.Context, attempt int) bool {
	if attempt > l.attempts {
		return false
	}
	l.logger.Debug("reconnecting",
		zap.Int("attempt", attempt),
		zap.Duration("delay", l.delay))
	t := time.NewTimer(l.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return ctx.Err() == nil
	}
}

func (l *connLoop[C]) giveUp(ctx context.Context, r *connRun[C], err error) {
	if ctx.Err() != nil {
		return
	}
	l.release(r)
	l.logger.Error("reconnection failed",
		zap.Int("attempts", l.attempts),
		zap.Error(err))
	l.events.dispatch(Event{Name: cnst.EventReconnectFailed, Err: err})
}

// attach records conn as the live connection of r. It fails when r was
// stopped in the meantime.
func (l *connLoop[C]) attach(r *connRun[C], conn C) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.run != r {
		return false
	}
	r.conn, r.live = conn, true
	return true
}

func (l *connLoop[C]) detach(r *connRun[C]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.run == r {
		var zero C
		r.conn, r.live = zero, false
	}
}

// release frees the run slot so a later start launches a fresh run.
func (l *connLoop[C]) release(r *connRun[C]) {
	l.mu.Lock()
	if l.run == r {
		l.run = nil
	}
	l.mu.Unlock()
	r.cancel()
}

// stop cancels the active run and hands back its live connection, if any.
func (l *connLoop[C]) stop() (conn C, live bool) {
	l.mu.Lock()
	r := l.run
	l.run = nil
	if r != nil {
		var zero C
		conn, live = r.conn, r.live
		r.conn, r.live = zero, false
	}
	l.mu.Unlock()
	if r != nil {
		r.cancel()
	}
	return conn, live
}

// current returns the live connection.
func (l *connLoop[C]) current() (conn C, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.run == nil || !l.run.live {
		return conn, false
	}
	return l.run.conn, true
}

func (l *connLoop[C]) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *connLoop[C]) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
