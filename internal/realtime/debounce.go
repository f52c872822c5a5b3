package realtime

import (
	"sync"
	"time"

	"github.com/amoylab/hublink/internal/common/config"
	"github.com/amoylab/hublink/internal/common/dto"
	"github.com/amoylab/hublink/pkg/clock"
)

// TypingNotifier is the emitting side a TypingDebouncer drives. *Manager
// implements it.
type TypingNotifier interface {
	EmitTyping(ev dto.TypingToggle)
	EmitTypingStart(sig dto.TypingSignal)
	EmitTypingStop(sig dto.TypingSignal)
}

// TypingDebouncer turns keystrokes in one compose box into typing
// transitions. The first keystroke of non-empty input starts typing and
// every keystroke pushes the stop timer back.
type TypingDebouncer struct {
	notifier TypingNotifier
	clock    clock.Clock
	timeout  time.Duration
	shape    string
	target   dto.TypingToggle

	mu     sync.Mutex
	typing bool
	timer  clock.Timer
	gen    uint64
}

// DebounceOption configures a TypingDebouncer.
type DebounceOption func(*TypingDebouncer)

// WithClock replaces the wall clock, e.g. with clock.Fake in tests.
func WithClock(c clock.Clock) DebounceOption {
	return func(d *TypingDebouncer) { d.clock = c }
}

// NewTypingDebouncer creates a debouncer for the conversation and user in
// target. IsTyping in target is ignored.
func NewTypingDebouncer(notifier TypingNotifier, target dto.TypingToggle, cfg config.TypingConfig, opts ...DebounceOption) *TypingDebouncer {
	d := &TypingDebouncer{
		notifier: notifier,
		clock:    clock.Real(),
		timeout:  cfg.StopTimeout,
		shape:    cfg.Shape,
		target:   target,
	}
	if d.timeout <= 0 {
		d.timeout = 2 * time.Second
	}
	if d.shape == "" {
		d.shape = config.TypingShapeToggle
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Keystroke reports the compose box content after a key press. Empty
// input stops immediately.
func (d *TypingDebouncer) Keystroke(input string) {
	if input == "" {
		d.Stop()
		return
	}

	d.mu.Lock()
	start := !d.typing
	d.typing = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.timeout, func() { d.expire(gen) })
	d.mu.Unlock()

	if start {
		d.notify(true)
	}
}

// Sent stops typing right before a message goes out.
func (d *TypingDebouncer) Sent() {
	d.Stop()
}

// Stop ends the typing state now if it is active.
func (d *TypingDebouncer) Stop() {
	d.mu.Lock()
	if !d.typing {
		d.mu.Unlock()
		return
	}
	d.typing = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.notify(false)
}

// Typing reports whether a start was sent without a matching stop.
func (d *TypingDebouncer) Typing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typing
}

func (d *TypingDebouncer) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.typing {
		d.mu.Unlock()
		return
	}
	d.typing = false
	d.timer = nil
	d.mu.Unlock()

	d.notify(false)
}

func (d *TypingDebouncer) notify(typing bool) {
	if d.shape == config.TypingShapeStartStop {
		sig := dto.TypingSignal{
			ConversationID: d.target.ConversationID,
			UserID:         d.target.UserID,
			UserEmail:      d.target.UserEmail,
			UserName:       d.target.UserName,
		}
		if typing {
			d.notifier.EmitTypingStart(sig)
		} else {
			d.notifier.EmitTypingStop(sig)
		}
		return
	}
	ev := d.target
	ev.IsTyping = typing
	d.notifier.EmitTyping(ev)
}
