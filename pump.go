package usbserial

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// PumpState is the lifecycle state of a read or write pump.
type PumpState int32

const (
	PumpStopped PumpState = iota
	PumpRunning
)

func (s PumpState) String() string {
	switch s {
	case PumpStopped:
		return "stopped"
	case PumpRunning:
		return "running"
	default:
		return "unknown"
	}
}

// pump runs one loop function in its own goroutine. start and stop are
// idempotent. A waiting stop returns only after the loop has exited; a
// non-waiting stop, used from the loop's own goroutine, leaves the pump
// draining until the loop returns.
type pump struct {
	name Component
	loop func(ctx context.Context)

	mu       sync.Mutex // serializes start/stop
	state    atomic.Int32
	active   atomic.Int32 // live loop goroutines, 0 or 1
	draining atomic.Bool  // cancelled, loop not yet returned
	cancel   context.CancelFunc
	done     chan struct{}
}

func newPump(name Component, loop func(ctx context.Context)) *pump {
	return &pump{name: name, loop: loop}
}

func (p *pump) State() PumpState {
	return PumpState(p.state.Load())
}

// start launches the loop. It reports false if the pump was already running.
// A draining pump is waited for first, unless the caller is the loop itself,
// which gets ErrPumpBusy.
func (p *pump) start(parent context.Context, inLoop bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.draining.Load() {
		if inLoop {
			return false, ErrPumpBusy
		}
		<-p.done
		p.finish()
	}
	if p.State() == PumpRunning {
		return false, nil
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.active.Inc()
	p.state.Store(int32(PumpRunning))

	go func() {
		defer close(done)
		defer p.active.Dec()
		defer func() {
			// also covers a loop that returns on its own
			p.draining.Store(false)
			p.state.Store(int32(PumpStopped))
		}()
		p.loop(ctx)
	}()
	return true, nil
}

// stop cancels the loop. With wait it returns after the loop has exited;
// without, the pump keeps reporting running until the loop returns. It
// reports false if the pump was not running or already draining. A loop
// that returned on its own leaves the pump stopped.
func (p *pump) stop(wait bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != PumpRunning {
		return false
	}
	if !wait {
		if !p.draining.CompareAndSwap(false, true) {
			return false
		}
		p.cancel()
		select {
		case <-p.done:
			// the loop had already returned on its own
			p.finish()
		default:
		}
		return true
	}

	draining := p.draining.Load()
	p.cancel()
	<-p.done
	p.finish()
	return !draining
}

// finish records a stopped pump once its loop has exited. Called with mu held.
func (p *pump) finish() {
	p.draining.Store(false)
	p.cancel = nil
	p.done = nil
	p.state.Store(int32(PumpStopped))
}
