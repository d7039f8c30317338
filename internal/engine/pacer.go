package engine

import (
	"sync"
	"time"
)

// Pacer decides when the next step runs. Simulation.Run steps once per
// value received from Ticks and returns when the channel is closed.
type Pacer interface {
	Ticks() <-chan struct{}
	Stop()
}

// IntervalPacer ticks at a fixed wall-clock interval. Ticks that arrive
// while a step is still running are coalesced.
type IntervalPacer struct {
	ticker *time.Ticker
	ch     chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewIntervalPacer starts a pacer ticking every d.
func NewIntervalPacer(d time.Duration) *IntervalPacer {
	p := &IntervalPacer{
		ticker: time.NewTicker(d),
		ch:     make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *IntervalPacer) loop() {
	defer close(p.ch)
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			select {
			case p.ch <- struct{}{}:
			default:
			}
		}
	}
}

// Ticks returns the tick channel.
func (p *IntervalPacer) Ticks() <-chan struct{} {
	return p.ch
}

// Stop stops the ticker and closes the tick channel.
func (p *IntervalPacer) Stop() {
	p.once.Do(func() {
		p.ticker.Stop()
		close(p.done)
	})
}

// TriggerPacer steps on external demand, e.g. a button in a display layer
// or a test. The channel has a buffer of one, so triggers sent while a step
// runs coalesce into one further step.
type TriggerPacer struct {
	mu     sync.Mutex
	ch     chan struct{}
	closed bool
}

// NewTriggerPacer creates an idle trigger pacer.
func NewTriggerPacer() *TriggerPacer {
	return &TriggerPacer{ch: make(chan struct{}, 1)}
}

// Trigger requests one step. Returns false if the pacer is stopped.
func (p *TriggerPacer) Trigger() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	select {
	case p.ch <- struct{}{}:
	default:
	}
	return true
}

// Ticks returns the trigger channel.
func (p *TriggerPacer) Ticks() <-chan struct{} {
	return p.ch
}

// Stop closes the trigger channel.
func (p *TriggerPacer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.ch)
}
