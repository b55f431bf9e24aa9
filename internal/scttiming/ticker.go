// Package scttiming provides the default transport.PeriodicTimer the
// Client Facade builds when ClientOptions.Timer is left nil: a plain
// time.Ticker loop, the same polling idiom the engine's domain uses
// elsewhere for deadline and lease-break waits.
package scttiming

import (
	"sync"
	"time"

	"github.com/cloudendpoints/service-control-client-go/pkg/transport"
)

// Ticker is a transport.PeriodicTimer backed by time.Ticker.
type Ticker struct{}

// New returns a Ticker. It holds no state of its own; every Start call
// gets its own goroutine and ticker.
func New() *Ticker {
	return &Ticker{}
}

type tickerHandle struct {
	stopOnce sync.Once
	stop     chan struct{}
	ticker   *time.Ticker
}

func (h *tickerHandle) Stop() {
	h.stopOnce.Do(func() {
		if h.ticker != nil {
			h.ticker.Stop()
		}
		close(h.stop)
	})
}

// Start runs callback every interval milliseconds until the returned
// handle's Stop is called. A non-positive interval starts no goroutine
// and returns a handle whose Stop is a no-op.
func (t *Ticker) Start(interval int64, callback func()) transport.TimerHandle {
	if interval <= 0 {
		return &tickerHandle{stop: make(chan struct{})}
	}

	h := &tickerHandle{
		stop:   make(chan struct{}),
		ticker: time.NewTicker(time.Duration(interval) * time.Millisecond),
	}
	go func() {
		for {
			select {
			case <-h.stop:
				return
			case <-h.ticker.C:
				callback()
			}
		}
	}()
	return h
}
