package quality

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Poller calls a function on a fixed interval until stopped. Start and Stop
// are idempotent; a stopped poller can be started again.
type Poller struct {
	clock    clock.Clock
	interval time.Duration

	mu     sync.Mutex
	ticker *clock.Ticker
	stop   chan struct{}
}

func NewPoller(clk clock.Clock, interval time.Duration) *Poller {
	if clk == nil {
		clk = clock.New()
	}
	return &Poller{clock: clk, interval: interval}
}

// Start begins calling tick every interval. tick runs on the poller's goroutine.
func (p *Poller) Start(tick func(now time.Time)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil || p.interval <= 0 {
		return false
	}

	ticker := p.clock.Ticker(p.interval)
	stop := make(chan struct{})
	p.ticker = ticker
	p.stop = stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				tick(now)
			}
		}
	}()
	return true
}

func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	close(p.stop)
	p.ticker = nil
	p.stop = nil
}

func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticker != nil
}
