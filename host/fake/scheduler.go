package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultFrameInterval is the simulated frame duration.
const DefaultFrameInterval = 16 * time.Millisecond

// Ticker is advanced once per simulated frame.
type Ticker interface {
	Tick(frame int)
}

// Scheduler runs the simulated frame loop on a clock. With a *clock.Mock every frame moves
// the mock forward by the frame interval, so simulated time passes without waiting.
type Scheduler struct {
	clk      clock.Clock
	interval time.Duration

	mu      sync.Mutex
	frame   int
	tickers []Ticker
}

// NewScheduler returns a scheduler ticking the given tickers in order.
func NewScheduler(clk clock.Clock, interval time.Duration, tickers ...Ticker) *Scheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Scheduler{clk: clk, interval: interval, tickers: tickers}
}

// AddTicker registers another ticker.
func (s *Scheduler) AddTicker(t Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers = append(s.tickers, t)
}

// Frame returns the number of frames run so far.
func (s *Scheduler) Frame() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// NextUpdate runs one frame.
func (s *Scheduler) NextUpdate(ctx context.Context) error {
	return s.step(ctx, s.interval)
}

// Sleep lets d pass, running frames all along.
func (s *Scheduler) Sleep(ctx context.Context, d time.Duration) error {
	for d > 0 {
		step := s.interval
		if d < step {
			step = d
		}
		if err := s.step(ctx, step); err != nil {
			return err
		}
		d -= step
	}
	return ctx.Err()
}

func (s *Scheduler) step(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mock, ok := s.clk.(*clock.Mock); ok {
		mock.Add(d)
	} else {
		timer := s.clk.Timer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	s.frame++
	frame := s.frame
	tickers := append([]Ticker(nil), s.tickers...)
	s.mu.Unlock()
	for _, t := range tickers {
		t.Tick(frame)
	}
	return nil
}
