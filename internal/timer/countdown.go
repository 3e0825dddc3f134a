// Package timer drives per-session countdowns on a shared gocron scheduler.
package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Countdown runs one recurring job per key. It implements app.Scheduler.
type Countdown struct {
	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

// NewCountdown starts the underlying scheduler. Call Stop on shutdown.
func NewCountdown() *Countdown {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	s.StartAsync()
	return &Countdown{scheduler: s}
}

// Schedule runs fn every interval, starting one interval from now. An
// existing job under key is replaced.
func (c *Countdown) Schedule(key string, every time.Duration, fn func()) error {
	if every <= 0 {
		return fmt.Errorf("timer: interval must be positive, got %s", every)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.scheduler.RemoveByTag(key)
	if _, err := c.scheduler.Every(every).Tag(key).WaitForSchedule().Do(fn); err != nil {
		return fmt.Errorf("timer: schedule %s: %w", key, err)
	}
	return nil
}

// Cancel removes the job under key, if any.
func (c *Countdown) Cancel(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.scheduler.RemoveByTag(key)
}

// Active reports how many countdowns are scheduled.
func (c *Countdown) Active() int {
	return c.scheduler.Len()
}

func (c *Countdown) Stop() {
	c.scheduler.Stop()
}
