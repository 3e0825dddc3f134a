package app

import (
	"log/slog"
	"time"
)

// Option wires optional collaborators into a service.
type Option func(*deps)

type deps struct {
	publisher Publisher
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
	scheduler Scheduler
	admins    map[string]struct{}
}

func newDeps(opts []Option) deps {
	d := deps{
		publisher: nopPublisher{},
		metrics:   nopMetrics{},
		logger:    slog.Default(),
		now:       time.Now,
		admins:    map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func WithPublisher(p Publisher) Option {
	return func(d *deps) {
		if p != nil {
			d.publisher = p
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(d *deps) {
		if m != nil {
			d.metrics = m
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *deps) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithNow overrides the clock used for result and moderation timestamps.
func WithNow(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// WithScheduler enables the per-session countdown.
func WithScheduler(s Scheduler) Option {
	return func(d *deps) { d.scheduler = s }
}

// WithAdmins grants moderation rights to userIDs regardless of their profile flag.
func WithAdmins(userIDs ...string) Option {
	return func(d *deps) {
		for _, id := range userIDs {
			d.admins[id] = struct{}{}
		}
	}
}
