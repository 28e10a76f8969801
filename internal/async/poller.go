// Package async drives the pipeline in the background.
package async

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/pipeline"
)

// Cycle processes at most one document.
type Cycle interface {
	ProcessNext(ctx context.Context) pipeline.Outcome
}

// Poller runs cycles one at a time: on every tick and on every wake signal.
// A cycle that found a document is followed immediately by another so a
// backlog drains without waiting for the next tick.
type Poller struct {
	cycle    Cycle
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	wake     <-chan struct{}
	onDone   func(pipeline.Outcome)
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithWake adds an extra trigger, typically the inbox watcher.
func WithWake(ch <-chan struct{}) Option {
	return func(p *Poller) { p.wake = ch }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCycleTimeout bounds a single cycle.
func WithCycleTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithOutcomeHook is called after every non-idle cycle.
func WithOutcomeHook(fn func(pipeline.Outcome)) Option {
	return func(p *Poller) { p.onDone = fn }
}

func NewPoller(cycle Cycle, opts ...Option) *Poller {
	p := &Poller{
		cycle:    cycle,
		logger:   slog.Default(),
		interval: time.Minute,
		timeout:  5 * time.Minute,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run blocks until ctx is done. The first cycle runs immediately.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller.started", "interval", p.interval.String(), "watch", p.wake != nil)
	defer p.logger.Info("poller.stopped")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.drain(ctx)
		case <-p.wake:
			p.logger.Debug("poller.wake")
			p.drain(ctx)
		}
	}
}

func (p *Poller) drain(ctx context.Context) {
	for ctx.Err() == nil {
		if out := p.runOnce(ctx); out.Status == constants.OutcomeIdle {
			return
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) pipeline.Outcome {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out := p.cycle.ProcessNext(cctx)
	if out.Status != constants.OutcomeIdle {
		p.logger.Info("poller.cycle", "file_id", out.FileID, "status", out.Status, "reason", out.Reason)
		if p.onDone != nil {
			p.onDone(out)
		}
	}
	return out
}
