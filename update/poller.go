package update

import (
	"context"
	"errors"
	"time"

	"github.com/tnicklin/update_gate/clock"
	"github.com/tnicklin/update_gate/logger"
)

var _ Poller = (*DefaultPoller)(nil)

// Evaluator is satisfied by *Gate.
type Evaluator interface {
	Evaluate(ctx context.Context, now time.Time) Decision
}

// DefaultPoller evaluates the gate once on start and then on every tick,
// standing in for the app's launch and foreground hooks. The gate decides
// whether a tick turns into a network check.
type DefaultPoller struct {
	gate     Evaluator
	clock    clock.Clock
	interval time.Duration
	logger   logger.Logger
	onCheck  func(Decision)
	stop     chan struct{}
	done     chan struct{}
}

// PollerParams holds configuration for creating a new Poller.
type PollerParams struct {
	Config Config
	Gate   Evaluator
	Clock  clock.Clock
	Logger logger.Logger
	// OnCheck, if set, receives every decision where a check ran.
	OnCheck func(Decision)
}

func NewPoller(p PollerParams) *DefaultPoller {
	p.Config.Defaults()

	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &DefaultPoller{
		gate:     p.Gate,
		clock:    clk,
		interval: p.Config.PollInterval,
		logger:   log,
		onCheck:  p.OnCheck,
	}
}

// Start begins the polling loop.
func (p *DefaultPoller) Start(ctx context.Context) error {
	if p.gate == nil {
		return errors.New("update: gate is required")
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go p.run(ctx)
	return nil
}

// Stop stops the polling loop and waits for an in-flight evaluation.
func (p *DefaultPoller) Stop() {
	if p.stop != nil {
		close(p.stop)
		<-p.done
		p.stop = nil
	}
}

func (p *DefaultPoller) run(ctx context.Context) {
	defer close(p.done)

	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *DefaultPoller) pollOnce(ctx context.Context) {
	decision := p.gate.Evaluate(ctx, p.clock.Now())
	if !decision.Checked {
		return
	}

	p.logger.InfoW("update gate evaluated",
		"classification", decision.Classification.String(),
		"should_notify", decision.ShouldNotify,
	)
	if p.onCheck != nil {
		p.onCheck(decision)
	}
}
