package update

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tnicklin/update_gate/logger"
	"github.com/tnicklin/update_gate/notify"
	"github.com/tnicklin/update_gate/store"
	"github.com/tnicklin/update_gate/timeutil"
	"github.com/tnicklin/update_gate/version"
)

// Gate bounds how often the checker runs and hands non-trivial results to
// the notifier. Evaluate calls on one Gate are serialized.
type Gate struct {
	mu sync.Mutex

	checker            UpdateChecker
	state              StateStore
	history            HistoryStore
	notifier           notify.Notifier
	interval           time.Duration
	skipStampOnFailure bool
	logger             logger.Logger
}

// GateParams holds configuration for creating a new Gate.
type GateParams struct {
	Config   Config
	Checker  UpdateChecker
	State    StateStore
	History  HistoryStore
	Notifier notify.Notifier
	Logger   logger.Logger
}

func NewGate(p GateParams) (*Gate, error) {
	if p.Checker == nil {
		return nil, errors.New("update: checker is required")
	}
	if p.State == nil {
		return nil, errors.New("update: state store is required")
	}
	p.Config.Defaults()

	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	notifier := p.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Gate{
		checker:            p.Checker,
		state:              p.State,
		history:            p.History,
		notifier:           notifier,
		interval:           p.Config.RecheckInterval,
		skipStampOnFailure: p.Config.SkipStampOnFailure,
		logger:             log,
	}, nil
}

// Evaluate runs a check if one is due as of now. A closed gate returns
// immediately without touching the network or the stored timestamp.
func (g *Gate) Evaluate(ctx context.Context, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok, err := g.state.GetTime(ctx, store.LastCheckedKey)
	if err != nil {
		g.logger.ErrorW("read last update check time", "error", err)
		return Decision{}
	}
	if ok && !timeutil.Due(last, now, g.interval) {
		g.logger.DebugW("update check not due",
			"last_checked_at", last,
			"next_due_at", timeutil.NextDue(last, g.interval),
		)
		return Decision{}
	}

	return g.check(ctx, now)
}

// Force runs a check regardless of the stored timestamp. The timestamp and
// notification rules are the same as for a due Evaluate.
func (g *Gate) Force(ctx context.Context, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.check(ctx, now)
}

// check must be called with g.mu held.
func (g *Gate) check(ctx context.Context, now time.Time) Decision {
	result := g.checker.Check(ctx, now)

	if result.Err != nil && g.skipStampOnFailure {
		g.logger.InfoW("update check failed, leaving last checked time unchanged", "error", result.Err)
	} else if err := g.state.SetTime(ctx, store.LastCheckedKey, now); err != nil {
		g.logger.ErrorW("persist last update check time", "error", err)
	}

	g.record(ctx, now, result)

	decision := Decision{
		ShouldNotify:   result.Classification != NoUpdate,
		Classification: result.Classification,
		Checked:        true,
		StoreURL:       result.StoreURL,
		Result:         result,
	}

	if decision.ShouldNotify {
		notice := notify.Notice{
			StoreURL:         result.StoreURL,
			Classification:   result.Classification.String(),
			InstalledVersion: result.Installed.String(),
			StoreVersion:     result.Store.String(),
			Required:         result.Classification == Required,
		}
		if err := g.notifier.NotifyUpdate(ctx, notice); err != nil {
			g.logger.ErrorW("deliver update notice", "store_url", result.StoreURL, "error", err)
		}
	}

	return decision
}

func (g *Gate) record(ctx context.Context, now time.Time, result Result) {
	if g.history == nil {
		return
	}

	rec := store.CheckRecord{
		CheckedAt:      now,
		Classification: result.Classification.String(),
		ReleaseDate:    result.ReleaseDate,
		StoreURL:       result.StoreURL,
	}
	if result.Err == nil || result.Installed != (version.Version{}) {
		rec.InstalledVersion = result.Installed.String()
	}
	if !result.ReleaseDate.IsZero() {
		rec.StoreVersion = result.Store.String()
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}

	if err := g.history.RecordCheck(ctx, rec); err != nil {
		g.logger.WarnW("record update check history", "error", err)
	}
}

// Status reports the gate's timestamp state as of now.
func (g *Gate) Status(ctx context.Context, now time.Time) (Status, error) {
	last, ok, err := g.state.GetTime(ctx, store.LastCheckedKey)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Status{NextDueAt: now, Due: true}, nil
	}
	return Status{
		LastCheckedAt: last,
		HasChecked:    true,
		NextDueAt:     timeutil.NextDue(last, g.interval),
		Due:           timeutil.Due(last, now, g.interval),
	}, nil
}
