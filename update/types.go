package update

import (
	"context"
	"time"

	"github.com/tnicklin/update_gate/store"
	"github.com/tnicklin/update_gate/version"
)

// Classification is the outcome of comparing the installed version with
// the published store version.
type Classification int

const (
	NoUpdate Classification = iota
	Optional
	Required
)

func (c Classification) String() string {
	switch c {
	case Optional:
		return "optional"
	case Required:
		return "required"
	default:
		return "none"
	}
}

// Result is the outcome of one Checker.Check call. Err records why a check
// fell back to NoUpdate; it is for logging and history only.
type Result struct {
	Classification Classification
	Installed      version.Version
	Store          version.Version
	ReleaseDate    time.Time
	StoreURL       string
	Err            error
}

// Decision is what Gate.Evaluate hands back to the caller.
type Decision struct {
	ShouldNotify   bool
	Classification Classification
	// Checked is false when the gate was closed and no lookup happened.
	Checked  bool
	StoreURL string
	Result   Result
}

// Status describes the gate without performing a check.
type Status struct {
	LastCheckedAt time.Time
	HasChecked    bool
	NextDueAt     time.Time
	Due           bool
}

// StateStore persists timestamps under fixed keys.
type StateStore interface {
	GetTime(ctx context.Context, key string) (time.Time, bool, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}

// HistoryStore receives a record of every attempted check.
type HistoryStore interface {
	RecordCheck(ctx context.Context, rec store.CheckRecord) error
}

// UpdateChecker classifies the published release against the installed one.
type UpdateChecker interface {
	Check(ctx context.Context, now time.Time) Result
}

// Poller re-evaluates the gate on an interval.
type Poller interface {
	Start(ctx context.Context) error
	Stop()
}
