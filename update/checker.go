package update

import (
	"context"
	"errors"
	"time"

	"github.com/tnicklin/update_gate/appstore"
	"github.com/tnicklin/update_gate/logger"
	"github.com/tnicklin/update_gate/version"
)

var _ UpdateChecker = (*Checker)(nil)

// Checker performs one store lookup per Check and classifies the result.
// It fails closed: every error yields NoUpdate.
type Checker struct {
	client    appstore.Client
	installed string
	threshold time.Duration
	logger    logger.Logger
}

// CheckerParams holds configuration for creating a new Checker.
type CheckerParams struct {
	Config Config
	Client appstore.Client
	Logger logger.Logger
}

func NewChecker(p CheckerParams) *Checker {
	p.Config.Defaults()

	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Checker{
		client:    p.Client,
		installed: p.Config.InstalledVersion,
		threshold: p.Config.ReleaseThreshold,
		logger:    log,
	}
}

// Check looks up the store release and classifies it as of now.
func (c *Checker) Check(ctx context.Context, now time.Time) Result {
	installed, err := version.Parse(c.installed)
	if err != nil {
		c.logger.WarnW("installed version unparseable, skipping update check",
			"installed_version", c.installed,
			"error", err,
		)
		return Result{Err: err}
	}

	if c.client == nil {
		err := errors.New("update: store client is not configured")
		c.logger.WarnW("update check skipped", "error", err)
		return Result{Installed: installed, Err: err}
	}

	meta, err := c.client.Lookup(ctx)
	if err != nil {
		c.logger.WarnW("store lookup failed, treating as no update",
			"installed_version", installed.String(),
			"kind", failureKind(err),
			"error", err,
		)
		return Result{Installed: installed, Err: err}
	}

	classification := Classify(installed, meta.Version, meta.ReleaseDate, now, c.threshold)

	c.logger.InfoW("update check complete",
		"installed_version", installed.String(),
		"store_version", meta.Version.String(),
		"release_date", meta.ReleaseDate,
		"classification", classification.String(),
	)

	return Result{
		Classification: classification,
		Installed:      installed,
		Store:          meta.Version,
		ReleaseDate:    meta.ReleaseDate,
		StoreURL:       meta.StoreURL,
	}
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, appstore.ErrNetwork):
		return "network"
	case errors.Is(err, appstore.ErrDecode):
		return "decode"
	case errors.Is(err, appstore.ErrCardinality):
		return "cardinality"
	case errors.Is(err, version.ErrInvalid):
		return "parse"
	default:
		return "unknown"
	}
}
