package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/event"
	"github.com/Iron-Ham/buildrecorder/internal/logging"
	"github.com/Iron-Ham/buildrecorder/internal/project"
)

// Driver replays a manifest on a fixed set of workers, publishing lifecycle
// events on a bus. Events for one worker are published sequentially; events
// for different workers interleave.
type Driver struct {
	bus              *event.Bus
	parallelism      int
	tolerateFailures bool
	logger           *logging.Logger
	now              func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithParallelism sets the number of workers. Values below 1 mean 1.
func WithParallelism(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.parallelism = n
		}
	}
}

// WithTolerateFailures keeps module failures out of the session outcome, so
// the session ends as successful even when modules failed.
func WithTolerateFailures(tolerate bool) Option {
	return func(d *Driver) {
		d.tolerateFailures = tolerate
	}
}

// WithLogger sets the driver's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock replaces time.Now as the source of the session start time.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDriver creates a driver that publishes on bus.
func NewDriver(bus *event.Bus, opts ...Option) *Driver {
	d := &Driver{
		bus:         bus,
		parallelism: 1,
		logger:      logging.NopLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run replays m and returns the outcome it reported with the
// session.ended event. Module failures are part of the outcome, not the
// returned error; the error is only set when ctx ends before every module
// ran.
func (d *Driver) Run(ctx context.Context, m *Manifest) (project.SessionOutcome, error) {
	outcome := project.SessionOutcome{
		StartedAt:    m.StartedAt,
		TopLevelName: m.Name,
		BuildAgent:   m.BuildAgent,
	}
	if outcome.StartedAt.IsZero() {
		outcome.StartedAt = d.now()
	}
	if outcome.TopLevelName == "" && len(m.Modules) > 0 {
		outcome.TopLevelName = m.Modules[0].Artifact
	}

	d.logger.Info("replaying session",
		"modules", len(m.Modules),
		"parallelism", d.parallelism,
	)
	d.bus.Publish(event.NewSessionStartedEvent(outcome.StartedAt))

	workers := make(chan string, d.parallelism)
	for i := 1; i <= d.parallelism; i++ {
		workers <- fmt.Sprintf("worker-%d", i)
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	p := pool.New().WithMaxGoroutines(d.parallelism)
	for _, mod := range m.Modules {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			worker := <-workers
			defer func() { workers <- worker }()

			if err := d.runModule(worker, m.BaseDir, mod); err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		})
	}
	p.Wait()

	ctxErr := ctx.Err()
	if ctxErr != nil {
		outcome.Errors = append(outcome.Errors, errors.NewSessionError("session interrupted", ctxErr))
	}
	if len(failures) > 0 {
		if d.tolerateFailures {
			d.logger.Warn("module failures tolerated", "failed_modules", len(failures))
		} else {
			outcome.Errors = append(outcome.Errors, failures...)
		}
	}

	d.bus.Publish(event.NewSessionEndedEvent(outcome))
	return outcome, ctxErr
}

// runModule publishes the events of one module execution on worker and
// returns the module's failure, if any.
func (d *Driver) runModule(worker, base string, mod ModuleManifest) error {
	logger := d.logger.WithModule(mod.ID()).WithWorker(worker)

	var graph []project.Coordinate
	for _, dep := range mod.Dependencies {
		graph = append(graph, dep.coordinate(base))
	}
	d.bus.Publish(event.NewModuleStartedEvent(mod.descriptor(worker, base, graph)))

	var failedStep string
	for _, step := range mod.Steps {
		for _, dep := range step.Dependencies {
			graph = append(graph, dep.coordinate(base))
		}
		d.bus.Publish(event.NewDependencyObservedEvent(mod.descriptor(worker, base, clone(graph)), step.Name, step.Failed))
		if step.Failed && failedStep == "" {
			failedStep = step.Name
		}
	}

	for _, dep := range mod.Resolved {
		d.bus.Publish(event.NewArtifactResolvedEvent(worker, dep.coordinate(base)))
	}

	final := mod.descriptor(worker, base, graph)
	var reason string
	switch {
	case mod.Failure != "":
		reason = mod.Failure
	case failedStep != "":
		reason = fmt.Sprintf("step %s failed", failedStep)
	}
	if reason == "" {
		logger.Debug("module succeeded")
		d.bus.Publish(event.NewModuleSucceededEvent(final))
		return nil
	}

	err := errors.NewModuleError(reason, errors.ErrModuleFailed).
		WithModuleID(mod.ID()).
		WithWorker(worker)
	logger.Warn("module failed", "reason", reason)
	d.bus.Publish(event.NewModuleFailedEvent(final, err))
	return err
}

func clone(graph []project.Coordinate) []project.Coordinate {
	return append([]project.Coordinate(nil), graph...)
}
