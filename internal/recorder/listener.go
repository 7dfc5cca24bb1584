package recorder

import (
	"context"
	"time"

	"github.com/Iron-Ham/buildrecorder/internal/project"
)

// Listener receives the host's build lifecycle callbacks. Module callbacks
// may be invoked concurrently from different workers; callbacks for one
// worker are never concurrent with each other.
type Listener interface {
	SessionStarted(ctx context.Context, startedAt time.Time)
	ModuleStarted(ctx context.Context, module project.ModuleDescriptor)
	ModuleSucceeded(ctx context.Context, module project.ModuleDescriptor)
	ModuleFailed(ctx context.Context, module project.ModuleDescriptor, err error)
	// DependencyObserved fires when a step of the module finished, whether
	// it failed or not. module carries the graph as resolved at that point.
	DependencyObserved(ctx context.Context, module project.ModuleDescriptor, step string, failed bool)
	// ArtifactResolved fires for artifacts resolved on behalf of worker
	// outside the module's declared graph.
	ArtifactResolved(ctx context.Context, worker string, artifact project.Coordinate)
	SessionEnded(ctx context.Context, outcome project.SessionOutcome) error
}

// NopListener ignores every callback.
type NopListener struct{}

func (NopListener) SessionStarted(context.Context, time.Time) {}
func (NopListener) ModuleStarted(context.Context, project.ModuleDescriptor) {}
func (NopListener) ModuleSucceeded(context.Context, project.ModuleDescriptor) {}
func (NopListener) ModuleFailed(context.Context, project.ModuleDescriptor, error) {}
func (NopListener) DependencyObserved(context.Context, project.ModuleDescriptor, string, bool) {}
func (NopListener) ArtifactResolved(context.Context, string, project.Coordinate) {}
func (NopListener) SessionEnded(context.Context, project.SessionOutcome) error { return nil }

var _ Listener = NopListener{}
