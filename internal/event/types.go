package event

import (
	"time"

	"github.com/Iron-Ham/buildrecorder/internal/project"
)

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "module.succeeded", "artifact.deployed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeSessionStarted     = "session.started"
	TypeSessionEnded       = "session.ended"
	TypeModuleStarted      = "module.started"
	TypeModuleSucceeded    = "module.succeeded"
	TypeModuleFailed       = "module.failed"
	TypeDependencyObserved = "dependency.observed"
	TypeArtifactResolved   = "artifact.resolved"
	TypeArtifactDeployed   = "artifact.deployed"
	TypeBuildInfoPublished = "buildinfo.published"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Session Lifecycle Events
// -----------------------------------------------------------------------------

// SessionStartedEvent is emitted once before any module runs.
type SessionStartedEvent struct {
	baseEvent
	StartedAt time.Time
}

// NewSessionStartedEvent creates a SessionStartedEvent.
func NewSessionStartedEvent(startedAt time.Time) SessionStartedEvent {
	return SessionStartedEvent{
		baseEvent: newBaseEvent(TypeSessionStarted),
		StartedAt: startedAt,
	}
}

// SessionEndedEvent is emitted after every module has finished.
type SessionEndedEvent struct {
	baseEvent
	Outcome project.SessionOutcome
}

// NewSessionEndedEvent creates a SessionEndedEvent.
func NewSessionEndedEvent(outcome project.SessionOutcome) SessionEndedEvent {
	return SessionEndedEvent{
		baseEvent: newBaseEvent(TypeSessionEnded),
		Outcome:   outcome,
	}
}

// -----------------------------------------------------------------------------
// Module Lifecycle Events
// -----------------------------------------------------------------------------

// ModuleStartedEvent is emitted when a worker begins building a module.
type ModuleStartedEvent struct {
	baseEvent
	Module project.ModuleDescriptor
}

// NewModuleStartedEvent creates a ModuleStartedEvent.
func NewModuleStartedEvent(module project.ModuleDescriptor) ModuleStartedEvent {
	return ModuleStartedEvent{
		baseEvent: newBaseEvent(TypeModuleStarted),
		Module:    module,
	}
}

// ModuleSucceededEvent is emitted when a module finished without error.
type ModuleSucceededEvent struct {
	baseEvent
	Module project.ModuleDescriptor
}

// NewModuleSucceededEvent creates a ModuleSucceededEvent.
func NewModuleSucceededEvent(module project.ModuleDescriptor) ModuleSucceededEvent {
	return ModuleSucceededEvent{
		baseEvent: newBaseEvent(TypeModuleSucceeded),
		Module:    module,
	}
}

// ModuleFailedEvent is emitted when a module's build failed.
type ModuleFailedEvent struct {
	baseEvent
	Module project.ModuleDescriptor
	Err    error
}

// NewModuleFailedEvent creates a ModuleFailedEvent.
func NewModuleFailedEvent(module project.ModuleDescriptor, err error) ModuleFailedEvent {
	return ModuleFailedEvent{
		baseEvent: newBaseEvent(TypeModuleFailed),
		Module:    module,
		Err:       err,
	}
}

// DependencyObservedEvent is emitted when a step within a module finishes,
// successfully or not, carrying the module's dependency graph at that point.
type DependencyObservedEvent struct {
	baseEvent
	Module project.ModuleDescriptor
	Step   string
	Failed bool
}

// NewDependencyObservedEvent creates a DependencyObservedEvent.
func NewDependencyObservedEvent(module project.ModuleDescriptor, step string, failed bool) DependencyObservedEvent {
	return DependencyObservedEvent{
		baseEvent: newBaseEvent(TypeDependencyObserved),
		Module:    module,
		Step:      step,
		Failed:    failed,
	}
}

// ArtifactResolvedEvent is emitted when the host resolves an artifact for a
// worker outside the module's declared graph (plugins, tooling).
type ArtifactResolvedEvent struct {
	baseEvent
	Worker   string
	Artifact project.Coordinate
}

// NewArtifactResolvedEvent creates an ArtifactResolvedEvent.
func NewArtifactResolvedEvent(worker string, artifact project.Coordinate) ArtifactResolvedEvent {
	return ArtifactResolvedEvent{
		baseEvent: newBaseEvent(TypeArtifactResolved),
		Worker:    worker,
		Artifact:  artifact,
	}
}

// -----------------------------------------------------------------------------
// Deployment Events
// -----------------------------------------------------------------------------

// ArtifactDeployedEvent is emitted after one artifact was uploaded.
type ArtifactDeployedEvent struct {
	baseEvent
	ModuleID   string
	Repository string
	Path       string
	Duration   time.Duration
}

// NewArtifactDeployedEvent creates an ArtifactDeployedEvent.
func NewArtifactDeployedEvent(moduleID, repository, path string, d time.Duration) ArtifactDeployedEvent {
	return ArtifactDeployedEvent{
		baseEvent:  newBaseEvent(TypeArtifactDeployed),
		ModuleID:   moduleID,
		Repository: repository,
		Path:       path,
		Duration:   d,
	}
}

// BuildInfoPublishedEvent is emitted after the build info record was
// accepted by the repository.
type BuildInfoPublishedEvent struct {
	baseEvent
	Name    string
	Number  string
	Modules int
}

// NewBuildInfoPublishedEvent creates a BuildInfoPublishedEvent.
func NewBuildInfoPublishedEvent(name, number string, modules int) BuildInfoPublishedEvent {
	return BuildInfoPublishedEvent{
		baseEvent: newBaseEvent(TypeBuildInfoPublished),
		Name:      name,
		Number:    number,
		Modules:   modules,
	}
}
