package buildinfo

import (
	"sync"
	"time"
)

// Builder accumulates a BuildInfo while modules complete. AddModule and
// AddProperty may be called from any goroutine.
type Builder struct {
	mu         sync.Mutex
	info       BuildInfo
	properties map[string]string
}

// NewBuilder returns a builder seeded with the session identity. Modules and
// properties set on identity are ignored.
func NewBuilder(identity BuildInfo) *Builder {
	identity.Modules = nil
	identity.Properties = nil
	if identity.Started == "" && !identity.StartedAt.IsZero() {
		identity.Started = identity.StartedAt.Format(StartedFormat)
	}
	return &Builder{
		info:       identity,
		properties: make(map[string]string),
	}
}

// AddModule appends m. Modules keep completion order.
func (b *Builder) AddModule(m Module) {
	b.mu.Lock()
	b.info.Modules = append(b.info.Modules, m)
	b.mu.Unlock()
}

// AddProperty sets a build-level property.
func (b *Builder) AddProperty(key, value string) {
	b.mu.Lock()
	b.properties[key] = value
	b.mu.Unlock()
}

// ModuleCount returns the number of modules added so far.
func (b *Builder) ModuleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.info.Modules)
}

// Build returns a snapshot of the record with the given duration. The
// builder may keep being used; the snapshot does not change afterwards.
func (b *Builder) Build(duration time.Duration) *BuildInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.info
	out.DurationMillis = duration.Milliseconds()
	out.Modules = make([]Module, len(b.info.Modules))
	copy(out.Modules, b.info.Modules)
	if len(b.properties) > 0 {
		out.Properties = make(map[string]string, len(b.properties))
		for k, v := range b.properties {
			out.Properties[k] = v
		}
	}
	return &out
}
