package recorder

import (
	"context"
	"sync"

	"github.com/Iron-Ham/buildrecorder/internal/event"
)

// Bridge feeds lifecycle events published on a bus into a Listener.
type Bridge struct {
	bus      *event.Bus
	listener Listener
	ctx      context.Context
	subs     []string

	mu  sync.Mutex
	err error
}

// Attach subscribes listener to the lifecycle events on bus. ctx is passed
// to every callback. Call Detach to unsubscribe.
func Attach(ctx context.Context, bus *event.Bus, listener Listener) *Bridge {
	b := &Bridge{bus: bus, listener: listener, ctx: ctx}

	b.on(event.TypeSessionStarted, func(e event.Event) {
		ev := e.(event.SessionStartedEvent)
		b.listener.SessionStarted(b.ctx, ev.StartedAt)
	})
	b.on(event.TypeModuleStarted, func(e event.Event) {
		b.listener.ModuleStarted(b.ctx, e.(event.ModuleStartedEvent).Module)
	})
	b.on(event.TypeModuleSucceeded, func(e event.Event) {
		b.listener.ModuleSucceeded(b.ctx, e.(event.ModuleSucceededEvent).Module)
	})
	b.on(event.TypeModuleFailed, func(e event.Event) {
		ev := e.(event.ModuleFailedEvent)
		b.listener.ModuleFailed(b.ctx, ev.Module, ev.Err)
	})
	b.on(event.TypeDependencyObserved, func(e event.Event) {
		ev := e.(event.DependencyObservedEvent)
		b.listener.DependencyObserved(b.ctx, ev.Module, ev.Step, ev.Failed)
	})
	b.on(event.TypeArtifactResolved, func(e event.Event) {
		ev := e.(event.ArtifactResolvedEvent)
		b.listener.ArtifactResolved(b.ctx, ev.Worker, ev.Artifact)
	})
	b.on(event.TypeSessionEnded, func(e event.Event) {
		err := b.listener.SessionEnded(b.ctx, e.(event.SessionEndedEvent).Outcome)
		b.mu.Lock()
		b.err = err
		b.mu.Unlock()
	})
	return b
}

func (b *Bridge) on(eventType string, h event.Handler) {
	b.subs = append(b.subs, b.bus.Subscribe(eventType, h))
}

// Err returns the error the listener returned for the last session.ended
// event.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Detach removes the bridge's subscriptions.
func (b *Bridge) Detach() {
	for _, id := range b.subs {
		b.bus.Unsubscribe(id)
	}
	b.subs = nil
}
