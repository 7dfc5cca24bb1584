// Package event provides a pub-sub event bus that carries build lifecycle
// notifications between the session driver, the recorder, and the CLI.
//
// The bus is synchronous: Publish runs every handler on the calling
// goroutine before returning. Build workers publish module events from their
// own goroutines, so handlers must be safe for concurrent use.
//
// # Event Categories
//
// Session lifecycle:
//   - [SessionStartedEvent], [SessionEndedEvent]
//
// Module lifecycle:
//   - [ModuleStartedEvent], [ModuleSucceededEvent], [ModuleFailedEvent]
//   - [DependencyObservedEvent]: a step inside a module finished
//   - [ArtifactResolvedEvent]: the host resolved a build-time artifact
//
// Deployment progress:
//   - [ArtifactDeployedEvent], [BuildInfoPublishedEvent]
//
// # Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//	bus.Subscribe(event.TypeArtifactDeployed, func(e event.Event) {
//	    d := e.(event.ArtifactDeployedEvent)
//	    fmt.Println("deployed", d.Path)
//	})
//	bus.Publish(event.NewArtifactDeployedEvent("org.acme:core:1.0", "libs-release", path, took))
package event
