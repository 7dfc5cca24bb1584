// Package recorder builds the session's build-info record from the host's
// lifecycle callbacks and hands it to the deployer when the session ends.
//
// The recorder moves through four states. It starts idle, accumulates while
// modules complete, and ends either complete (build info materialized and
// deployed) or aborted (the session reported errors; nothing is produced).
// Every callback is forwarded to the downstream listener after local
// processing, whatever the outcome.
//
// Per-module state lives in accumulators keyed by the worker running the
// module. The module list and the deployable map are the only state shared
// between workers.
package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/buildrecorder/internal/accumulator"
	"github.com/Iron-Ham/buildrecorder/internal/buildinfo"
	"github.com/Iron-Ham/buildrecorder/internal/checksum"
	"github.com/Iron-Ham/buildrecorder/internal/depmerge"
	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/logging"
	"github.com/Iron-Ham/buildrecorder/internal/patterns"
	"github.com/Iron-Ham/buildrecorder/internal/planner"
	"github.com/Iron-Ham/buildrecorder/internal/project"
	"github.com/Iron-Ham/buildrecorder/internal/template"
)

// AgentName is the name recorded as the build-info agent.
const AgentName = "buildrecorder"

// State is the recorder's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateComplete
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateComplete:
		return "complete"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Deployer publishes a materialized build info and its deployables.
type Deployer interface {
	Deploy(ctx context.Context, info *buildinfo.BuildInfo, deployables map[string]buildinfo.DeployDetails) error
}

// Identity is the configured build identity. Values may hold
// {{VAR|"default"}} placeholders; they are resolved when the session ends.
type Identity struct {
	Name         string
	Number       string
	Started      string
	URL          string
	Principal    string
	VcsRevision  string
	VcsURL       string
	ParentName   string
	ParentNumber string
	Properties   map[string]string
}

// Config controls what the recorder records.
type Config struct {
	Identity Identity
	// Planner routes artifacts. MatrixParams values are resolved again for
	// every module.
	Planner               planner.Config
	RecordAllDependencies bool
	IncludeEnvVars        bool
	EnvPatterns           patterns.IncludeExclude
	// AgentName defaults to AgentName when empty.
	AgentName    string
	AgentVersion string
	// DeployableArtifactsFile, when set, receives the per-module deployable
	// set as JSON before deployment.
	DeployableArtifactsFile string
}

// Recorder implements Listener.
type Recorder struct {
	cfg        Config
	logger     *logging.Logger
	resolver   *template.Resolver
	deployer   Deployer
	downstream Listener
	checksum   planner.ChecksumFunc
	now        func() time.Time

	artifacts *accumulator.Accumulator[project.ProducedArtifact]
	deps      *accumulator.Accumulator[project.Coordinate]
	buildTime *accumulator.Accumulator[project.Coordinate]

	deployables *buildinfo.DeployableMap
	builder     *buildinfo.Builder

	mu        sync.Mutex
	state     State
	startedAt time.Time
	result    *buildinfo.BuildInfo
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the recorder's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDownstream sets the listener every callback is forwarded to.
func WithDownstream(l Listener) Option {
	return func(r *Recorder) {
		if l != nil {
			r.downstream = l
		}
	}
}

// WithResolver sets the placeholder resolver. Defaults to the process
// environment.
func WithResolver(res *template.Resolver) Option {
	return func(r *Recorder) {
		if res != nil {
			r.resolver = res
		}
	}
}

// WithDeployer sets the deployer run when the session completes. Without one
// the build info is materialized but not deployed.
func WithDeployer(d Deployer) Option {
	return func(r *Recorder) {
		r.deployer = d
	}
}

// WithChecksumFunc replaces checksum.Compute for artifacts and dependencies.
func WithChecksumFunc(fn planner.ChecksumFunc) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.checksum = fn
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns an idle Recorder.
func New(cfg Config, opts ...Option) *Recorder {
	r := &Recorder{
		cfg:         cfg,
		logger:      logging.NopLogger(),
		resolver:    template.NewResolver(),
		downstream:  NopListener{},
		checksum:    checksum.Compute,
		now:         time.Now,
		artifacts:   accumulator.New(project.ProducedArtifact.Key),
		deps:        accumulator.New(project.Coordinate.Key),
		buildTime:   accumulator.New(project.Coordinate.Key),
		deployables: buildinfo.NewDeployableMap(),
		builder:     buildinfo.NewBuilder(buildinfo.BuildInfo{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// BuildInfo returns the materialized record, or nil unless the session
// completed.
func (r *Recorder) BuildInfo() *buildinfo.BuildInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// DeployableCount returns the number of entries currently in the deployable
// map.
func (r *Recorder) DeployableCount() int {
	return r.deployables.Len()
}

// SessionStarted records the session start time.
func (r *Recorder) SessionStarted(ctx context.Context, startedAt time.Time) {
	r.mu.Lock()
	if r.startedAt.IsZero() {
		r.startedAt = startedAt
	}
	r.mu.Unlock()

	r.downstream.SessionStarted(ctx, startedAt)
}

// ModuleStarted forwards the callback.
func (r *Recorder) ModuleStarted(ctx context.Context, module project.ModuleDescriptor) {
	r.enter("module_started")
	r.downstream.ModuleStarted(ctx, module)
}

// ModuleSucceeded turns the worker's accumulated state into a Module, adds
// it to the build info and clears the worker's state.
func (r *Recorder) ModuleSucceeded(ctx context.Context, module project.ModuleDescriptor) {
	defer r.downstream.ModuleSucceeded(ctx, module)
	if !r.enter("module_succeeded") {
		return
	}

	moduleID := buildinfo.ModuleID(module.GroupID, module.ArtifactID, module.Version)
	log := r.logger.WithModule(moduleID).WithWorker(module.Worker)

	r.artifacts.AddAll(module.Worker, module.Artifacts()...)
	r.mergeDependencies(module)

	plan := r.planner(log).Plan(module, r.artifacts.GetOrCreate(module.Worker).Items())
	for _, d := range plan.Deployables {
		r.deployables.Put(d)
	}

	r.builder.AddModule(buildinfo.Module{
		ID:                moduleID,
		Type:              buildinfo.ModuleTypeMaven,
		Properties:        copyMap(module.Properties),
		Artifacts:         plan.Artifacts,
		ExcludedArtifacts: plan.Excluded,
		Dependencies:      r.dependencyRecords(log, r.deps.GetOrCreate(module.Worker).Items()),
	})
	log.Debug("module recorded",
		"modules", r.builder.ModuleCount(),
		"artifacts", len(plan.Artifacts),
		"excluded", len(plan.Excluded),
		"deployables", len(plan.Deployables))

	r.artifacts.Clear(module.Worker)
	r.deps.Clear(module.Worker)
	r.buildTime.Clear(module.Worker)
}

// ModuleFailed merges the module's dependencies; no Module is recorded.
// The worker's state is cleared so the next module it runs starts empty.
func (r *Recorder) ModuleFailed(ctx context.Context, module project.ModuleDescriptor, err error) {
	defer r.downstream.ModuleFailed(ctx, module, err)
	if !r.enter("module_failed") {
		return
	}
	r.mergeDependencies(module)
	r.artifacts.Clear(module.Worker)
	r.deps.Clear(module.Worker)
	r.buildTime.Clear(module.Worker)
}

// DependencyObserved merges the module's dependencies.
func (r *Recorder) DependencyObserved(ctx context.Context, module project.ModuleDescriptor, step string, failed bool) {
	defer r.downstream.DependencyObserved(ctx, module, step, failed)
	if !r.enter("dependency_observed") {
		return
	}
	r.mergeDependencies(module)
}

// ArtifactResolved records a build-time dependency for worker when all
// dependencies are recorded.
func (r *Recorder) ArtifactResolved(ctx context.Context, worker string, artifact project.Coordinate) {
	defer r.downstream.ArtifactResolved(ctx, worker, artifact)
	if !r.enter("artifact_resolved") {
		return
	}
	if r.cfg.RecordAllDependencies {
		r.buildTime.Add(worker, artifact)
	}
}

// SessionEnded materializes and deploys the build info unless the outcome
// carries errors. The deployment error, if any, is joined with the
// downstream listener's error.
func (r *Recorder) SessionEnded(ctx context.Context, outcome project.SessionOutcome) error {
	r.mu.Lock()
	if r.state == StateComplete || r.state == StateAborted {
		ended := errors.NewSessionError(fmt.Sprintf("session already %s", r.state), errors.ErrSessionComplete)
		if r.result != nil {
			ended = ended.WithBuild(r.result.Name, r.result.Number)
		}
		r.mu.Unlock()
		return errors.Join(ended, r.downstream.SessionEnded(ctx, outcome))
	}
	if r.startedAt.IsZero() {
		r.startedAt = outcome.StartedAt
	}
	r.mu.Unlock()

	if n := r.deps.Workers(); n > 0 {
		r.logger.Warn("discarding state of unfinished modules", "workers", n)
	}

	if outcome.HasErrors() {
		r.setState(StateAborted)
		r.deployables.Clear()
		r.logger.Warn("session reported errors, build info will not be produced",
			"errors", len(outcome.Errors),
			"error", fmt.Sprint(outcome.Errors))
		return r.downstream.SessionEnded(ctx, outcome)
	}

	info, err := r.materialize(outcome)
	if err != nil {
		r.setState(StateAborted)
		r.deployables.Clear()
		return errors.Join(err, r.downstream.SessionEnded(ctx, outcome))
	}

	r.mu.Lock()
	r.state = StateComplete
	r.result = info
	r.mu.Unlock()

	deployErr := r.deploy(ctx, info)
	r.deployables.Clear()
	return errors.Join(deployErr, r.downstream.SessionEnded(ctx, outcome))
}

func (r *Recorder) deploy(ctx context.Context, info *buildinfo.BuildInfo) error {
	log := r.logger.WithBuild(info.Name, info.Number)
	deployables := r.deployables.Snapshot()

	if r.cfg.DeployableArtifactsFile != "" {
		if err := r.writeDeployableArtifacts(info, deployables); err != nil {
			log.Error("could not write deployable artifacts", "file", r.cfg.DeployableArtifactsFile, "error", err.Error())
			return err
		}
	}

	if r.deployer == nil {
		log.Info("no deployer configured, build info recorded only", "modules", len(info.Modules))
		return nil
	}
	return r.deployer.Deploy(ctx, info, deployables)
}

func (r *Recorder) writeDeployableArtifacts(info *buildinfo.BuildInfo, deployables map[string]buildinfo.DeployDetails) error {
	path := r.cfg.DeployableArtifactsFile
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create deployable artifacts directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create deployable artifacts file")
	}
	defer func() { _ = f.Close() }()
	return buildinfo.WriteDeployableArtifacts(f, buildinfo.GroupByModule(info, deployables))
}

// materialize resolves the build identity and snapshots the builder.
func (r *Recorder) materialize(outcome project.SessionOutcome) (*buildinfo.BuildInfo, error) {
	id, err := r.resolveIdentity()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	startedAt := r.startedAt
	r.mu.Unlock()
	now := r.now()
	if startedAt.IsZero() {
		startedAt = now
	}

	for k, v := range id.Properties {
		r.builder.AddProperty(k, v)
	}
	if r.cfg.IncludeEnvVars {
		envPatterns := r.cfg.EnvPatterns.Lower()
		for k, v := range r.resolver.Environ() {
			if envPatterns.Conflicts(strings.ToLower(k)) {
				continue
			}
			r.builder.AddProperty(buildinfo.EnvPropertyPrefix+k, v)
		}
	}

	info := r.builder.Build(now.Sub(startedAt))
	info.Name = firstNonBlank(id.Name, outcome.TopLevelName)
	info.Number = firstNonBlank(id.Number, strconv.FormatInt(now.UnixMilli(), 10))
	info.StartedAt = startedAt
	info.Started = firstNonBlank(id.Started, startedAt.Format(buildinfo.StartedFormat))
	info.URL = id.URL
	info.Principal = id.Principal
	info.ParentName = id.ParentName
	info.ParentNumber = id.ParentNumber
	info.Agent = &buildinfo.Agent{Name: firstNonBlank(r.cfg.AgentName, AgentName), Version: r.cfg.AgentVersion}
	if outcome.BuildAgent != "" {
		name, version, _ := strings.Cut(outcome.BuildAgent, "/")
		info.BuildAgent = &buildinfo.Agent{Name: name, Version: version}
	}
	if id.VcsRevision != "" || id.VcsURL != "" {
		info.Vcs = []buildinfo.Vcs{{Revision: id.VcsRevision, URL: id.VcsURL}}
	}

	r.logger.WithBuild(info.Name, info.Number).Info("build info materialized",
		"modules", len(info.Modules),
		"duration_ms", info.DurationMillis)
	return info, nil
}

func (r *Recorder) resolveIdentity() (Identity, error) {
	in := r.cfg.Identity
	out := Identity{}
	fields := []struct {
		key string
		src string
		dst *string
	}{
		{"build.name", in.Name, &out.Name},
		{"build.number", in.Number, &out.Number},
		{"build.started", in.Started, &out.Started},
		{"build.url", in.URL, &out.URL},
		{"build.principal", in.Principal, &out.Principal},
		{"build.vcs_revision", in.VcsRevision, &out.VcsRevision},
		{"build.vcs_url", in.VcsURL, &out.VcsURL},
		{"build.parent_name", in.ParentName, &out.ParentName},
		{"build.parent_number", in.ParentNumber, &out.ParentNumber},
	}
	for _, f := range fields {
		v, err := r.resolver.Resolve(f.src)
		if err != nil {
			return Identity{}, errors.NewConfigError("cannot resolve build identity", err).WithKey(f.key)
		}
		*f.dst = strings.TrimSpace(v)
	}

	props, err := r.resolver.ResolveMap(in.Properties)
	if err != nil {
		return Identity{}, err
	}
	out.Properties = props
	return out, nil
}

// planner returns a planner whose matrix params are resolved for this
// module. Unresolvable params are logged and dropped.
func (r *Recorder) planner(log *logging.Logger) *planner.Planner {
	cfg := r.cfg.Planner
	params, err := r.resolver.ResolveMap(cfg.MatrixParams)
	if err != nil {
		log.Warn("matrix params not applied", "error", err.Error())
		params = nil
	}
	cfg.MatrixParams = params
	return planner.New(cfg, planner.WithLogger(log), planner.WithChecksumFunc(r.checksum))
}

func (r *Recorder) mergeDependencies(module project.ModuleDescriptor) {
	merged := depmerge.Merge(depmerge.Sources{
		Graph:       module.Dependencies,
		Accumulated: r.deps.GetOrCreate(module.Worker).Items(),
		BuildTime:   r.buildTime.GetOrCreate(module.Worker).Items(),
		RecordAll:   r.cfg.RecordAllDependencies,
	})
	r.deps.Replace(module.Worker, merged)
}

func (r *Recorder) dependencyRecords(log *logging.Logger, deps []project.Coordinate) []buildinfo.Dependency {
	out := make([]buildinfo.Dependency, 0, len(deps))
	for _, c := range deps {
		ext := strings.TrimPrefix(filepath.Ext(c.File), ".")
		if ext == "" {
			ext = c.Ext()
		}
		d := buildinfo.Dependency{
			ID:   buildinfo.ModuleID(c.GroupID, c.ArtifactID, c.Version),
			Type: buildinfo.TypeString(c.Type, c.Classifier, ext),
		}
		if strings.TrimSpace(c.Scope) != "" {
			d.Scopes = []string{c.Scope}
		}
		if c.File != "" {
			sums, err := r.checksum(c.File)
			if err != nil {
				log.Warn("could not compute dependency checksums", "dependency", d.ID, "error", err.Error())
			}
			d.SetChecksums(sums)
		}
		out = append(out, d)
	}
	return out
}

// enter moves an idle recorder to accumulating. It returns false once the
// session has ended, in which case the callback is only forwarded.
func (r *Recorder) enter(callback string) bool {
	r.mu.Lock()
	state := r.state
	if state == StateIdle {
		r.state = StateAccumulating
	}
	r.mu.Unlock()

	if state == StateComplete || state == StateAborted {
		r.logger.Warn("callback after session end ignored", "callback", callback, "state", state.String())
		return false
	}
	return true
}

func (r *Recorder) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ Listener = (*Recorder)(nil)
