// Package planner turns the artifacts a module produced into its build-info
// artifact records and the deploy entries for them.
//
// Two independent gates apply to every artifact. The include/exclude
// patterns decide whether it may be deployed at all; when it may not,
// FilterExcludedArtifactsFromBuild decides whether the record moves to the
// module's excluded list or stays in the normal one.
package planner

import (
	"os"
	"strings"

	"github.com/Iron-Ham/buildrecorder/internal/buildinfo"
	"github.com/Iron-Ham/buildrecorder/internal/checksum"
	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/logging"
	"github.com/Iron-Ham/buildrecorder/internal/patterns"
	"github.com/Iron-Ham/buildrecorder/internal/project"
)

// Config controls artifact routing.
type Config struct {
	Patterns                         patterns.IncludeExclude
	FilterExcludedArtifactsFromBuild bool
	ReleaseRepo                      string
	// SnapshotRepo receives paths carrying the snapshot marker. Empty sends
	// everything to ReleaseRepo.
	SnapshotRepo string
	// MatrixParams are attached to every deploy entry.
	MatrixParams map[string]string
}

// ChecksumFunc computes digests for a file. See checksum.Compute.
type ChecksumFunc func(path string) (map[string]string, error)

// Planner plans one module at a time. It is safe for concurrent use.
type Planner struct {
	cfg      Config
	logger   *logging.Logger
	checksum ChecksumFunc
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the planner's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithChecksumFunc replaces checksum.Compute.
func WithChecksumFunc(fn ChecksumFunc) Option {
	return func(p *Planner) {
		if fn != nil {
			p.checksum = fn
		}
	}
}

// New returns a Planner for cfg.
func New(cfg Config, opts ...Option) *Planner {
	p := &Planner{
		cfg:      cfg,
		logger:   logging.NopLogger(),
		checksum: checksum.Compute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan is the outcome of planning one module.
type Plan struct {
	Artifacts   []buildinfo.Artifact
	Excluded    []buildinfo.Artifact
	Deployables []buildinfo.DeployDetails
}

// Plan processes artifacts, the module's accumulated produced artifacts, in
// order. When none of them is a descriptor but one carries a descriptor
// file, a descriptor artifact is synthesised from the last such artifact.
func (p *Planner) Plan(module project.ModuleDescriptor, artifacts []project.ProducedArtifact) Plan {
	moduleID := buildinfo.ModuleID(module.GroupID, module.ArtifactID, module.Version)
	log := p.logger.WithModule(moduleID).WithWorker(module.Worker)

	var (
		plan          Plan
		names         = make(map[string]struct{}, len(artifacts)+1)
		descriptorSet bool
		carrier       *project.ProducedArtifact
		carrierName   string
	)

	for i := range artifacts {
		a := artifacts[i]
		ext := a.Ext()
		name := buildinfo.ArtifactName(a.ArtifactID, a.Version, a.Classifier, ext)
		typ := buildinfo.TypeString(a.Type, a.Classifier, ext)
		file := a.File

		if a.IsDescriptor() {
			descriptorSet = true
			if file == "" && module.IsMain(a) {
				file = module.DescriptorFile
			}
		} else if a.DescriptorFile != "" {
			carrier = &artifacts[i]
			carrierName = strings.TrimSuffix(name, ext) + project.TypePOM
		}

		path := buildinfo.DeploymentPath(a.GroupID, a.ArtifactID, a.Version, a.Classifier, ext)
		p.place(&plan, names, log, moduleID, name, typ, path, file)
	}

	if !descriptorSet && carrier != nil {
		if !isRegularFile(carrier.DescriptorFile) {
			log.Debug("descriptor file missing, not synthesising descriptor artifact",
				"file", carrier.DescriptorFile)
		} else {
			path := buildinfo.DeploymentPath(carrier.GroupID, carrier.ArtifactID, carrier.Version, carrier.Classifier, project.TypePOM)
			p.place(&plan, names, log, moduleID, carrierName, project.TypePOM, path, carrier.DescriptorFile)
		}
	}

	return plan
}

// place routes one artifact record into the plan.
func (p *Planner) place(plan *Plan, names map[string]struct{}, log *logging.Logger, moduleID, name, typ, path, file string) {
	if _, dup := names[name]; dup {
		log.Debug("duplicate artifact name skipped", "artifact", name)
		return
	}
	names[name] = struct{}{}

	record := buildinfo.Artifact{Name: name, Type: typ}
	conflict := p.cfg.Patterns.Conflicts(path)

	switch {
	case conflict:
		log.Info("artifact will not be deployed due to the include/exclude patterns",
			"artifact", name, "path", path)
	case !isRegularFile(file):
		log.Debug("artifact file missing, recorded but not deployed", "artifact", name, "file", file)
	default:
		sums, err := p.checksum(file)
		if err != nil {
			log.Warn("could not compute checksums",
				"artifact", name,
				"error", errors.NewModuleError("checksum "+file, err).WithModuleID(moduleID).Error())
		}
		record.SetChecksums(sums)
		plan.Deployables = append(plan.Deployables, buildinfo.DeployDetails{
			ModuleID:         moduleID,
			ArtifactName:     name,
			ArtifactPath:     path,
			File:             file,
			TargetRepository: buildinfo.TargetRepository(path, p.cfg.ReleaseRepo, p.cfg.SnapshotRepo),
			Md5:              record.Md5,
			Sha1:             record.Sha1,
			Properties:       copyMap(p.cfg.MatrixParams),
		})
	}

	if conflict && p.cfg.FilterExcludedArtifactsFromBuild {
		plan.Excluded = append(plan.Excluded, record)
		return
	}
	plan.Artifacts = append(plan.Artifacts, record)
}

func isRegularFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
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
