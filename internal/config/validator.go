package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "publisher.deploy_concurrency")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Publisher config
	errors = append(errors, c.validatePublisher()...)

	// Validate Repository config
	errors = append(errors, c.validateRepository()...)

	// Validate Session config
	errors = append(errors, c.validateSession()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validatePublisher() []ValidationError {
	var errors []ValidationError

	if c.Publisher.DeployConcurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "publisher.deploy_concurrency",
			Value:   c.Publisher.DeployConcurrency,
			Message: "must be at least 1",
		})
	}

	if err := c.Publisher.Patterns().Validate(); err != nil {
		errors = append(errors, ValidationError{
			Field:   "publisher.include_patterns",
			Value:   strings.Join(slices.Concat(c.Publisher.IncludePatterns, c.Publisher.ExcludePatterns), ","),
			Message: err.Error(),
		})
	}

	if err := c.Publisher.EnvPatterns().Validate(); err != nil {
		errors = append(errors, ValidationError{
			Field:   "publisher.env_include_patterns",
			Value:   strings.Join(slices.Concat(c.Publisher.EnvIncludePatterns, c.Publisher.EnvExcludePatterns), ","),
			Message: err.Error(),
		})
	}

	return errors
}

func (c *Config) validateRepository() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidRepositoryTypes(), c.Repository.Type) {
		errors = append(errors, ValidationError{
			Field:   "repository.type",
			Value:   c.Repository.Type,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidRepositoryTypes(), ", ")),
		})
		return errors
	}

	if c.Repository.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "repository.timeout",
			Value:   c.Repository.Timeout,
			Message: "must be non-negative",
		})
	}

	if c.Repository.URL != "" {
		u, err := url.Parse(c.Repository.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "repository.url",
				Value:   c.Repository.URL,
				Message: "must be an absolute http or https URL",
			})
		}
	}

	return errors
}

func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	if c.Session.Parallelism < 1 {
		errors = append(errors, ValidationError{
			Field:   "session.parallelism",
			Value:   c.Session.Parallelism,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be at least 1",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// ValidateDeploy checks the settings a session needs to actually deploy. It
// is separate from Validate so that configs without a repository can still
// be loaded and inspected.
func (c *Config) ValidateDeploy() []ValidationError {
	var errors []ValidationError

	if c.Publisher.PublishArtifacts && strings.TrimSpace(c.Publisher.RepoKey) == "" {
		errors = append(errors, ValidationError{
			Field:   "publisher.repo_key",
			Value:   c.Publisher.RepoKey,
			Message: "is required when publish_artifacts is enabled",
		})
	}

	if !c.Publisher.PublishArtifacts && !c.Publisher.PublishBuildInfo {
		return errors
	}

	switch c.Repository.Type {
	case RepositoryHTTP:
		if c.Repository.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "repository.url",
				Value:   c.Repository.URL,
				Message: "is required for the http repository",
			})
		}
	case RepositoryLocal:
		if strings.TrimSpace(c.Repository.LocalDir) == "" {
			errors = append(errors, ValidationError{
				Field:   "repository.local_dir",
				Value:   c.Repository.LocalDir,
				Message: "is required for the local repository",
			})
		}
	}

	return errors
}
