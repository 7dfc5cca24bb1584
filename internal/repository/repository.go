package repository

import (
	"fmt"

	"github.com/Iron-Ham/buildrecorder/internal/config"
	"github.com/Iron-Ham/buildrecorder/internal/deployer"
	"github.com/Iron-Ham/buildrecorder/internal/logging"
)

// Open returns the client selected by cfg.Type.
func Open(cfg config.RepositoryConfig, logger *logging.Logger) (deployer.Client, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.With("repository_type", cfg.Type)

	switch cfg.Type {
	case config.RepositoryHTTP:
		c, err := NewHTTPClient(cfg.URL,
			WithAccessToken(cfg.AccessToken),
			WithTimeout(cfg.Timeout),
			WithInsecureTLS(cfg.InsecureTLS),
			WithHTTPLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.RepositoryLocal:
		c, err := NewLocalClient(cfg.LocalDir, WithLocalLogger(logger))
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.RepositoryDryRun:
		return NewDryRunClient(logger), nil
	default:
		return nil, fmt.Errorf("unknown repository type %q", cfg.Type)
	}
}

var (
	_ deployer.Client = (*HTTPClient)(nil)
	_ deployer.Client = (*LocalClient)(nil)
	_ deployer.Client = (*DryRunClient)(nil)
)
