package descriptorfile

import (
	"github.com/centraunit/habitat"
	"github.com/centraunit/habitat/config"
	"go.uber.org/zap"
)

// Bootstrap builds a locator from cfg: a logger at the configured level and,
// when cfg names a descriptor file, every descriptor in it.
func Bootstrap(cfg *config.Config, providers Providers, opts ...habitat.Option) (*habitat.ServiceLocator, error) {
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	l := habitat.NewServiceLocator(append([]habitat.Option{habitat.WithLogger(logger)}, opts...)...)
	if cfg.DescriptorFile == "" {
		return l, nil
	}

	handles, err := PopulateFile(l, cfg.DescriptorFile, providers)
	if err != nil {
		return nil, err
	}
	logger.Info("descriptors loaded",
		zap.String("file", cfg.DescriptorFile),
		zap.Int("count", len(handles)))
	return l, nil
}
