package sources

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/internal/config"
)

// Module provides the clip store and its cache.
var Module = fx.Module("sources",
	fx.Provide(
		NewClipCacheProvider,
		NewStoreProvider,
	),
)

// NewClipCacheProvider creates a ClipCache with config-derived size.
func NewClipCacheProvider(cfg *config.Config, logger *zap.Logger) (*ClipCache, error) {
	size := cfg.Sources.CacheSize
	if size <= 0 {
		logger.Warn("Sources CacheSize is not configured or is invalid, defaulting to 32",
			zap.Int("configuredSize", size))
		size = DefaultClipCacheSize
	}
	logger.Info("Creating ClipCache", zap.Int("size", size))

	return NewClipCache(size)
}

// NewStoreProvider creates the clip Store rooted at the configured
// library directory.
func NewStoreProvider(cfg *config.Config, logger *zap.Logger, cache *ClipCache) *Store {
	return NewStore(logger, cfg.Sources.Dir, cache)
}
