package knowledge

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	schemaCacheKey   = "schema"
	trainingCacheKey = "training"

	defaultCacheTTL      = 5 * time.Minute
	defaultTrainingLimit = 20
)

type LoaderConfig struct {
	Logger           *slog.Logger
	SchemaPath       string
	TrainingDataPath string

	CacheTTL      time.Duration
	TrainingLimit int
}

func (c *LoaderConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.SchemaPath == "" {
		return errors.New("schema path is required")
	}
	if c.TrainingDataPath == "" {
		return errors.New("training data path is required")
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.TrainingLimit == 0 {
		c.TrainingLimit = defaultTrainingLimit
	}
	return nil
}

// Loader reads the schema and training pairs from disk, caching both so
// the scheduler's frequent cycles do not reread unchanged files.
type Loader struct {
	cfg *LoaderConfig

	cache   *ttlcache.Cache[string, any]
	cacheMu sync.RWMutex
}

func NewLoader(cfg *LoaderConfig) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, any](cfg.CacheTTL),
	)

	return &Loader{cfg: cfg, cache: cache}, nil
}

func (l *Loader) Schema() (*Schema, error) {
	if cached := l.getCachedSchema(); cached != nil {
		return cached, nil
	}
	schema, err := LoadSchema(l.cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	l.setCachedSchema(schema)
	return schema, nil
}

func (l *Loader) TrainingPairs() ([]TrainingPair, error) {
	if cached := l.getCachedTrainingPairs(); cached != nil {
		return cached, nil
	}
	pairs, err := LoadTrainingPairs(l.cfg.TrainingDataPath, l.cfg.TrainingLimit)
	if err != nil {
		return nil, err
	}
	l.setCachedTrainingPairs(pairs)
	return pairs, nil
}

func (l *Loader) getCachedSchema() *Schema {
	l.cacheMu.RLock()
	defer l.cacheMu.RUnlock()
	cached := l.cache.Get(schemaCacheKey)
	if cached == nil {
		return nil
	}
	return cached.Value().(*Schema)
}

func (l *Loader) setCachedSchema(schema *Schema) {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	l.cache.Set(schemaCacheKey, schema, l.cfg.CacheTTL)
}

func (l *Loader) getCachedTrainingPairs() []TrainingPair {
	l.cacheMu.RLock()
	defer l.cacheMu.RUnlock()
	cached := l.cache.Get(trainingCacheKey)
	if cached == nil {
		return nil
	}
	return cached.Value().([]TrainingPair)
}

func (l *Loader) setCachedTrainingPairs(pairs []TrainingPair) {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	l.cache.Set(trainingCacheKey, pairs, l.cfg.CacheTTL)
}
