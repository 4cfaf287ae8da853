package tree

import (
	"go.uber.org/zap"

	"github.com/cinderkv/cinderkv/bloom"
	"github.com/cinderkv/cinderkv/stream"
)

// DefaultThreshold is the memtable byte-size above which Put triggers a flush.
const DefaultThreshold = 1_000_000

type config struct {
	threshold     uint64
	chunkSize     int
	bloomCapacity uint
	log           *zap.Logger
}

func defaultConfig() config {
	return config{
		threshold:     DefaultThreshold,
		chunkSize:     stream.DefaultChunkSize,
		bloomCapacity: bloom.DefaultCapacity,
		log:           zap.NewNop(),
	}
}

// Option configures a Tree at Open time. Grounded on the teacher's
// DiskSegmentManagerOption/WithMaxSegmentSize functional-options pattern.
type Option func(*config)

// WithThreshold overrides the memtable byte-size flush threshold.
func WithThreshold(n uint64) Option {
	return func(c *config) { c.threshold = n }
}

// WithChunkSize overrides the chunk size used when streaming segments and the
// WAL during recovery, fetch, and merge.
func WithChunkSize(n int) Option {
	return func(c *config) { c.chunkSize = n }
}

// WithBloomCapacity overrides the bit-vector width of the recovered/rebuilt
// bloom filter.
func WithBloomCapacity(n uint) Option {
	return func(c *config) { c.bloomCapacity = n }
}

// WithLogger attaches a logger for internal diagnostics (recovery progress,
// flush/merge lifecycle, WAL background-loop errors). The default is a no-op
// logger: an embedded store must never log to stdout/stderr unless asked.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.log = log }
}
