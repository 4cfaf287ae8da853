// Package bloom implements an approximate-membership bit-vector filter over
// serialized keys, using a small fixed list of independent hashers. It never
// produces false negatives; it may produce false positives.
package bloom

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// DefaultCapacity is the default bit-vector width in bits.
const DefaultCapacity = 4096

// HasherID names one of the fixed hash functions a Bloom can use. Modeling the
// hasher list as identifiers rather than function values keeps a Bloom's
// equality structural: two filters built with the same identifiers, capacity,
// and insertion sequence compare equal regardless of process identity.
type HasherID uint8

const (
	// HasherXXHash64 is a fast non-cryptographic 64-bit hash.
	HasherXXHash64 HasherID = iota
	// HasherMurmur3_128 is a 128-bit general-purpose hash; only its low 64 bits
	// are used to index the bit vector.
	HasherMurmur3_128
)

// DefaultHashers is the H=2 hasher list used when none is supplied.
func DefaultHashers() []HasherID {
	return []HasherID{HasherXXHash64, HasherMurmur3_128}
}

func (h HasherID) hash(key []byte) uint64 {
	switch h {
	case HasherXXHash64:
		return xxhash.Sum64(key)
	case HasherMurmur3_128:
		h1, _ := murmur3.Sum128(key)
		return h1
	default:
		panic("bloom: unknown hasher id")
	}
}

// Filter is an integer bit-vector membership filter of fixed capacity with a
// monotone insertion counter.
type Filter struct {
	capacity uint
	hashers  []HasherID
	bits     *bitset.BitSet
	size     uint64
}

// Option configures a new Filter.
type Option func(*Filter)

// WithCapacity overrides the bit-vector width.
func WithCapacity(capacity uint) Option {
	return func(f *Filter) { f.capacity = capacity }
}

// WithHashers overrides the hasher list.
func WithHashers(hashers ...HasherID) Option {
	return func(f *Filter) { f.hashers = append([]HasherID(nil), hashers...) }
}

// New constructs an empty Filter with DefaultCapacity bits and DefaultHashers,
// as overridden by opts.
func New(opts ...Option) *Filter {
	f := &Filter{
		capacity: DefaultCapacity,
		hashers:  DefaultHashers(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.bits = bitset.New(f.capacity)
	return f
}

// Put records key's membership: every hasher's position modulo capacity is set,
// and the insertion counter is incremented whether or not key was already a
// (probable) member.
func (f *Filter) Put(key []byte) {
	for _, h := range f.hashers {
		pos := h.hash(key) % uint64(f.capacity)
		f.bits.Set(uint(pos))
	}
	f.size++
}

// Member reports whether key is possibly present: true iff every hasher's
// position is set. A true result may be a false positive; a false result is
// never a false negative.
func (f *Filter) Member(key []byte) bool {
	for _, h := range f.hashers {
		pos := h.hash(key) % uint64(f.capacity)
		if !f.bits.Test(uint(pos)) {
			return false
		}
	}
	return true
}

// Size returns the number of insertions performed, counting duplicates.
func (f *Filter) Size() uint64 { return f.size }

// Capacity returns the bit-vector width in bits.
func (f *Filter) Capacity() uint { return f.capacity }

// Equal reports structural equality: same capacity, same hasher list, same
// bit vector contents, same insertion count. Two filters built by identical
// insertion sequences on identical configuration compare equal.
func (f *Filter) Equal(other *Filter) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.capacity != other.capacity || f.size != other.size {
		return false
	}
	if len(f.hashers) != len(other.hashers) {
		return false
	}
	for i := range f.hashers {
		if f.hashers[i] != other.hashers[i] {
			return false
		}
	}
	return f.bits.Equal(other.bits)
}
