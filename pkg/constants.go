package densehash

// constants.go collects the tunables fixed by §6.3 of the specification.
// They are exported so callers can reason about capacity planning without
// reading the source, the same way the teacher repo exported its CLOCK-Pro
// state bits through pkg/config.go.
//
// © 2025 densehash authors. MIT License.

import "github.com/abhivetukuri/Unordered-Dense-Map/internal/bucket"

const (
	// InitialCapacity is the number of slots a freshly constructed table
	// starts with when the caller does not reserve a larger size up front.
	InitialCapacity = 16

	// MaxLoadFactor bounds size/capacity after every returned insert. It can
	// be overridden per table via WithMaxLoadFactor, to a value strictly
	// between 0 and 1.
	MaxLoadFactor = 0.75

	// PartitionCount is the recommended shard count for the concurrent
	// table (§2 component 5).
	PartitionCount = 64
)

// MaxDistance is the saturating ceiling on probe distance (§4.1). Exceeding
// it forces a rehash-and-retry rather than continuing to probe.
const MaxDistance = bucket.MaxDistance

// MaxEntryIndex is the largest index the 46-bit packed entry_index field can
// hold. Only the concurrent table packs it into atomic bucket words, but both
// tables refuse capacities whose entries could exceed it.
const MaxEntryIndex = bucket.MaxEntryIndex
