package pathoram

// Config sizes a Path-ORAM tree. Height is the number L such that the tree
// has 2^L leaves and 2^(L+1)-1 buckets total (spec §4.C: "a complete binary
// tree of height L ... indexed 1..2^(L+1)-1 in heap order"). BlockSize is
// the logical payload size returned from Get/accepted by Put; the codec and
// an 8-byte id header add overhead on top when sizing physical storage.
type Config struct {
	BlockSize  int
	BucketSize uint64
	Height     uint64
	StashLimit uint64
}

// Validate fills in defaults (BucketSize=3, StashLimit=3*Height*BucketSize
// per spec §4.D) and rejects nonsensical configurations.
func (c Config) Validate() (Config, error) {
	if c.BlockSize <= 0 {
		return c, ErrInvalidConfig
	}
	if c.BucketSize == 0 {
		c.BucketSize = 3
	}
	if c.Height == 0 {
		return c, ErrInvalidConfig
	}
	if c.StashLimit == 0 {
		c.StashLimit = 3 * c.Height * c.BucketSize
	}
	return c, nil
}

// NumLeaves returns 2^Height.
func (c Config) NumLeaves() uint64 {
	return 1 << c.Height
}

// TotalBuckets returns 2^(Height+1) - 1, the full bucket count of the tree.
func (c Config) TotalBuckets() uint64 {
	return (1 << (c.Height + 1)) - 1
}

// StorageCapacity returns the number of fixed-size slots the backing
// storage.Adapter must provide: one per (bucket, offset-within-bucket)
// pair.
func (c Config) StorageCapacity() uint64 {
	return c.TotalBuckets() * c.BucketSize
}

// PhysicalBlockSize returns the size, in bytes, of one encrypted slot given
// a codec whose ciphertext overhead (IV + checksum) is codecOverhead.
func (c Config) PhysicalBlockSize(codecOverhead int) int {
	return idHeaderSize + c.BlockSize + codecOverhead
}
