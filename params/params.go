// Package params holds the protocol constants of the Vulkan core. They are
// compiled in rather than read from configuration because changing any of
// them changes consensus.
package params

const (
	// HashSize is the length in bytes of a SHA256d digest.
	HashSize = 32

	// AddressSize is the length in bytes of a versioned, checksummed address.
	AddressSize = 25

	// MaxFutureBlockTime is how far into the future a block timestamp may
	// sit before it is rejected, in seconds.
	MaxFutureBlockTime = 7200

	// MaxBlockSize bounds the serialized size of a block header plus its
	// transactions.
	MaxBlockSize = 1 << 20 // 1 MiB

	// TargetBlockTime is the desired spacing between blocks, in seconds.
	TargetBlockTime = 60

	// DifficultyPeriod is the number of blocks between retargets.
	DifficultyPeriod = 2016

	// BlockVersion is the only block version this core emits or accepts.
	BlockVersion = 1

	// BaseEmission is the coinbase subsidy, in atomic units, paid until the
	// first halving (the first HalvingInterval blocks).
	BaseEmission uint64 = 50 * 1e8

	// HalvingInterval is the number of blocks between emission halvings.
	HalvingInterval = DifficultyPeriod * 50

	// CoinbaseMaturity is the number of blocks a coinbase output must be
	// buried under before it may be spent.
	CoinbaseMaturity = 100

	// MaxOrphans bounds the chain manager's orphan-block buffer.
	MaxOrphans = 100

	// MempoolMaxBytes bounds the total serialized size of pooled transactions.
	MempoolMaxBytes = 32 << 20 // 32 MiB
)

// MaxTargetBits is the compact encoding of the easiest allowed target. It
// must be no tighter than the genesis block's own difficulty, or genesis
// itself (and anything mined at that difficulty) could never satisfy
// proof-of-work.
const MaxTargetBits uint32 = 0x1f00ffff
