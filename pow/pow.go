// Package pow implements the compact-target encoding and difficulty
// retargeting a miner's hashing loop checks proof-of-work against:
// CompactToBig(header.Bits) and HashToBig(hash) follow the standard
// compact-target layout this whole lineage of coins shares
// (target = mantissa * 256^(exponent-3)).
package pow

import (
	"math/big"

	"vulkan/chainhash"
	"vulkan/params"
)

// oneLsh256 is 2^256, used both to bound a valid target and to compute a
// chain's cumulative work.
var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// MaxTarget is the loosest target this core will ever accept, derived from
// params.MaxTargetBits.
func MaxTarget() *big.Int {
	return CompactToBig(params.MaxTargetBits)
}

// CompactToBig decodes a compact 32-bit target (bits) into a 256-bit
// integer: the high byte is an exponent e, the low three bytes are a
// 24-bit mantissa m, and target = m * 256^(e-3).
func CompactToBig(bits uint32) *big.Int {
	mantissa := bits & 0x007fffff
	exponent := bits >> 24
	isNegative := bits&0x00800000 != 0

	var target *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		target = big.NewInt(int64(mantissa))
	} else {
		target = big.NewInt(int64(mantissa))
		target.Lsh(target, uint(8*(exponent-3)))
	}
	if isNegative {
		target.Neg(target)
	}
	return target
}

// BigToCompact encodes a 256-bit target into its compact 32-bit form. It
// is the inverse of CompactToBig, used when persisting a freshly computed
// retarget.
func BigToCompact(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(target.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(target.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(target)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	// The mantissa's high bit is reserved as a sign bit; if encoding it
	// verbatim would set that bit, shift everything one byte up.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if target.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// HashToBig interprets a hash's raw bytes as a little-endian 256-bit
// integer (h[31] is the most significant byte), which is the big-endian
// value of the reversed hex form chainhash.Hash.String renders. This is the
// form used to compare against a target.
func HashToBig(h chainhash.Hash) *big.Int {
	reversed := make([]byte, chainhash.Size)
	for i := 0; i < chainhash.Size; i++ {
		reversed[i] = h[chainhash.Size-1-i]
	}
	return new(big.Int).SetBytes(reversed)
}

// CheckProofOfWork reports whether hash satisfies the target encoded by
// bits: hash, read as a 256-bit integer, must be less than or equal to the
// target, and the target itself must not exceed params.MaxTargetBits.
func CheckProofOfWork(hash chainhash.Hash, bits uint32) bool {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return false
	}
	if target.Cmp(MaxTarget()) > 0 {
		return false
	}
	return HashToBig(hash).Cmp(target) <= 0
}

// Work returns a block's contribution to cumulative chain work:
// 2^256 / (target+1).
func Work(bits uint32) *big.Int {
	target := CompactToBig(bits)
	denom := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(oneLsh256, denom)
}

// NextTarget computes the retargeted bits for the period that just ended,
// given the previous bits and the actual wall-clock span (in seconds) the
// period took: scale by actual/expected span, clamp to [1/4, 4] of the
// previous target, never looser than MaxTarget.
func NextTarget(prevBits uint32, actualSpanSeconds int64) uint32 {
	const expectedSpan = int64(params.DifficultyPeriod * params.TargetBlockTime)

	actual := actualSpanSeconds
	if actual < expectedSpan/4 {
		actual = expectedSpan / 4
	}
	if actual > expectedSpan*4 {
		actual = expectedSpan * 4
	}

	prevTarget := CompactToBig(prevBits)
	newTarget := new(big.Int).Mul(prevTarget, big.NewInt(actual))
	newTarget.Div(newTarget, big.NewInt(expectedSpan))

	if newTarget.Cmp(MaxTarget()) > 0 {
		newTarget = MaxTarget()
	}
	return BigToCompact(newTarget)
}
