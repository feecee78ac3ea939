package pow

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"vulkan/chainhash"
	"vulkan/params"
)

func TestCompactToBigAndBack(t *testing.T) {
	cases := []uint32{0x1f00ffff, 0x1e0fffff, 0x1d00ffff, 0x03123456, 0x04123456}
	for _, bits := range cases {
		target := CompactToBig(bits)
		require.Equal(t, bits, BigToCompact(target), "round trip for 0x%08x", bits)
	}
}

func TestCompactToBigSign(t *testing.T) {
	positive := CompactToBig(0x04123456)
	require.Equal(t, 1, positive.Sign())

	negative := CompactToBig(0x04923456)
	require.Equal(t, -1, negative.Sign())
}

func TestHashToBigReadsHashAsLittleEndian(t *testing.T) {
	var h chainhash.Hash
	h[0] = 0x01
	require.Equal(t, big.NewInt(1), HashToBig(h))
}

func TestCheckProofOfWork(t *testing.T) {
	bits := params.MaxTargetBits
	target := CompactToBig(bits)

	var easy chainhash.Hash // all-zero hash, trivially <= any positive target
	require.True(t, CheckProofOfWork(easy, bits))

	hard := chainhash.Hash{}
	for i := range hard {
		hard[i] = 0xff
	}
	require.False(t, CheckProofOfWork(hard, bits))
	_ = target
}

func TestCheckProofOfWorkRejectsLooserThanMax(t *testing.T) {
	// One exponent step looser than the max permitted target.
	looseBits := params.MaxTargetBits + 0x01000000
	var anyHash chainhash.Hash
	require.False(t, CheckProofOfWork(anyHash, looseBits))
}

func TestWorkIncreasesAsTargetTightens(t *testing.T) {
	looseWork := Work(params.MaxTargetBits)
	tighterWork := Work(0x1d00ffff)
	require.Equal(t, -1, looseWork.Cmp(tighterWork))
}

func TestNextTargetClampsExtremeSpans(t *testing.T) {
	prevBits := uint32(0x1d00ffff)
	const expectedSpan = int64(params.DifficultyPeriod * params.TargetBlockTime)

	tooFast := NextTarget(prevBits, expectedSpan/100)
	clampedFast := NextTarget(prevBits, expectedSpan/4)
	require.Equal(t, clampedFast, tooFast)

	tooSlow := NextTarget(prevBits, expectedSpan*100)
	clampedSlow := NextTarget(prevBits, expectedSpan*4)
	require.Equal(t, clampedSlow, tooSlow)
}

func TestNextTargetUnchangedOnExpectedSpan(t *testing.T) {
	prevBits := uint32(0x1d00ffff)
	const expectedSpan = int64(params.DifficultyPeriod * params.TargetBlockTime)
	require.Equal(t, prevBits, NextTarget(prevBits, expectedSpan))
}

func TestNextTargetNeverLooserThanMax(t *testing.T) {
	got := NextTarget(params.MaxTargetBits, int64(params.DifficultyPeriod*params.TargetBlockTime*4))
	require.Equal(t, params.MaxTargetBits, got)
}
