// Package target implements the reciprocal target/difficulty arithmetic and
// the retarget formula described in spec.md §4.1. Targets are 32-byte
// big-endian unsigned integers; difficulty and target are related through
// the fixed constant maxTarget = 2^256 - 1, the same relation the chain
// family this pool serves (and the Ironfish-style pools it is modeled on)
// uses: target = maxTarget / difficulty.
package target

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// Difficulty is a scalar measure of mining work, reciprocal to Target.
type Difficulty uint64

// Target is a 32-byte big-endian unsigned integer: "digest meets target T"
// means the digest's numeric value is <= T, which (same fixed width) is
// equivalent to an unsigned lexicographic byte compare.
type Target [32]byte

var (
	// ErrZeroDifficulty is returned by TargetFromDifficulty for a difficulty
	// of zero, which has no corresponding target (division by zero).
	ErrZeroDifficulty = errors.New("target: zero difficulty")
	// ErrZeroTarget is returned by DifficultyFromTarget for an all-zero
	// target, which has no finite corresponding difficulty.
	ErrZeroTarget = errors.New("target: zero target")
)

// maxTarget is 2^256 - 1, the target at difficulty 1: the easiest possible
// target, against which every other difficulty's target is scaled down.
func maxTarget() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

// TargetFromDifficulty returns the canonical target for a positive
// difficulty: maxTarget / difficulty, truncated toward zero as the chain's
// integer division rule requires.
func TargetFromDifficulty(d Difficulty) (Target, error) {
	if d == 0 {
		return Target{}, ErrZeroDifficulty
	}
	q := new(uint256.Int).Div(maxTarget(), uint256.NewInt(uint64(d)))
	return Target(q.Bytes32()), nil
}

// DifficultyFromTarget is the inverse of TargetFromDifficulty, defined for
// every non-zero target: maxTarget / target, truncated toward zero and
// floored at 1 so a target above the midpoint still reports a live
// difficulty rather than zero.
func DifficultyFromTarget(t Target) (Difficulty, error) {
	tv := new(uint256.Int).SetBytes32(t[:])
	if tv.IsZero() {
		return 0, ErrZeroTarget
	}
	q := new(uint256.Int).Div(maxTarget(), tv)
	if q.IsZero() {
		return 1, nil
	}
	if !q.IsUint64() {
		return Difficulty(^uint64(0)), nil
	}
	return Difficulty(q.Uint64()), nil
}

// ParseTargetHex decodes a header's hex-encoded target field into a Target,
// the same 32-byte-fixed-width contract SerializeMineableHeader enforces
// for the target and graffiti fields.
func ParseTargetHex(s string) (Target, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Target{}, fmt.Errorf("target: decoding hex: %w", err)
	}
	if len(b) != 32 {
		return Target{}, fmt.Errorf("target: want 32 bytes, got %d", len(b))
	}
	var t Target
	copy(t[:], b)
	return t, nil
}

// Hex renders t as lowercase hex, the wire form a BlockTemplate header
// carries in its target field.
func (t Target) Hex() string { return hex.EncodeToString(t[:]) }

// MeetsTarget reports whether digest (a 32-byte big-endian unsigned
// integer) numerically meets t, i.e. digest <= t. Because both operands
// are fixed-width big-endian, an unsigned lexicographic byte compare is
// equivalent to the numeric one and avoids allocating big integers on the
// hot submission path.
func MeetsTarget(digest [32]byte, t Target) bool {
	for i := 0; i < 32; i++ {
		if digest[i] != t[i] {
			return digest[i] < t[i]
		}
	}
	return true
}

// Retarget recomputation parameters. targetBlockTime is the chain's desired
// spacing between blocks; the adjustment scales the previous difficulty by
// targetBlockTime/elapsed and clamps the single-step move to a factor of 4
// in either direction, the conventional guard against a single slow or fast
// block whipsawing the target. This shape is not pinned exactly by any
// retrieved source (see DESIGN.md); it follows the well-known family of
// exponential retarget rules the Ironfish-style chain this spec is modeled
// on uses.
const (
	targetBlockTime   = 15 * time.Second
	maxAdjustFactor   = 4
	minRetargetAmount = 1
)

// Retarget computes the new difficulty from the elapsed time between now
// and prevTime, given the difficulty the previous block was mined at. It is
// a pure function of its three inputs: no state is read or mutated.
func Retarget(now, prevTime time.Time, prevDifficulty Difficulty) Difficulty {
	if prevDifficulty == 0 {
		prevDifficulty = minRetargetAmount
	}

	elapsed := now.Sub(prevTime)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}

	// newDifficulty = prevDifficulty * targetBlockTime / elapsed, computed
	// in uint256 space to avoid floating point over a potentially large
	// difficulty.
	prev := uint256.NewInt(uint64(prevDifficulty))
	scaled := new(uint256.Int).Mul(prev, uint256.NewInt(uint64(targetBlockTime)))
	newDiff := new(uint256.Int).Div(scaled, uint256.NewInt(uint64(elapsed)))

	lowerBound := prevDifficulty / maxAdjustFactor
	if lowerBound < minRetargetAmount {
		lowerBound = minRetargetAmount
	}
	upperBound := prevDifficulty * maxAdjustFactor

	if !newDiff.IsUint64() {
		return upperBound
	}
	clamped := Difficulty(newDiff.Uint64())
	switch {
	case clamped < lowerBound:
		return lowerBound
	case clamped > upperBound:
		return upperBound
	case clamped == 0:
		return minRetargetAmount
	default:
		return clamped
	}
}
