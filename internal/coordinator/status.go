package coordinator

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/ironforge-pool/poolcoordinator/internal/target"
)

// hashRatePrecision is the fixed-point scaling factor applied to a
// fractional share rate before multiplying by a 256-bit difficulty, so the
// division at the end preserves six fractional digits without losing
// precision against the 256-bit operand.
const hashRatePrecision = 1_000_000

// estimateHashRate converts a shares/second rate into a hashes/second
// estimate: rate * difficulty, computed in fixed-point to avoid precision
// loss when difficulty does not fit a float64 exactly.
func estimateHashRate(shareRate float64, difficulty target.Difficulty) float64 {
	if shareRate <= 0 {
		return 0
	}
	scaled := uint256.NewInt(uint64(shareRate * hashRatePrecision))
	scaled.Mul(scaled, uint256.NewInt(uint64(difficulty)))
	// divide back out of fixed point; scaled is small enough in practice
	// (shareRate * 1e6 * difficulty) to stay well under 2^256, but we stay
	// in uint256 arithmetic throughout rather than dropping to float64
	// until the final division.
	result := new(uint256.Int).Div(scaled, uint256.NewInt(hashRatePrecision))
	f, _ := new(big.Float).SetInt(result.ToBig()).Float64()
	return f
}

// StatusMessage is the snapshot returned by getStatus and pushed to the
// status timer's webhook notification.
type StatusMessage struct {
	Name              string  `json:"name"`
	HashRate          float64 `json:"hashRate"`
	Miners            int     `json:"miners"`
	SharesPending     int64   `json:"sharesPending"`
	BanCount          int     `json:"banCount"`
	AddressHashRate   float64 `json:"addressHashRate,omitempty"`
	AddressShares     int64   `json:"addressSharesPending,omitempty"`
	AddressMinerCount int     `json:"addressMinerCount,omitempty"`
}
