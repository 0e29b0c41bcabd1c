// Package timing implements the TAI-nanosecond <-> grain/sample index
// arithmetic described by the flow runtime: converting a wall-clock
// timestamp into the index of the grain or sample current at that time,
// and back.
package timing

import (
	"math/big"
	"time"

	"github.com/mlefebvre1/mxl/internal/rational"
)

// UndefinedIndex is the sentinel returned when an index cannot be
// computed (zero timestamp, or an invalid rate).
const UndefinedIndex uint64 = ^uint64(0)

const nsPerSecond = uint64(1_000_000_000)

// Now returns the current time as nanoseconds since the TAI epoch.
//
// The host clock is treated as a TAI proxy: Go's runtime clock does not
// expose leap-second bookkeeping, so this is the same approximation every
// practical implementation of this kind of local, same-host media
// exchange relies on (no leap second has ever fallen inside a live
// production's uptime long enough to matter at grain/sample granularity).
func Now() uint64 {
	return uint64(time.Now().UnixNano())
}

// TimestampToIndex computes floor(t * rate.Num / (rate.Den * 1e9)),
// returning UndefinedIndex if t is zero or rate is invalid.
func TimestampToIndex(rate rational.Rate, t uint64) uint64 {
	if t == 0 || !rate.Valid() {
		return UndefinedIndex
	}
	num := new(big.Int).SetUint64(t)
	num.Mul(num, new(big.Int).SetUint64(rate.Num))

	den := new(big.Int).SetUint64(rate.Den)
	den.Mul(den, new(big.Int).SetUint64(nsPerSecond))

	num.Div(num, den) // big.Int.Div truncates toward zero; operands are non-negative, so this is floor.
	return num.Uint64()
}

// IndexToTimestamp computes ceil(i * rate.Den * 1e9 / rate.Num), the
// nanosecond boundary at which index i first becomes current.
func IndexToTimestamp(rate rational.Rate, i uint64) uint64 {
	if !rate.Valid() {
		return 0
	}
	num := new(big.Int).SetUint64(i)
	num.Mul(num, new(big.Int).SetUint64(rate.Den))
	num.Mul(num, new(big.Int).SetUint64(nsPerSecond))

	den := new(big.Int).SetUint64(rate.Num)

	quo, rem := new(big.Int), new(big.Int)
	quo.QuoRem(num, den, rem)
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo.Uint64()
}

// CurrentIndex returns the index current at Now() for the given rate.
func CurrentIndex(rate rational.Rate) uint64 {
	return TimestampToIndex(rate, Now())
}

// NsUntilIndex returns how many nanoseconds remain until index i ends,
// i.e. until index i+1 becomes current, or 0 if that boundary has passed.
func NsUntilIndex(i uint64, rate rational.Rate) uint64 {
	boundary := IndexToTimestamp(rate, i+1)
	now := Now()
	if boundary <= now {
		return 0
	}
	return boundary - now
}

// SleepForNs blocks the calling goroutine for at least d nanoseconds.
func SleepForNs(d uint64) {
	time.Sleep(time.Duration(d))
}

// CountInDuration computes ceil(durationNs * rate.Num / (rate.Den * 1e9)),
// the number of grains or samples needed to cover at least durationNs of
// media at rate. Used to size a ring buffer from a history_duration
// option.
func CountInDuration(rate rational.Rate, durationNs uint64) uint64 {
	if !rate.Valid() {
		return 0
	}
	num := new(big.Int).SetUint64(durationNs)
	num.Mul(num, new(big.Int).SetUint64(rate.Num))

	den := new(big.Int).SetUint64(rate.Den)
	den.Mul(den, new(big.Int).SetUint64(nsPerSecond))

	quo, rem := new(big.Int), new(big.Int)
	quo.QuoRem(num, den, rem)
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo.Uint64()
}
