// Package safeconv provides integer conversions that never wrap silently.
package safeconv

import (
	"errors"
	"fmt"
	"math"
)

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("safeconv: integer overflow")

// Int64ToInt converts v to int, failing when it does not fit.
func Int64ToInt(v int64) (int, error) {
	if v > int64(MaxInt) || v < -int64(MaxInt)-1 {
		return 0, fmt.Errorf("%w: %d does not fit in int", ErrOverflow, v)
	}

	return int(v), nil
}

// SaturateUint64ToInt64 converts v to int64, clamping to math.MaxInt64.
func SaturateUint64ToInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v)
}

// ClampIntToUint16 converts v to uint16, clamping to [0, math.MaxUint16].
func ClampIntToUint16(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(v)
	}
}
