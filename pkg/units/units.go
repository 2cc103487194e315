// Package units provides binary size unit multipliers (1024-based) and
// human-readable size parsing.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/locfang/pkg/safeconv"
)

// Binary size multipliers.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// ErrInvalidSize is returned by ParseSize for malformed input.
var ErrInvalidSize = errors.New("units: invalid size")

// ParseSize parses sizes such as "8MiB", "512 KB" or "1048576". An empty
// string or "0" is zero.
func ParseSize(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == "0" {
		return 0, nil
	}

	parsed, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	return safeconv.SaturateUint64ToInt64(parsed), nil
}

// FormatSize renders n bytes with IEC units, e.g. "8.0 MiB".
func FormatSize(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}

	return humanize.IBytes(uint64(n))
}
