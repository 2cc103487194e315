//go:build !unix

package analyzer

import (
	"errors"
	"os"
)

var errMapUnsupported = errors.New("analyzer: mmap not supported on this platform")

func mmapFile(_ *os.File, _ int64) ([]byte, func() error, error) {
	return nil, nil, errMapUnsupported
}
