//go:build unix

package analyzer

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/Sumatoshi-tech/locfang/pkg/safeconv"
)

var errMapSize = errors.New("analyzer: file size not mappable")

func mmapFile(f *os.File, size int64) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, errMapSize
	}

	length, err := safeconv.Int64ToInt(size)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errMapSize, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, length, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap: %w", err)
	}

	return data, func() error { return unix.Munmap(data) }, nil
}
