package analyzer

import "os"

// SetMapper replaces the memory-mapping function of a for testing.
func SetMapper(a *Analyzer, fn func(f *os.File, size int64) ([]byte, func() error, error)) {
	a.mapFile = fn
}
