// Package vcs defines the types exchanged with a version-control backend:
// change records between two snapshots and a two-sided content source.
package vcs

import "context"

// Status is the kind of change a path underwent between two snapshots.
type Status string

// Change statuses.
const (
	StatusAdded    Status = "added"
	StatusModified Status = "modified"
	StatusDeleted  Status = "deleted"
	StatusRenamed  Status = "renamed"
)

// Code returns the single-letter status used by git name-status output.
func (s Status) Code() string {
	switch s {
	case StatusAdded:
		return "A"
	case StatusModified:
		return "M"
	case StatusDeleted:
		return "D"
	case StatusRenamed:
		return "R"
	default:
		return "?"
	}
}

// Change is one changed path. OldPath is set only for renames.
type Change struct {
	Status     Status
	Path       string
	OldPath    string
	Similarity int
}

// BasePath is the path to read on the base side.
func (c Change) BasePath() string {
	if c.Status == StatusRenamed && c.OldPath != "" {
		return c.OldPath
	}

	return c.Path
}

// Side selects one of the two snapshots of a diff.
type Side int

// Snapshot sides.
const (
	Base Side = iota
	Head
)

func (s Side) String() string {
	if s == Base {
		return "base"
	}

	return "head"
}

// ContentSource returns file content from either side of a diff. found is
// false when the path does not exist on that side.
type ContentSource interface {
	Content(ctx context.Context, side Side, path string) (data []byte, found bool, err error)
}
