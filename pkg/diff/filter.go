package diff

import (
	"path"
	"slices"

	"github.com/Sumatoshi-tech/locfang/pkg/languages"
	"github.com/Sumatoshi-tech/locfang/pkg/scan"
	"github.com/Sumatoshi-tech/locfang/pkg/vcs"
)

// FilterExtensions keeps the changes whose path, or old path for renames,
// has one of exts. An empty exts keeps everything.
func FilterExtensions(changes []vcs.Change, exts []string) []vcs.Change {
	exts = scan.NormalizeExtensions(exts)
	if len(exts) == 0 {
		return changes
	}

	match := func(p string) bool {
		return p != "" && slices.Contains(exts, languages.Extension(path.Base(p)))
	}

	out := make([]vcs.Change, 0, len(changes))

	for _, c := range changes {
		if match(c.Path) || (c.Status == vcs.StatusRenamed && match(c.OldPath)) {
			out = append(out, c)
		}
	}

	return out
}
