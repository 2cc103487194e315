package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/locfang/pkg/languages"
)

// ErrNoRoots is returned when Walk is called without any root.
var ErrNoRoots = errors.New("scan: no roots given")

var vcsDirs = []string{".git", ".hg", ".svn"}

// WalkOptions filters the files collected by Walk. Zero sizes mean no limit.
type WalkOptions struct {
	Extensions     []string
	MinSize        int64
	MaxSize        int64
	SkipVendor     bool
	SkipEmpty      bool
	FollowSymlinks bool
}

// NormalizeExtensions lowercases extensions and strips leading dots and
// empty entries. Comma-separated items are split.
func NormalizeExtensions(exts []string) []string {
	var out []string

	for _, item := range exts {
		for ext := range strings.SplitSeq(item, ",") {
			ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			if ext != "" && !slices.Contains(out, ext) {
				out = append(out, ext)
			}
		}
	}

	return out
}

type walker struct {
	opts  WalkOptions
	exts  []string
	files []string
	// visited holds the resolved directories already walked when links are
	// followed.
	visited map[string]bool
}

// frame is one directory pass: dir is the path reported to callers, start
// is where the pass reads from, and resolved is start with links evaluated.
type frame struct {
	root     string
	dir      string
	start    string
	resolved string
}

// Walk collects the regular files below roots that pass opts. A root that
// is itself a file is included when it passes the filters; a root that links
// to a directory is walked. Unreadable
// subdirectories are skipped. With FollowSymlinks, linked directories are
// walked under the link's path and each resolved directory is entered once.
func Walk(ctx context.Context, roots []string, opts WalkOptions) ([]string, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}

	w := &walker{
		opts:    opts,
		exts:    NormalizeExtensions(opts.Extensions),
		visited: make(map[string]bool),
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if w.accept(root, info) {
				w.files = append(w.files, root)
			}

			continue
		}

		resolved, err := filepath.EvalSymlinks(root)
		if err != nil {
			resolved = root
		}

		if w.opts.FollowSymlinks {
			if w.visited[resolved] {
				continue
			}

			w.visited[resolved] = true
		}

		err = w.walk(ctx, frame{root: root, dir: root, start: resolved, resolved: resolved})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	return w.files, nil
}

func (w *walker) walk(ctx context.Context, f frame) error {
	return filepath.WalkDir(f.start, func(p string, entry fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(f.start, p)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", p, err)
		}

		path, resolved := f.dir, f.resolved
		if rel != "." {
			path, resolved = filepath.Join(f.dir, rel), filepath.Join(f.resolved, rel)
		}

		return w.visit(ctx, f, path, resolved, entry, walkErr)
	})
}

func (w *walker) visit(ctx context.Context, f frame, path, resolved string, entry fs.DirEntry, walkErr error) error {
	if walkErr != nil {
		if path != f.root && (errors.Is(walkErr, fs.ErrPermission) || errors.Is(walkErr, fs.ErrNotExist)) {
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		return walkErr
	}

	if entry.IsDir() {
		if path == f.dir {
			return nil
		}

		if w.skipDir(f.root, path) {
			return filepath.SkipDir
		}

		if w.opts.FollowSymlinks {
			if w.visited[resolved] {
				return filepath.SkipDir
			}

			w.visited[resolved] = true
		}

		return nil
	}

	if w.opts.SkipVendor && w.isVendor(f.root, path, false) {
		return nil
	}

	var (
		info fs.FileInfo
		err  error
	)

	if entry.Type()&fs.ModeSymlink != 0 {
		if !w.opts.FollowSymlinks {
			return nil
		}

		info, err = os.Stat(path)
		if err == nil && info.IsDir() {
			return w.follow(ctx, f.root, path)
		}
	} else {
		info, err = entry.Info()
	}

	if err != nil {
		// Vanished or dangling entries are not part of the tree.
		return nil //nolint:nilerr // skip unreadable entry.
	}

	if w.accept(path, info) {
		w.files = append(w.files, path)
	}

	return nil
}

// follow walks the directory behind link unless it was already entered.
func (w *walker) follow(ctx context.Context, root, link string) error {
	if w.skipDir(root, link) {
		return nil
	}

	resolved, err := filepath.EvalSymlinks(link)
	if err != nil || w.visited[resolved] {
		return nil //nolint:nilerr // a link that cannot be resolved is skipped.
	}

	w.visited[resolved] = true

	return w.walk(ctx, frame{root: root, dir: link, start: resolved, resolved: resolved})
}

func (w *walker) skipDir(root, path string) bool {
	if slices.Contains(vcsDirs, filepath.Base(path)) {
		return true
	}

	return w.opts.SkipVendor && w.isVendor(root, path, true)
}

func (w *walker) accept(path string, info fs.FileInfo) bool {
	if !info.Mode().IsRegular() {
		return false
	}

	size := info.Size()

	switch {
	case w.opts.SkipEmpty && size == 0:
		return false
	case w.opts.MinSize > 0 && size < w.opts.MinSize:
		return false
	case w.opts.MaxSize > 0 && size > w.opts.MaxSize:
		return false
	}

	if len(w.exts) > 0 && !slices.Contains(w.exts, languages.Extension(filepath.Base(path))) {
		return false
	}

	return true
}

func (w *walker) isVendor(root, path string, dir bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	rel = filepath.ToSlash(rel)
	if dir {
		rel += "/"
	}

	return enry.IsVendor(rel)
}
