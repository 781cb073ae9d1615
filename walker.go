package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/monochromegane/go-gitignore"
)

// ignoreSet matches entry names and relative paths against glob patterns.
// A directory match prunes its whole subtree.
type ignoreSet struct {
	patterns []string
	warnings []string
}

func newIgnoreSet(patterns []string) *ignoreSet {
	s := &ignoreSet{}
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			s.warnings = append(s.warnings, fmt.Sprintf("invalid ignore pattern %q: %v", p, err))
			continue
		}
		s.patterns = append(s.patterns, p)
	}
	return s
}

func (s *ignoreSet) match(name, relPath string) bool {
	for _, p := range s.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
		if ok, _ := filepath.Match(p, relPath); ok {
			return true
		}
	}
	return false
}

type treeWalker struct {
	ignore   *ignoreSet
	matcher  gitignore.IgnoreMatcher // nil unless a root .gitignore is in play
	entries  []Entry
	warnings []string
}

// walkTree enumerates the tree under root in depth-first pre-order, siblings
// ordered directories-first then case-insensitive by name, so repeated runs
// over an unchanged tree produce identical sequences. The root itself is not
// part of the returned slice. Unreadable entries are skipped with a warning;
// only a missing or non-directory root is an error.
func walkTree(ctx context.Context, root string, ignore *ignoreSet, useGitignore bool) ([]Entry, []string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("codebase path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("path is not a directory: %s", root)
	}

	w := &treeWalker{ignore: ignore}
	w.warnings = append(w.warnings, ignore.warnings...)

	if useGitignore {
		gitIgnorePath := filepath.Join(root, ".gitignore")
		if _, err := os.Stat(gitIgnorePath); err == nil {
			matcher, err := gitignore.NewGitIgnore(gitIgnorePath)
			if err != nil {
				w.warnf("could not parse .gitignore file %s: %v", gitIgnorePath, err)
			} else {
				w.matcher = matcher
			}
		}
	}

	if err := w.walk(ctx, root, ""); err != nil {
		return nil, nil, err
	}
	return w.entries, w.warnings, nil
}

func (w *treeWalker) walk(ctx context.Context, dir, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirents, err := os.ReadDir(dir)
	if err != nil {
		w.warnf("skipping unreadable directory %s: %v", dir, err)
		return nil
	}
	sortDirEntries(dirents)

	for _, d := range dirents {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}

		abs := filepath.Join(dir, name)
		if w.ignore.match(name, childRel) {
			continue
		}
		if w.matcher != nil && w.matcher.Match(abs, d.IsDir()) {
			continue
		}

		info, err := d.Info()
		if err != nil {
			w.warnf("could not stat %s: %v", abs, err)
			continue
		}

		entry := Entry{
			AbsPath: abs,
			RelPath: childRel,
			Name:    name,
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			// Symlinks are reported, never followed.
			entry.Kind = KindSymlink
			if target, err := os.Readlink(abs); err == nil {
				entry.Target = target
			} else {
				w.warnf("could not read symlink %s: %v", abs, err)
			}
		case d.IsDir():
			entry.Kind = KindDirectory
		case d.Type().IsRegular():
			entry.Kind = KindFile
		default:
			w.warnf("skipping special file %s", abs)
			continue
		}

		w.entries = append(w.entries, entry)
		if entry.Kind == KindDirectory {
			if err := w.walk(ctx, abs, childRel); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *treeWalker) warnf(format string, args ...any) {
	w.warnings = append(w.warnings, fmt.Sprintf(format, args...))
}

// sortDirEntries orders siblings directories-first, then by case-insensitive
// name, with byte order as the tie-break.
func sortDirEntries(dirents []os.DirEntry) {
	sort.SliceStable(dirents, func(i, j int) bool {
		di, dj := dirents[i], dirents[j]
		if di.IsDir() != dj.IsDir() {
			return di.IsDir()
		}
		ni, nj := strings.ToLower(di.Name()), strings.ToLower(dj.Name())
		if ni != nj {
			return ni < nj
		}
		return di.Name() < dj.Name()
	})
}
