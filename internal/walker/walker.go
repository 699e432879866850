// Package walker is the default repository walker of spec §6: an
// external collaborator that yields (repo-id, commit-hash, path,
// blob-bytes, is-binary) tuples. The core only consumes the stream
// through the Walker interface; this package supplies a concrete
// filesystem-backed implementation, grounded in the teacher's
// internal/indexing/watcher.go glob/ignore handling.
package walker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/sourcesim/internal/config"
)

// File is one candidate document yielded by a Walker, before the
// is-binary filter the index writer applies.
type File struct {
	Repo     string
	Commit   string
	Path     string
	Content  []byte
	IsBinary bool
}

// Walker yields files one at a time via Walk, per spec §6. fn returning
// an error stops the walk and the error propagates to the caller.
type Walker interface {
	Walk(ctx context.Context, fn func(File) error) error
}

// FSWalker walks a single filesystem tree rooted at Root, matching
// Include and skipping Exclude glob patterns (doublestar syntax:
// "**/*.go"), the way the teacher's watcher filters paths before
// dispatch.
type FSWalker struct {
	Root    string
	Repo    string
	Commit  string
	Include []string
	Exclude []string
	MaxSize int64
}

// New builds an FSWalker from cfg, defaulting Repo to the base name of
// cfg.Project.Root and Commit to "working-tree" (the walker has no git
// integration in this scope — a real deployment's walker would resolve
// the actual commit hash, per spec §1's "fetching repositories... is
// treated as an interface only").
func New(cfg *config.Config) *FSWalker {
	return &FSWalker{
		Root:    cfg.Project.Root,
		Repo:    filepath.Base(cfg.Project.Root),
		Commit:  "working-tree",
		Include: cfg.Walk.Include,
		Exclude: cfg.Walk.Exclude,
		MaxSize: cfg.Walk.MaxFileSize,
	}
}

func (w *FSWalker) Walk(ctx context.Context, fn func(File) error) error {
	return filepath.WalkDir(w.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(w.Root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if !w.matches(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if w.MaxSize > 0 && info.Size() > w.MaxSize {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		return fn(File{
			Repo:     w.Repo,
			Commit:   w.Commit,
			Path:     rel,
			Content:  content,
			IsBinary: isBinary(content),
		})
	})
}

func (w *FSWalker) matches(rel string) bool {
	included := len(w.Include) == 0
	for _, pattern := range w.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, pattern := range w.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	return true
}

// isBinary applies the same crude heuristic as the teacher's file-type
// detection: the presence of a NUL byte within the first 8KiB.
func isBinary(content []byte) bool {
	probe := content
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	return bytes.IndexByte(probe, 0) >= 0
}
