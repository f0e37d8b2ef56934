package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"

	"github.com/ClaudioK5/Synchronization-Folder/internal/actionlog"
	"github.com/ClaudioK5/Synchronization-Folder/internal/config"
	"github.com/ClaudioK5/Synchronization-Folder/internal/fingerprint"
	"github.com/ClaudioK5/Synchronization-Folder/internal/tree"
)

// ActionLogger records one line per change applied to the replica
type ActionLogger interface {
	Record(msg string) error
}

// Engine makes the replica tree converge to the source tree
type Engine struct {
	cfg     *config.Config
	source  billy.Filesystem
	replica billy.Filesystem
	actions ActionLogger
	logger  *slog.Logger
	exclude *tree.Matcher
}

// NewEngine creates a new sync engine. Paths handed to source and replica
// are relative positions inside each tree.
func NewEngine(cfg *config.Config, source, replica billy.Filesystem, actions ActionLogger, logger *slog.Logger) (*Engine, error) {
	exclude, err := tree.NewMatcher(cfg.Sync.Exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to compile exclude patterns: %w", err)
	}

	return &Engine{
		cfg:     cfg,
		source:  source,
		replica: replica,
		actions: actions,
		logger:  logger,
		exclude: exclude,
	}, nil
}

// pass visits one directory and returns the subdirectories to visit next
type pass func(ctx context.Context, c *cycle, dir string) ([]string, error)

// Cycle runs the add, delete and update passes once, in that order.
// Failures on single entries are recorded in the report and never stop the
// cycle; the returned error is non-nil only when ctx is cancelled.
func (e *Engine) Cycle(ctx context.Context) (*Report, error) {
	start := time.Now()
	c := &cycle{
		engine: e,
		report: &Report{ID: uuid.NewString()},
	}
	c.logger = e.logger.With("cycle", c.report.ID)

	c.logger.Debug("starting cycle",
		"source", e.cfg.Paths.Source,
		"replica", e.cfg.Paths.Replica,
		"exclude", e.exclude.Patterns())

	// The replica root itself is recreated if it went missing between cycles
	if err := e.replica.MkdirAll(".", 0755); err != nil {
		c.fail("create", tree.Root, err)
	}

	passes := []struct {
		name string
		fn   pass
	}{
		{"add", e.addDir},
		{"delete", e.deleteDir},
		{"update", e.updateDir},
	}

	for _, p := range passes {
		if err := walk(ctx, c, p.fn); err != nil {
			c.report.Duration = time.Since(start)
			c.logger.Warn("cycle interrupted", "pass", p.name, "error", err)
			return c.report, err
		}
	}

	c.report.Duration = time.Since(start)
	c.logger.Info("cycle complete",
		"copied", c.report.Copied,
		"updated", c.report.Updated,
		"deleted", c.report.Deleted,
		"failed", c.report.Failed,
		"transferred", humanize.Bytes(uint64(c.report.BytesCopied)),
		"duration", c.report.Duration)

	return c.report, nil
}

// walk drives a pass over the whole tree with an explicit stack of
// relative directory positions, depth first, in name order.
func walk(ctx context.Context, c *cycle, visit pass) error {
	stack := []string{tree.Root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		next, err := visit(ctx, c, dir)
		if err != nil {
			return err
		}
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return nil
}

// addDir creates in the replica every entry of dir that only the source has
func (e *Engine) addDir(ctx context.Context, c *cycle, dir string) ([]string, error) {
	srcEntries, err := tree.List(e.source, dir)
	if err != nil {
		c.fail("read", dir, err)
		return nil, nil
	}
	repEntries, err := tree.List(e.replica, dir)
	if err != nil {
		c.fail("read", dir, err)
		return nil, nil
	}
	existing := tree.Index(repEntries)

	var next []string
	for _, src := range srcEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.skip(src) {
			continue
		}

		dst, ok := existing[src.Name]
		if ok && dst.Kind != src.Kind {
			// Delete-then-add: the replica entry is replaced in the source's kind
			if err := e.remove(dst); err != nil {
				c.fail("delete", dst.Path, err)
				continue
			}
			c.deleted(dst)
			ok = false
		}

		if ok {
			if src.Kind == tree.Dir {
				next = append(next, src.Path)
			}
			continue
		}

		switch src.Kind {
		case tree.File:
			n, err := e.copyFile(src)
			if err != nil {
				c.fail("copy", src.Path, err)
				continue
			}
			c.copied(src, n)
		case tree.Dir:
			if err := e.replica.MkdirAll(src.Path, 0755); err != nil {
				c.fail("copy", src.Path, err)
				continue
			}
			c.copied(src, 0)
			next = append(next, src.Path)
		}
	}
	return next, nil
}

// deleteDir removes from the replica every entry of dir the source lacks
func (e *Engine) deleteDir(ctx context.Context, c *cycle, dir string) ([]string, error) {
	repEntries, err := tree.List(e.replica, dir)
	if err != nil {
		c.fail("read", dir, err)
		return nil, nil
	}
	// Never delete on the strength of a source listing that failed
	srcEntries, err := tree.List(e.source, dir)
	if err != nil {
		c.fail("read", dir, err)
		return nil, nil
	}
	wanted := tree.Index(srcEntries)

	var next []string
	for _, dst := range repEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.exclude.Excluded(dst.Path) {
			continue
		}

		src, ok := wanted[dst.Name]
		switch {
		case !ok:
			if err := e.remove(dst); err != nil {
				c.fail("delete", dst.Path, err)
				continue
			}
			c.deleted(dst)
		case src.Kind == tree.Other:
			// left as is
		case src.Kind != dst.Kind:
			c.fail("delete", dst.Path, fmt.Errorf("%w: source has a %s, replica has a %s", ErrKindMismatch, src.Kind, dst.Kind))
		case dst.Kind == tree.Dir:
			next = append(next, dst.Path)
		}
	}
	return next, nil
}

// updateDir overwrites replica files of dir whose content differs from the source
func (e *Engine) updateDir(ctx context.Context, c *cycle, dir string) ([]string, error) {
	srcEntries, err := tree.List(e.source, dir)
	if err != nil {
		c.fail("read", dir, err)
		return nil, nil
	}

	var next []string
	for _, src := range srcEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.skip(src) {
			continue
		}

		switch src.Kind {
		case tree.Dir:
			next = append(next, src.Path)
		case tree.File:
			changed, err := e.changed(src)
			if err != nil {
				c.fail("compare", src.Path, err)
				continue
			}
			if !changed {
				continue
			}
			n, err := e.copyFile(src)
			if err != nil {
				c.fail("update", src.Path, err)
				continue
			}
			c.updated(src, n)
		}
	}
	return next, nil
}

// skip reports whether a source entry is left out of synchronization
func (e *Engine) skip(src tree.Entry) bool {
	if src.Kind == tree.Other {
		e.logger.Debug("skipping unsupported entry", "path", src.Path, "mode", src.Mode.String())
		return true
	}
	return e.exclude.Excluded(src.Path)
}

// changed reports whether the replica copy of src differs in content.
// The size pre-filter only short-circuits when the answer is already known;
// equal sizes always fall through to fingerprinting.
func (e *Engine) changed(src tree.Entry) (bool, error) {
	info, err := e.replica.Lstat(src.Path)
	if err != nil {
		return false, err
	}
	if kind := tree.KindOf(info.Mode()); kind != tree.File {
		return false, fmt.Errorf("%w: source has a file, replica has a %s", ErrKindMismatch, kind)
	}

	if e.cfg.Sync.Compare == config.CompareSize && info.Size() != src.Size {
		return true, nil
	}

	srcSum, err := fingerprint.File(e.source, src.Path)
	if err != nil {
		return false, err
	}
	dstSum, err := fingerprint.File(e.replica, src.Path)
	if err != nil {
		return false, err
	}
	if srcSum == dstSum {
		return false, nil
	}
	e.logger.Debug("content differs",
		"path", src.Path,
		"source_sum", srcSum.String(),
		"replica_sum", dstSum.String())
	return true, nil
}

// chmoder and chtimer are implemented by filesystems that can carry file
// metadata over to the replica
type chmoder interface {
	Chmod(name string, mode os.FileMode) error
}

type chtimer interface {
	Chtimes(name string, atime, mtime time.Time) error
}

// copyFile writes the content, mode and modification time of src to the
// same relative position in the replica, returning the bytes copied.
func (e *Engine) copyFile(src tree.Entry) (int64, error) {
	in, err := e.source.Open(src.Path)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := e.openForWrite(src)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	if err := out.Close(); err != nil {
		return n, err
	}

	if ch, ok := e.replica.(chmoder); ok {
		if err := ch.Chmod(src.Path, src.Mode.Perm()); err != nil {
			return n, err
		}
	}
	if ct, ok := e.replica.(chtimer); ok {
		if err := ct.Chtimes(src.Path, src.ModTime, src.ModTime); err != nil {
			return n, err
		}
	}
	return n, nil
}

// openForWrite truncates or creates the replica file. A read-only copy left
// by an earlier cycle is made writable first.
func (e *Engine) openForWrite(src tree.Entry) (billy.File, error) {
	const flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC

	out, err := e.replica.OpenFile(src.Path, flags, src.Mode.Perm())
	if err == nil || !errors.Is(err, fs.ErrPermission) {
		return out, err
	}

	ch, ok := e.replica.(chmoder)
	if !ok {
		return nil, err
	}
	if chErr := ch.Chmod(src.Path, 0600); chErr != nil {
		return nil, err
	}
	return e.replica.OpenFile(src.Path, flags, src.Mode.Perm())
}

// remove deletes a replica entry, including everything below a directory
func (e *Engine) remove(entry tree.Entry) error {
	if entry.Kind == tree.Dir {
		return util.RemoveAll(e.replica, entry.Path)
	}
	return e.replica.Remove(entry.Path)
}

// cycle carries the state of one run of the three passes
type cycle struct {
	engine *Engine
	report *Report
	logger *slog.Logger
}

func (c *cycle) copied(entry tree.Entry, n int64) {
	c.report.Copied++
	c.report.BytesCopied += n
	c.logger.Debug("copied", "path", entry.Path, "kind", entry.Kind.String(), "bytes", n)
	c.record(actionlog.Copied(logKind(entry.Kind), entry.Path, c.engine.cfg.Paths.Source, c.engine.cfg.Paths.Replica))
}

func (c *cycle) updated(entry tree.Entry, n int64) {
	c.report.Updated++
	c.report.BytesCopied += n
	c.logger.Debug("updated", "path", entry.Path, "bytes", n)
	c.record(actionlog.Updated(logKind(entry.Kind), entry.Path, c.engine.cfg.Paths.Replica))
}

func (c *cycle) deleted(entry tree.Entry) {
	c.report.Deleted++
	c.logger.Debug("deleted", "path", entry.Path, "kind", entry.Kind.String())
	c.record(actionlog.Deleted(logKind(entry.Kind), entry.Path, c.engine.cfg.Paths.Replica))
}

// fail records a failure on one entry; the pass carries on with its siblings
func (c *cycle) fail(op, path string, err error) {
	entryErr := &EntryError{Op: op, Path: displayPath(path), Err: err}
	c.report.Failed++
	c.report.Errors = append(c.report.Errors, entryErr)
	c.logger.Warn("entry failed", "op", op, "path", entryErr.Path, "error", err)
	c.record(actionlog.Failed(op, entryErr.Path, err))
}

func (c *cycle) record(msg string) {
	if c.engine.actions == nil {
		return
	}
	if err := c.engine.actions.Record(msg); err != nil {
		c.logger.Error("failed to write action log", "error", err)
	}
}

// logKind maps an entry kind onto the two kinds named in the action log
func logKind(k tree.Kind) string {
	if k == tree.Dir {
		return tree.Dir.String()
	}
	return tree.File.String()
}

func displayPath(rel string) string {
	if rel == tree.Root {
		return "."
	}
	return rel
}

// NewOSEngine creates an engine over the on-disk source and replica
// directories named in cfg.
func NewOSEngine(cfg *config.Config, actions ActionLogger, logger *slog.Logger) (*Engine, error) {
	return NewEngine(cfg, tree.NewOS(cfg.Paths.Source), tree.NewOS(cfg.Paths.Replica), actions, logger)
}
