package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxFileSize is the content capture size ceiling: 10 MiB.
const DefaultMaxFileSize = 10 * 1024 * 1024

// DefaultIgnorePatterns excludes version-control and cache directories and
// other noise. Hidden entries are otherwise walked like anything else.
var DefaultIgnorePatterns = []string{
	"*.pyc", "__pycache__", ".git", ".svn", ".hg",
	"node_modules", ".DS_Store", "*.log", "*.tmp",
	".venv", "venv", ".env", ".idea", ".vscode",
}

// Config is the resolved configuration for one archiver. The zero value is
// not useful; start from DefaultConfig.
type Config struct {
	// IgnorePatterns are glob patterns matched against entry names and
	// relative paths. A directory match prunes its subtree.
	IgnorePatterns []string
	// MaxFileSize is the content capture ceiling in bytes. Files above it
	// keep their metadata but have content omitted.
	MaxFileSize int64
	// IncludeBinary embeds binary content base64-encoded instead of
	// omitting it.
	IncludeBinary bool
	// UseGitignore additionally respects a .gitignore at the root.
	UseGitignore bool
	// Workers bounds the classify/read pool. 0 means NumCPU.
	Workers int
	// Tokenizer, when set, adds per-file token counts to the document.
	Tokenizer Tokenizer
	// Now supplies the generation timestamp. Injectable so identical runs
	// over an unchanged tree can produce byte-identical archives.
	Now func() time.Time
}

// DefaultConfig returns the engine defaults, usable as-is: callers may read
// Now before (or without) handing the config to NewArchiver.
func DefaultConfig() Config {
	return Config{
		IgnorePatterns: append([]string(nil), DefaultIgnorePatterns...),
		MaxFileSize:    DefaultMaxFileSize,
		UseGitignore:   true,
		Now:            time.Now,
	}
}

// Archiver converts a directory tree into an archive Document. It is a value
// constructed once per configuration; Archive may be called for several
// roots.
type Archiver struct {
	cfg Config
}

func NewArchiver(cfg Config) *Archiver {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Archiver{cfg: cfg}
}

// fileResult is the per-entry output of the parallel stage, re-sequenced into
// traversal order before the aggregator and builder see it.
type fileResult struct {
	cls     Classification
	capture ContentCapture
	tokens  int
	warning string
}

// Archive walks root and materializes the archive document. The source tree
// is only ever read. Input errors (missing root, root not a directory) abort
// the run; everything else degrades to a per-entry warning on the document.
func (a *Archiver) Archive(ctx context.Context, root string) (*Document, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root path: %w", err)
	}

	entries, warnings, err := walkTree(ctx, absRoot, newIgnoreSet(a.cfg.IgnorePatterns), a.cfg.UseGitignore)
	if err != nil {
		return nil, err
	}

	// Classification and content reading are independent per entry, so they
	// fan out over a bounded pool. Results land in an index-addressed slice,
	// which restores traversal order for the single-writer aggregation and
	// build pass below.
	results := make([]fileResult, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, entry := range entries {
		if entry.Kind != KindFile {
			continue
		}
		i, entry := i, entry
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.processFile(entry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := newAggregator()
	builder := newDocumentBuilder(filepath.Base(absRoot), absRoot)
	for i, entry := range entries {
		res := results[i]
		if res.warning != "" {
			warnings = append(warnings, res.warning)
		}
		agg.record(entry, res.cls, res.tokens)
		builder.add(entry, res)
	}

	return builder.finish(agg.finalize(), a.cfg.Now(), warnings), nil
}

// ArchiveToFile archives root and writes the document atomically to outPath.
// Nothing is written on error or cancellation. Returns the written path.
func (a *Archiver) ArchiveToFile(ctx context.Context, root, outPath string) (string, error) {
	doc, err := a.Archive(ctx, root)
	if err != nil {
		return "", err
	}
	data, err := doc.Bytes()
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(outPath, data); err != nil {
		return "", err
	}
	return outPath, nil
}

// processFile classifies one file and captures its content. The size ceiling
// is enforced from the stat size before any read, so oversized files cost at
// most a sniff.
func (a *Archiver) processFile(e Entry) fileResult {
	if e.Size > a.cfg.MaxFileSize {
		sniff := readSniff(e.AbsPath)
		return fileResult{
			cls:     classify(e.Name, sniff),
			capture: ContentCapture{Kind: CaptureOmitted, Reason: tooLargeReason(e.Size)},
		}
	}

	data, err := os.ReadFile(e.AbsPath)
	if err != nil {
		return fileResult{
			cls:     classify(e.Name, nil),
			capture: ContentCapture{Kind: CaptureOmitted, Reason: reasonUnreadable},
			warning: fmt.Sprintf("could not read %s: %v", e.AbsPath, err),
		}
	}

	cls := classify(e.Name, data)
	res := fileResult{
		cls:     cls,
		capture: captureContent(data, cls, a.cfg.IncludeBinary),
	}
	if a.cfg.Tokenizer != nil && res.capture.Kind == CaptureText {
		res.tokens = a.cfg.Tokenizer.CountTokens(res.capture.Text)
	}
	return res
}
