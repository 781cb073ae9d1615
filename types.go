package main

import (
	"io/fs"
	"time"
)

// EntryKind is the kind of filesystem node the walker reports.
type EntryKind int

const (
	KindDirectory EntryKind = iota
	KindFile
	KindSymlink
)

func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	}
	return "unknown"
}

// Entry is one filesystem node visited during traversal. Entries are produced
// in depth-first pre-order and converted into document nodes immediately; they
// are never persisted standalone.
type Entry struct {
	AbsPath string
	RelPath string // slash-separated, relative to the archive root
	Name    string
	Kind    EntryKind
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	Target  string // symlink target, empty otherwise
}

// Classification is the (type, language) pair assigned to a file. Language is
// empty unless the type is a recognized programming language.
type Classification struct {
	Type     string
	Language string
}

// CaptureKind says what the content reader decided to do with a file's bytes.
type CaptureKind int

const (
	// CaptureText holds the decoded text content.
	CaptureText CaptureKind = iota
	// CaptureBinary holds base64-encoded raw bytes (include-binary mode only).
	CaptureBinary
	// CaptureOmitted carries only the reason content was left out.
	CaptureOmitted
)

// ContentCapture is the per-file content decision. Exactly one of Text,
// Encoded, or Reason is meaningful, selected by Kind. Never constructed for
// directories or symlinks.
type ContentCapture struct {
	Kind    CaptureKind
	Text    string // CaptureText: lossily decoded UTF-8
	Lines   int    // CaptureText: line count (empty content = 0)
	Encoded string // CaptureBinary: base64 of the raw bytes
	Reason  string // CaptureOmitted: why content is absent
}

// ProjectStats are the frozen aggregate statistics for one run. Symlinks count
// toward neither total; the root directory is excluded from TotalDirectories.
type ProjectStats struct {
	TotalFiles       int
	TotalDirectories int
	TotalSize        int64
	TotalTokens      int
	TypeCounts       map[string]int
	Languages        []string // sorted
}
