package main

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
}

func newTestArchiver(mutate func(*Config)) *Archiver {
	cfg := DefaultConfig()
	cfg.Now = fixedClock
	cfg.Workers = 2
	if mutate != nil {
		mutate(&cfg)
	}
	return NewArchiver(cfg)
}

// wordTokenizer is a deterministic stand-in for the tiktoken backend.
type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int { return len(strings.Fields(text)) }

func TestArchiveScenario(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.py", []byte("print(1)"))
	writeTestFile(t, root, "b/c.bin", []byte{0x00, 0x01, 0x02, 0x03})
	writeTestFile(t, root, ".git/config", []byte("[core]"))

	doc, err := newTestArchiver(nil).Archive(context.Background(), root)
	require.NoError(t, err)

	stats := doc.Metadata.Statistics
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 1, stats.TotalDirectories)
	assert.Equal(t, int64(12), stats.TotalSize)

	require.NotNil(t, doc.Metadata.FileTypes)
	assert.Equal(t, []TypeCount{{Name: "binary", Count: 1}, {Name: "python", Count: 1}}, doc.Metadata.FileTypes.Types)
	require.NotNil(t, doc.Metadata.Languages)
	assert.Equal(t, []string{"python"}, doc.Metadata.Languages.Languages)

	// The flat list mirrors traversal order: directory b/ first, so c.bin
	// precedes a.py.
	require.Len(t, doc.Files.Records, 2)
	bin, py := doc.Files.Records[0], doc.Files.Records[1]

	assert.Equal(t, "c.bin", bin.Name)
	assert.Equal(t, "binary", bin.Type)
	assert.Equal(t, int64(4), bin.Size)
	assert.Nil(t, bin.Content)
	assert.Equal(t, reasonBinarySkipped, bin.Note)

	assert.Equal(t, "a.py", py.Name)
	assert.Equal(t, "python", py.Type)
	assert.Equal(t, "python", py.Language)
	assert.Equal(t, int64(8), py.Size)
	assert.Equal(t, 1, py.Lines)
	assert.Equal(t, "644", py.Permissions)
	require.NotNil(t, py.Content)
	assert.Equal(t, "print(1)", py.Content.Text)

	// .git is absent from both sections.
	for _, rec := range doc.Files.Records {
		assert.NotContains(t, rec.Path, ".git")
	}
	root2 := doc.Structure.Root
	require.NotNil(t, root2)
	require.Len(t, root2.Children, 2)
	assert.Equal(t, "directory", root2.Children[0].XMLName.Local)
	assert.Equal(t, "b", root2.Children[0].Name)
	assert.Equal(t, "file", root2.Children[1].XMLName.Local)
	assert.Equal(t, "a.py", root2.Children[1].Name)
	require.Len(t, root2.Children[0].Children, 1)
	assert.Equal(t, "c.bin", root2.Children[0].Children[0].Name)
}

func TestArchiveTotalsMatchFlatList(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "one.go", []byte("package one\n"))
	writeTestFile(t, root, "sub/two.md", []byte("# two\n"))
	writeTestFile(t, root, "sub/deep/three.txt", []byte("three"))

	doc, err := newTestArchiver(nil).Archive(context.Background(), root)
	require.NoError(t, err)

	stats := doc.Metadata.Statistics
	assert.Equal(t, stats.TotalFiles, len(doc.Files.Records))

	var sum int64
	for _, rec := range doc.Files.Records {
		sum += rec.Size
	}
	assert.Equal(t, stats.TotalSize, sum)
}

func TestArchiveEmptyRoot(t *testing.T) {
	doc, err := newTestArchiver(nil).Archive(context.Background(), t.TempDir())
	require.NoError(t, err)

	stats := doc.Metadata.Statistics
	assert.Zero(t, stats.TotalFiles)
	assert.Zero(t, stats.TotalDirectories, "the root does not count toward total_directories")
	assert.Zero(t, stats.TotalSize)
	assert.Nil(t, doc.Metadata.FileTypes)
	assert.Nil(t, doc.Metadata.Languages)
	assert.Empty(t, doc.Files.Records)

	require.NotNil(t, doc.Structure.Root)
	assert.Equal(t, "/", doc.Structure.Root.Name)
	assert.Empty(t, doc.Structure.Root.Children)
}

func TestArchiveIdempotent(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.py", []byte("print(1)"))
	writeTestFile(t, root, "docs/readme.md", []byte("# hi\n"))

	first, err := newTestArchiver(nil).Archive(context.Background(), root)
	require.NoError(t, err)
	second, err := newTestArchiver(nil).Archive(context.Background(), root)
	require.NoError(t, err)

	firstBytes, err := first.Bytes()
	require.NoError(t, err)
	secondBytes, err := second.Bytes()
	require.NoError(t, err)
	assert.Equal(t, firstBytes, secondBytes, "unchanged tree and config must produce byte-identical archives")
}

func TestArchiveSizeCeiling(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "big.txt", []byte(strings.Repeat("x", 20)))

	doc, err := newTestArchiver(func(c *Config) { c.MaxFileSize = 10 }).Archive(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, doc.Files.Records, 1)
	rec := doc.Files.Records[0]
	assert.Equal(t, int64(20), rec.Size, "size reflects the real on-disk size")
	assert.Nil(t, rec.Content, "oversized files never carry content, truncated or otherwise")
	assert.Equal(t, "File too large (20 bytes)", rec.Note)
	assert.Equal(t, "text", rec.Type, "classification still happens for oversized files")
}

func TestArchiveBinaryWithTextExtension(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "fake.txt", []byte{'a', 0x00, 'b', 0x00})

	doc, err := newTestArchiver(nil).Archive(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, doc.Files.Records, 1)
	rec := doc.Files.Records[0]
	assert.Nil(t, rec.Content, "NUL-carrying content must not leak as text, whatever the extension says")
	assert.Equal(t, reasonBinarySkipped, rec.Note)
}

func TestArchiveIncludeBinary(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x01}
	root := t.TempDir()
	writeTestFile(t, root, "img.png", raw)

	doc, err := newTestArchiver(func(c *Config) { c.IncludeBinary = true }).Archive(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, doc.Files.Records, 1)
	rec := doc.Files.Records[0]
	require.NotNil(t, rec.Content)
	assert.Equal(t, "base64", rec.Content.Encoding)

	decoded, err := base64.StdEncoding.DecodeString(rec.Content.Text)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestArchiveTokenCounts(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "words.txt", []byte("alpha beta gamma"))

	doc, err := newTestArchiver(func(c *Config) { c.Tokenizer = wordTokenizer{} }).Archive(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, doc.Files.Records, 1)
	assert.Equal(t, 3, doc.Files.Records[0].Tokens)
	assert.Equal(t, 3, doc.Metadata.Statistics.TotalTokens)
}

func TestArchiveCancelled(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.txt", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestArchiver(nil).Archive(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
}

func TestArchiveInputErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := newTestArchiver(nil).Archive(context.Background(), filepath.Join(t.TempDir(), "missing"))
		require.Error(t, err)
	})

	t.Run("root is a file", func(t *testing.T) {
		root := t.TempDir()
		writeTestFile(t, root, "f.txt", nil)
		_, err := newTestArchiver(nil).Archive(context.Background(), filepath.Join(root, "f.txt"))
		require.Error(t, err)
	})
}

func TestArchiveToFileRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.py", []byte("print(1)"))
	writeTestFile(t, root, "pkg/util.go", []byte("package pkg\n"))

	outDir := t.TempDir()
	outPath := filepath.Join(outDir, "archive.xml")
	written, err := newTestArchiver(nil).ArchiveToFile(context.Background(), root, outPath)
	require.NoError(t, err)
	assert.Equal(t, outPath, written)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), xml.Header))

	// Parsing the structure section back yields a tree isomorphic to the
	// source restricted to non-ignored entries.
	var parsed Document
	require.NoError(t, xml.Unmarshal(data, &parsed))
	require.NotNil(t, parsed.Structure.Root)
	require.Len(t, parsed.Structure.Root.Children, 2)
	assert.Equal(t, "pkg", parsed.Structure.Root.Children[0].Name)
	assert.Equal(t, "a.py", parsed.Structure.Root.Children[1].Name)
	require.Len(t, parsed.Structure.Root.Children[0].Children, 1)
	assert.Equal(t, "util.go", parsed.Structure.Root.Children[0].Children[0].Name)

	assert.Equal(t, parsed.Metadata.Statistics.TotalFiles, len(parsed.Files.Records))

	// No temp files left behind by the atomic write.
	dirents, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, dirents, 1)
	assert.Equal(t, "archive.xml", dirents[0].Name())
}

func TestArchiveUnreadableFile(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := t.TempDir()
	writeTestFile(t, root, "locked.txt", []byte("secret"))
	require.NoError(t, os.Chmod(filepath.Join(root, "locked.txt"), 0o000))

	doc, err := newTestArchiver(nil).Archive(context.Background(), root)
	require.NoError(t, err, "one unreadable file must not abort the run")

	require.Len(t, doc.Files.Records, 1)
	rec := doc.Files.Records[0]
	assert.Nil(t, rec.Content)
	assert.Equal(t, reasonUnreadable, rec.Note)
	assert.NotEmpty(t, doc.Warnings)
}
