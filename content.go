package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
)

// sniffLen is how many leading bytes the binary/text heuristic looks at.
const sniffLen = 1024

// Omission reasons reused across the reader and the document builder.
const (
	reasonBinarySkipped = "Binary file - content skipped"
	reasonUnreadable    = "Content could not be read"
)

// isBinaryData reports whether the sampled bytes look like binary content:
// any NUL byte, or more than 30% control characters outside the usual
// whitespace set. High bytes are left alone so UTF-8 text passes.
func isBinaryData(sample []byte) bool {
	if len(sample) > sniffLen {
		sample = sample[:sniffLen]
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}
	suspect := 0
	for _, b := range sample {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' && b != '\f' {
			suspect++
		}
	}
	return len(sample) > 0 && suspect*10 > len(sample)*3
}

// readSniff reads at most sniffLen bytes so oversized files can still be
// classified without loading them.
func readSniff(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil
	}
	return buf[:n]
}

// captureContent turns a file's raw bytes into a ContentCapture. Size ceiling
// enforcement happens before the bytes are read (see processFile); by the
// time captureContent runs, data is the full file.
func captureContent(data []byte, cls Classification, includeBinary bool) ContentCapture {
	binary := isBinaryClassification(cls) || isBinaryData(data)
	if binary {
		if !includeBinary {
			return ContentCapture{Kind: CaptureOmitted, Reason: reasonBinarySkipped}
		}
		return ContentCapture{
			Kind:    CaptureBinary,
			Encoded: base64.StdEncoding.EncodeToString(data),
		}
	}

	// Decoding never fails: invalid sequences become U+FFFD.
	text := strings.ToValidUTF8(string(data), "�")
	return ContentCapture{
		Kind:  CaptureText,
		Text:  text,
		Lines: countLines(text),
	}
}

// countLines counts lines the way splitlines does: a trailing newline does
// not start a new line, and empty content has zero lines.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func tooLargeReason(size int64) string {
	return fmt.Sprintf("File too large (%d bytes)", size)
}
