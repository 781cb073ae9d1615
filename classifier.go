package main

import (
	_ "embed"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// The classification table ships inside the binary so the classifier never
// does I/O of its own.
//
//go:embed filetypes.yml
var fileTypesYAML []byte

// typeInfo describes one type label from the embedded table.
type typeInfo struct {
	Category   string   `yaml:"category"`
	Extensions []string `yaml:"extensions"`
	Filenames  []string `yaml:"filenames"`
}

// typeTable holds the parsed table plus the lookup maps derived from it.
type typeTable struct {
	types      map[string]typeInfo
	extensions map[string]string // ".go" -> "go"
	filenames  map[string]string // "Dockerfile" -> "docker"
}

var fileTypes = mustLoadTypeTable()

func mustLoadTypeTable() *typeTable {
	var types map[string]typeInfo
	if err := yaml.Unmarshal(fileTypesYAML, &types); err != nil {
		panic(fmt.Sprintf("parsing embedded filetypes.yml: %v", err))
	}

	t := &typeTable{
		types:      types,
		extensions: make(map[string]string),
		filenames:  make(map[string]string),
	}
	for label, info := range types {
		for _, ext := range info.Extensions {
			lowerExt := strings.ToLower(ext)
			if t.extensions[lowerExt] == "" { // first registration wins
				t.extensions[lowerExt] = label
			}
		}
		for _, fname := range info.Filenames {
			// Filenames match case-sensitively, and only on the exact name:
			// "Dockerfile.yaml" must resolve through the ".yaml" extension
			// rule, never the "Dockerfile" rule.
			if t.filenames[fname] == "" {
				t.filenames[fname] = label
			}
		}
	}
	return t
}

// category returns the table category for a type label, or "" for labels the
// table does not know (the sniff/mime fallbacks).
func (t *typeTable) category(label string) string {
	return t.types[label].Category
}

// classify maps a file name plus an optional content sniff to its
// Classification. Resolution order: exact filename match, extension match,
// mime guess by extension, content sniff, unknown. The sniff bytes are the
// only input that ever comes from the file itself; classify performs no I/O.
func classify(name string, sniff []byte) Classification {
	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))

	if label, ok := fileTypes.filenames[base]; ok {
		return withLanguage(label)
	}
	if ext != "" {
		if label, ok := fileTypes.extensions[ext]; ok {
			return withLanguage(label)
		}
	}

	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		switch {
		case strings.HasPrefix(mimeType, "text/"):
			return Classification{Type: "text"}
		case strings.HasPrefix(mimeType, "image/"):
			return Classification{Type: "image"}
		case strings.HasPrefix(mimeType, "audio/"):
			return Classification{Type: "audio"}
		case strings.HasPrefix(mimeType, "video/"):
			return Classification{Type: "video"}
		case strings.HasPrefix(mimeType, "application/"):
			return Classification{Type: "binary"}
		}
	}

	if len(sniff) > 0 {
		if isBinaryData(sniff) {
			return Classification{Type: "binary"}
		}
		return Classification{Type: "text"}
	}

	if ext != "" {
		return Classification{Type: "unknown" + ext}
	}
	return Classification{Type: "unknown"}
}

func withLanguage(label string) Classification {
	c := Classification{Type: label}
	if fileTypes.category(label) == "programming" {
		c.Language = label
	}
	return c
}

// binaryTypeLabels are type labels whose content is never treated as text.
// Everything else still passes through the byte sniff before capture.
var binaryTypeLabels = map[string]bool{
	"image":    true,
	"audio":    true,
	"video":    true,
	"font":     true,
	"binary":   true,
	"excel":    true,
	"sqlite":   true,
	"database": true,
}

// isBinaryClassification reports whether a classified file should be treated
// as binary without inspecting its bytes.
func isBinaryClassification(c Classification) bool {
	return binaryTypeLabels[c.Type]
}
