package main

import (
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"
)

// formatVersion is the archive document format version.
const formatVersion = "1.0"

// Document is the complete archive: metadata, structure tree, and the flat
// file list, serialized as a single XML document.
type Document struct {
	XMLName   xml.Name  `xml:"codebase"`
	Name      string    `xml:"name,attr"`
	Version   string    `xml:"version,attr"`
	Timestamp string    `xml:"timestamp,attr"`
	Metadata  Metadata  `xml:"metadata"`
	Structure Structure `xml:"structure"`
	Files     FileList  `xml:"files"`

	// Warnings collected during the run; not part of the wire format.
	Warnings []string `xml:"-"`
}

type Metadata struct {
	Description string        `xml:"description"`
	SourcePath  string        `xml:"source_path"`
	Statistics  Statistics    `xml:"statistics"`
	FileTypes   *FileTypes    `xml:"file_types,omitempty"`
	Languages   *LanguageList `xml:"languages,omitempty"`
}

type Statistics struct {
	TotalFiles       int   `xml:"total_files,attr"`
	TotalDirectories int   `xml:"total_directories,attr"`
	TotalSize        int64 `xml:"total_size,attr"`
	TotalTokens      int   `xml:"total_tokens,attr,omitempty"`
}

type FileTypes struct {
	Types []TypeCount `xml:"type"`
}

type TypeCount struct {
	Name  string `xml:"name,attr"`
	Count int    `xml:"count,attr"`
}

type LanguageList struct {
	Languages []string `xml:"language"`
}

type Structure struct {
	Root *TreeNode `xml:"directory"`
}

// TreeNode is one node of the structure tree. XMLName selects the element
// name (directory, file, or symlink); the attribute set differs per kind.
type TreeNode struct {
	XMLName  xml.Name
	Name     string      `xml:"name,attr"`
	Path     string      `xml:"path,attr,omitempty"`   // directories
	Type     string      `xml:"type,attr,omitempty"`   // files
	Target   string      `xml:"target,attr,omitempty"` // symlinks
	Children []*TreeNode `xml:",any"`
}

type FileList struct {
	Records []FileRecord `xml:"file"`
}

// FileRecord is one entry of the flat files section, carrying full metadata
// plus the content capture.
type FileRecord struct {
	Name        string       `xml:"name,attr"`
	Path        string       `xml:"path,attr"`
	Type        string       `xml:"type,attr"`
	Language    string       `xml:"language,attr,omitempty"`
	Size        int64        `xml:"size,attr"`
	Lines       int          `xml:"lines,attr,omitempty"`
	Modified    string       `xml:"modified,attr,omitempty"`
	Permissions string       `xml:"permissions,attr,omitempty"`
	Tokens      int          `xml:"tokens,attr,omitempty"`
	Content     *ContentElem `xml:"content,omitempty"`
	Note        string       `xml:"note,omitempty"`
}

// ContentElem wraps captured content in CDATA so text stays literal in the
// document; the serializer splits any "]]>" inside the content across CDATA
// sections, keeping reconstruction unambiguous.
type ContentElem struct {
	Encoding string `xml:"encoding,attr,omitempty"`
	Text     string `xml:",cdata"`
}

// Bytes serializes the document with the XML declaration and two-space
// indentation.
func (d *Document) Bytes() ([]byte, error) {
	body, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing archive: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

// Encode writes the serialized document to w.
func (d *Document) Encode(w io.Writer) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// documentBuilder assembles the structure tree and the flat file list
// incrementally as entries stream past in traversal order. It has a single
// owner per run and is not safe for concurrent use.
type documentBuilder struct {
	doc   *Document
	nodes map[string]*TreeNode // relative dir path -> tree node
}

func newDocumentBuilder(name, absRoot string) *documentBuilder {
	root := &TreeNode{
		XMLName: xml.Name{Local: "directory"},
		Name:    "/",
		Path:    absRoot,
	}
	doc := &Document{
		Name:    name,
		Version: formatVersion,
	}
	doc.Metadata.Description = "Archived codebase: " + name
	doc.Metadata.SourcePath = absRoot
	doc.Structure.Root = root

	return &documentBuilder{
		doc:   doc,
		nodes: map[string]*TreeNode{"": root},
	}
}

// add appends one entry to the tree and, for files, to the flat list.
// Entries must arrive in pre-order so the parent directory node exists.
func (b *documentBuilder) add(e Entry, res fileResult) {
	parentRel := path.Dir(e.RelPath)
	if parentRel == "." {
		parentRel = ""
	}
	parent := b.nodes[parentRel]
	if parent == nil {
		return
	}

	switch e.Kind {
	case KindDirectory:
		node := &TreeNode{
			XMLName: xml.Name{Local: "directory"},
			Name:    e.Name,
			Path:    e.AbsPath,
		}
		parent.Children = append(parent.Children, node)
		b.nodes[e.RelPath] = node

	case KindSymlink:
		parent.Children = append(parent.Children, &TreeNode{
			XMLName: xml.Name{Local: "symlink"},
			Name:    e.Name,
			Target:  e.Target,
		})

	case KindFile:
		parent.Children = append(parent.Children, &TreeNode{
			XMLName: xml.Name{Local: "file"},
			Name:    e.Name,
			Type:    res.cls.Type,
		})
		b.doc.Files.Records = append(b.doc.Files.Records, buildFileRecord(e, res))
	}
}

func buildFileRecord(e Entry, res fileResult) FileRecord {
	rec := FileRecord{
		Name:        e.Name,
		Path:        e.AbsPath,
		Type:        res.cls.Type,
		Language:    res.cls.Language,
		Size:        e.Size,
		Modified:    e.ModTime.Format(time.RFC3339),
		Permissions: fmt.Sprintf("%03o", e.Mode.Perm()),
		Tokens:      res.tokens,
	}

	switch res.capture.Kind {
	case CaptureText:
		// Blank files get neither content nor a line count.
		if strings.TrimSpace(res.capture.Text) != "" {
			rec.Lines = res.capture.Lines
			rec.Content = &ContentElem{Text: sanitizeXML(res.capture.Text)}
		}
	case CaptureBinary:
		rec.Content = &ContentElem{Encoding: "base64", Text: res.capture.Encoded}
	case CaptureOmitted:
		rec.Note = res.capture.Reason
	}
	return rec
}

// finish freezes the aggregate statistics into the metadata section and
// stamps the document. The builder must not be used afterwards.
func (b *documentBuilder) finish(stats ProjectStats, generated time.Time, warnings []string) *Document {
	doc := b.doc
	doc.Timestamp = generated.Format(time.RFC3339)
	doc.Warnings = warnings

	doc.Metadata.Statistics = Statistics{
		TotalFiles:       stats.TotalFiles,
		TotalDirectories: stats.TotalDirectories,
		TotalSize:        stats.TotalSize,
		TotalTokens:      stats.TotalTokens,
	}

	if len(stats.TypeCounts) > 0 {
		names := make([]string, 0, len(stats.TypeCounts))
		for name := range stats.TypeCounts {
			names = append(names, name)
		}
		sort.Strings(names)
		ft := &FileTypes{Types: make([]TypeCount, 0, len(names))}
		for _, name := range names {
			ft.Types = append(ft.Types, TypeCount{Name: name, Count: stats.TypeCounts[name]})
		}
		doc.Metadata.FileTypes = ft
	}
	if len(stats.Languages) > 0 {
		doc.Metadata.Languages = &LanguageList{Languages: stats.Languages}
	}
	return doc
}

// sanitizeXML replaces runes that are invalid in XML 1.0 so arbitrary text
// content can never break the document. The serializer handles escaping of
// markup characters; this only removes what escaping cannot express.
func sanitizeXML(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == 0x09 || r == 0x0A || r == 0x0D:
			return r
		case r >= 0x20 && r <= 0xD7FF:
			return r
		case r >= 0xE000 && r <= 0xFFFD:
			return r
		case r >= 0x10000 && r <= 0x10FFFF:
			return r
		}
		return '�'
	}, s)
}
