// Package importer reads bookmark files into submitted fields and
// writes collections back out as browser-compatible HTML.
package importer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

// Format names a supported bookmark file format
type Format string

const (
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

// Detect picks a format from the file extension, falling back to the
// content when the name says nothing.
func Detect(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return FormatHTML
	case ".yaml", ".yml":
		return FormatYAML
	}

	head := bytes.ToLower(bytes.TrimSpace(data))
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.HasPrefix(head, []byte("<!doctype netscape")) ||
		bytes.HasPrefix(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<dl")) {
		return FormatHTML
	}
	return FormatYAML
}

// Parse decodes data according to the detected format.
// Entries are returned unvalidated.
func Parse(name string, data []byte) ([]domain.Fields, error) {
	switch Detect(name, data) {
	case FormatHTML:
		return ParseNetscape(bytes.NewReader(data))
	default:
		return ParseYAML(data)
	}
}

// LoadFile reads and parses a bookmark file from disk.
func LoadFile(path string) ([]domain.Fields, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookmarks file: %w", err)
	}

	fields, err := Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return fields, nil
}
