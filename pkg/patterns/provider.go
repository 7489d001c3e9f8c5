package patterns

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultPath is where the pattern document is read from when nothing else is configured
const DefaultPath = "/appz/scripts/webapps/patterns.json"

// Provider supplies the ordered list of pattern strings
type Provider interface {
	Patterns() ([]string, error)
}

// Document is the on-disk pattern document. Only the patterns field is recognized.
type Document struct {
	Patterns []string `json:"patterns"`
}

var documentSchema = gojsonschema.NewStringLoader(DocumentSchema)

// Parse validates data against DocumentSchema and decodes it
func Parse(data []byte) (*Document, error) {
	result, err := gojsonschema.Validate(documentSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pattern document: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("invalid pattern document: %s", strings.Join(msgs, "; "))
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode pattern document: %w", err)
	}

	return &doc, nil
}

// FileProvider reads patterns from a JSON file on every call
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider for path, falling back to DefaultPath
func NewFileProvider(path string) *FileProvider {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	return &FileProvider{path: path}
}

// Path returns the file the provider reads
func (p *FileProvider) Path() string {
	return p.path
}

// Patterns reads and validates the pattern file
func (p *FileProvider) Patterns() ([]string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.path, err)
	}

	return doc.Patterns, nil
}

// StaticProvider returns a fixed list
type StaticProvider []string

// Patterns returns a copy of the list
func (s StaticProvider) Patterns() ([]string, error) {
	return append([]string(nil), s...), nil
}
