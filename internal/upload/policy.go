package upload

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

const (
	DefaultMaxFiles     = 1
	DefaultMaxSizeBytes = 4 * 1024 * 1024
	MimeExecutable      = "application/x-msdownload"
)

var (
	ErrNoFile          = errors.New("no file selected")
	ErrTooManyFiles    = errors.New("too many files")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Policy declares which uploads are accepted. It is rendered into the
// upload control and enforced again on the server.
type Policy struct {
	MaxFiles     int                 `yaml:"maxFiles"`
	MaxSizeBytes int64               `yaml:"maxSizeBytes"`
	Accept       map[string][]string `yaml:"accept"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxFiles:     DefaultMaxFiles,
		MaxSizeBytes: DefaultMaxSizeBytes,
		Accept: map[string][]string{
			MimeExecutable: {".exe"},
		},
	}
}

// Validate reports configuration mistakes.
func (p Policy) Validate() error {
	if p.MaxFiles < 1 {
		return fmt.Errorf("maxFiles must be at least 1, got %d", p.MaxFiles)
	}
	if p.MaxSizeBytes < 1 {
		return fmt.Errorf("maxSizeBytes must be positive, got %d", p.MaxSizeBytes)
	}
	if len(p.Accept) == 0 {
		return fmt.Errorf("accept must list at least one mime type")
	}
	for mimeType, extensions := range p.Accept {
		if mimeType == "" {
			return fmt.Errorf("accept contains an empty mime type")
		}
		for _, ext := range extensions {
			if !strings.HasPrefix(ext, ".") {
				return fmt.Errorf("extension %q for %s must start with a dot", ext, mimeType)
			}
		}
	}
	return nil
}

// CheckCount enforces the number of files in one submission.
func (p Policy) CheckCount(n int) error {
	if n == 0 {
		return ErrNoFile
	}
	if n > p.MaxFiles {
		return fmt.Errorf("%w: got %d, at most %d allowed", ErrTooManyFiles, n, p.MaxFiles)
	}
	return nil
}

// CheckFile accepts a file when its size is within the limit and either its
// mime type or its extension is accepted.
func (p Policy) CheckFile(name, mimeType string, size int64) error {
	if size > p.MaxSizeBytes {
		return fmt.Errorf("%w: %d bytes exceeds the limit of %d bytes", ErrFileTooLarge, size, p.MaxSizeBytes)
	}
	if p.acceptsType(mimeType) || p.acceptsExtension(name) {
		return nil
	}
	return fmt.Errorf("%w: %s (%s), accepted: %s", ErrUnsupportedType, name, mimeType, strings.Join(p.Extensions(), ", "))
}

func (p Policy) acceptsType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		return false
	}
	for accepted := range p.Accept {
		if strings.EqualFold(accepted, mimeType) {
			return true
		}
	}
	return false
}

func (p Policy) acceptsExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, extensions := range p.Accept {
		for _, accepted := range extensions {
			if strings.EqualFold(accepted, ext) {
				return true
			}
		}
	}
	return false
}

// MimeTypes returns the accepted mime types in sorted order.
func (p Policy) MimeTypes() []string {
	types := make([]string, 0, len(p.Accept))
	for mimeType := range p.Accept {
		types = append(types, mimeType)
	}
	sort.Strings(types)
	return types
}

// Extensions returns the accepted extensions, sorted and deduplicated.
func (p Policy) Extensions() []string {
	seen := make(map[string]bool)
	var extensions []string
	for _, list := range p.Accept {
		for _, ext := range list {
			ext = strings.ToLower(ext)
			if !seen[ext] {
				seen[ext] = true
				extensions = append(extensions, ext)
			}
		}
	}
	sort.Strings(extensions)
	return extensions
}

// AcceptAttribute renders the value of an HTML file input accept attribute.
func (p Policy) AcceptAttribute() string {
	return strings.Join(append(p.MimeTypes(), p.Extensions()...), ",")
}
