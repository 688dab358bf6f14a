package filemask

import (
	"io"

	"go.uber.org/zap"
)

// EncodeType selects which part of a target is transformed
type EncodeType uint8

const (
	// EncodeName replaces the target's name with a random one
	EncodeName EncodeType = iota
	// EncodeHeader scrambles the first HeaderSize bytes of a file
	EncodeHeader
	// EncodeContent substitutes every byte of a file through the encode map
	EncodeContent
)

// String returns the string representation of the encode type
func (t EncodeType) String() string {
	switch t {
	case EncodeName:
		return "name"
	case EncodeHeader:
		return "header"
	case EncodeContent:
		return "content"
	default:
		return "unknown"
	}
}

// flagIndex is the position of the type's flag inside the sidecar flag block.
func (t EncodeType) flagIndex() int {
	return int(t)
}

// conflictsWith reports whether t may not be applied while other is set.
// Header and content encoding both rewrite the leading bytes of the file.
func (t EncodeType) conflictsWith(other EncodeType) bool {
	return (t == EncodeHeader && other == EncodeContent) ||
		(t == EncodeContent && other == EncodeHeader)
}

// ParseEncodeType converts a name as produced by String back to an EncodeType
func ParseEncodeType(s string) (EncodeType, error) {
	switch s {
	case "name":
		return EncodeName, nil
	case "header":
		return EncodeHeader, nil
	case "content":
		return EncodeContent, nil
	}
	return 0, NewValidationError("type", s, "unknown encode type")
}

// SelectMode controls which paths below a target are processed
type SelectMode uint8

const (
	// FileOnly processes exactly the given path
	FileOnly SelectMode = iota
	// DirectoryShallow processes every direct child, then the directory itself
	DirectoryShallow
	// DirectoryCascade descends depth-first into child directories, then
	// processes the directory itself
	DirectoryCascade
)

// String returns the string representation of the select mode
func (m SelectMode) String() string {
	switch m {
	case FileOnly:
		return "file"
	case DirectoryShallow:
		return "dir"
	case DirectoryCascade:
		return "cascade"
	default:
		return "unknown"
	}
}

// ParseSelectMode converts a name as produced by String back to a SelectMode
func ParseSelectMode(s string) (SelectMode, error) {
	switch s {
	case "file":
		return FileOnly, nil
	case "dir":
		return DirectoryShallow, nil
	case "cascade":
		return DirectoryCascade, nil
	}
	return 0, NewValidationError("mode", s, "unknown select mode")
}

const (
	// DefaultHiddenDirName is the name of the per-directory sidecar container
	DefaultHiddenDirName = ".filemask"

	// DefaultChunkSize is the buffer size used when rewriting file content
	DefaultChunkSize = 64 * 1024
)

// Config contains configuration for a Masker
type Config struct {
	// HiddenDirName is the name of the sidecar container created next to
	// every processed target
	HiddenDirName string

	// ChunkSize is the buffer size for in-place content substitution
	ChunkSize int

	// Logger receives per-target decisions. Nil disables logging.
	Logger *zap.Logger

	// Rand seeds encode map generation. Nil means crypto/rand.
	Rand io.Reader
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if err := ValidateDirName(c.HiddenDirName); err != nil {
		return err
	}
	if err := ValidateSize(c.ChunkSize, "chunk_size", 0, 64*1024*1024); err != nil {
		return err
	}
	return nil
}

// withDefaults returns a copy of c with zero fields filled in
func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.HiddenDirName == "" {
		out.HiddenDirName = DefaultHiddenDirName
	}
	if out.ChunkSize == 0 {
		out.ChunkSize = DefaultChunkSize
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}
